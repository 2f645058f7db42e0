package analyzer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq, amp, sampleRate float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}
	return out
}

func TestNextPow2(t *testing.T) {
	cases := map[int]int{
		0:   1,
		1:   1,
		2:   2,
		3:   4,
		5:   8,
		16:  16,
		31:  32,
		257: 512,
	}
	for input, want := range cases {
		if got := nextPow2(input); got != want {
			t.Fatalf("nextPow2(%d)=%d want=%d", input, got, want)
		}
	}
}

func TestClamp(t *testing.T) {
	if clamp(2, 0, 1) != 1 {
		t.Fatalf("expected clamp high to be 1")
	}
	if clamp(-1, 0, 1) != 0 {
		t.Fatalf("expected clamp low to be 0")
	}
	if clamp(0.5, 0, 1) != 0.5 {
		t.Fatalf("expected clamp middle to be unchanged")
	}
}

func TestBandEdgesAt44k(t *testing.T) {
	bassEnd, midEnd := bandEdges(44_100, 1024)
	assert.Equal(t, 6, bassEnd)
	assert.Equal(t, 47, midEnd)

	bassEnd, midEnd = bandEdges(8_000, 16)
	assert.Equal(t, 1, bassEnd)
	assert.Equal(t, 4, midEnd)
}

func TestBassToneDominatesBass(t *testing.T) {
	for _, backend := range []Backend{BackendGonum, BackendGoDSP} {
		for _, win := range []string{"rect", "hann"} {
			a, err := New(Config{SampleRate: 44_100, Backend: backend, Window: win})
			require.NoError(t, err)

			a.Update(sine(100, 0.05, 44_100, a.Size()))
			require.Equal(t, uint64(1), a.Windows())

			b := a.Bands()
			assert.Greater(t, b.Bass, b.Mid, "%s/%s", backend, win)
			assert.Greater(t, b.Bass, b.High, "%s/%s", backend, win)
			band, _ := b.Dominant()
			assert.Equal(t, BandBass, band)
		}
	}
}

func TestHighToneDominatesHigh(t *testing.T) {
	a, err := New(Config{SampleRate: 44_100, Window: "hann"})
	require.NoError(t, err)
	a.Update(sine(8_000, 0.5, 44_100, a.Size()))

	b := a.Bands()
	assert.Greater(t, b.High, b.Bass)
	assert.Greater(t, b.High, b.Mid)
}

func TestNoPublishBeforeWindowFills(t *testing.T) {
	a, err := New(Config{})
	require.NoError(t, err)

	a.Update(sine(100, 0.5, 44_100, a.Size()-1))
	assert.Equal(t, uint64(0), a.Windows())
	assert.Equal(t, Bands{}, a.Bands())

	a.Update([]float32{0})
	assert.Equal(t, uint64(1), a.Windows())
	assert.NotZero(t, a.Bands().Bass)
}

func TestWindowsDoNotOverlap(t *testing.T) {
	a, err := New(Config{Size: 256})
	require.NoError(t, err)
	a.Update(make([]float32, 256*3+10))
	assert.Equal(t, uint64(3), a.Windows())
}

func TestSilenceProducesZeroBands(t *testing.T) {
	a, err := New(Config{})
	require.NoError(t, err)
	a.Update(sine(100, 0.5, 44_100, a.Size()))
	require.NotZero(t, a.Bands().Bass)

	a.Update(make([]float32, a.Size()))
	assert.Equal(t, Bands{}, a.Bands())
}

func TestReleaseSmoothsFall(t *testing.T) {
	a, err := New(Config{Attack: 1, Release: 0.5})
	require.NoError(t, err)
	a.Update(sine(100, 0.05, 44_100, a.Size()))
	peak := a.Bands().Bass

	a.Update(make([]float32, a.Size()))
	assert.InDelta(t, peak*0.5, a.Bands().Bass, 1e-9)
}

func TestUpdateStereoMixesToMono(t *testing.T) {
	a, err := New(Config{})
	require.NoError(t, err)
	b, err := New(Config{})
	require.NoError(t, err)

	tone := sine(100, 0.2, 44_100, a.Size())
	silent := make([]float32, a.Size())
	half := make([]float32, a.Size())
	for i, v := range tone {
		half[i] = v * 0.5
	}

	a.UpdateStereo(tone, silent)
	b.Update(half)
	assert.InDelta(t, b.Bands().Bass, a.Bands().Bass, 1e-6)
}

func TestUpdateDoesNotAllocate(t *testing.T) {
	a, err := New(Config{Size: 512})
	require.NoError(t, err)
	block := sine(440, 0.3, 44_100, 512)

	allocs := testing.AllocsPerRun(20, func() {
		a.UpdateStereo(block, block)
	})
	assert.Zero(t, allocs)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Window: "kaiser"})
	assert.Error(t, err)
	_, err = New(Config{Size: 4})
	assert.Error(t, err)

	_, err = ParseBackend("cuda")
	assert.Error(t, err)
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendGonum, b)
}

func TestGate(t *testing.T) {
	in := Bands{Bass: 0.6, Mid: 0.1, High: 1}
	out := Gate(in, 0.2)
	assert.InDelta(t, 0.5, out.Bass, 1e-9)
	assert.Zero(t, out.Mid)
	assert.InDelta(t, 1, out.High, 1e-9)

	assert.Equal(t, in, Gate(in, 0))
	assert.Equal(t, Bands{}, Gate(in, 1))
}

func TestDominantTies(t *testing.T) {
	band, v := Bands{Bass: 0.3, Mid: 0.3, High: 0.3}.Dominant()
	assert.Equal(t, BandBass, band)
	assert.Equal(t, 0.3, v)

	band, _ = Bands{Mid: 0.4, High: 0.4}.Dominant()
	assert.Equal(t, BandMid, band)

	band, _ = Bands{High: 0.1}.Dominant()
	assert.Equal(t, BandHigh, band)
}

func TestNonFiniteSamplesCountAsSilence(t *testing.T) {
	a, err := New(Config{SampleRate: 44100, Size: 64})
	require.NoError(t, err)
	block := make([]float32, 64)
	block[10] = float32(math.NaN())
	block[20] = float32(math.Inf(1))
	a.Update(block)
	require.Equal(t, uint64(1), a.Windows())
	assert.Equal(t, Bands{}, a.Bands())
}
