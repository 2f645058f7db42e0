package ring

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start + i)
	}
	return out
}

func negate(in []float32) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = -v
	}
	return out
}

func TestNewRoundsCapacityToPowerOfTwo(t *testing.T) {
	cases := map[int]int{
		0:      DefaultCapacity,
		-3:     DefaultCapacity,
		1:      2,
		5:      8,
		8:      8,
		1000:   1024,
		131072: 131072,
	}
	for in, want := range cases {
		assert.Equal(t, want, New(in).Capacity(), "capacity for %d", in)
	}
}

func TestOverflowDropsNewest(t *testing.T) {
	r := New(8)

	first := seq(1, 5)
	second := seq(6, 5)

	require.Equal(t, 5, r.Write(first, negate(first)))
	require.Equal(t, 3, r.Write(second, negate(second)))
	assert.Equal(t, 8, r.Available())
	assert.Equal(t, 0, r.Capacity()-r.Available())
	assert.Equal(t, uint64(2), r.Dropped())

	dl := make([]float32, 8)
	dr := make([]float32, 8)
	got := r.Read(dl, dr)
	require.Equal(t, 8, got)
	assert.Equal(t, seq(1, 8), dl)
	assert.Equal(t, negate(seq(1, 8)), dr)

	assert.Equal(t, 0, r.Read(dl, dr))
	assert.Equal(t, 0, r.Available())
}

func TestSegmentsSplitAtWrap(t *testing.T) {
	r := New(8)
	r.Write(seq(0, 6), seq(0, 6))
	buf := make([]float32, 6)
	r.Read(buf, buf)

	segs := r.PrepareWrite(5)
	assert.Equal(t, Segment{Offset: 6, Length: 2}, segs.First)
	assert.Equal(t, Segment{Offset: 0, Length: 3}, segs.Second)
	assert.Equal(t, 5, segs.Total())

	l1, _ := r.Span(segs.First)
	copy(l1, []float32{10, 11})
	l2, _ := r.Span(segs.Second)
	copy(l2, []float32{12, 13, 14})
	r.FinishWrite(segs.Total())

	read := r.PrepareRead(10)
	assert.Equal(t, 5, read.Total())
	assert.Equal(t, Segment{Offset: 6, Length: 2}, read.First)

	dl := make([]float32, 5)
	dr := make([]float32, 5)
	require.Equal(t, 5, r.Read(dl, dr))
	assert.Equal(t, []float32{10, 11, 12, 13, 14}, dl)
}

func TestShortReadReturnsAvailableOnly(t *testing.T) {
	r := New(16)
	r.Write(seq(0, 3), seq(0, 3))

	dl := make([]float32, 10)
	dr := make([]float32, 10)
	assert.Equal(t, 3, r.Read(dl, dr))
	assert.Equal(t, 0, r.Read(dl, dr))
}

func TestFinishClampsOverlongCounts(t *testing.T) {
	r := New(4)
	r.FinishWrite(100)
	assert.Equal(t, 4, r.Available())
	r.FinishRead(100)
	assert.Equal(t, 0, r.Available())
	assert.Equal(t, 4, r.Capacity()-r.Available())
}

func TestMismatchedSliceLengthsUseShorter(t *testing.T) {
	r := New(8)
	assert.Equal(t, 2, r.Write(seq(0, 5), seq(0, 2)))
	dl := make([]float32, 1)
	dr := make([]float32, 8)
	assert.Equal(t, 1, r.Read(dl, dr))
	assert.Equal(t, 1, r.Available())
}

func TestReset(t *testing.T) {
	r := New(8)
	r.Write(seq(0, 5), seq(0, 5))
	r.Reset()
	assert.Equal(t, 0, r.Available())
	assert.Equal(t, 8, r.Capacity()-r.Available())
}

func TestRandomSequencesPreserveFIFO(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := New(64)

	var written, read []float32
	next := 0
	for step := 0; step < 2000; step++ {
		if rng.Intn(2) == 0 {
			n := rng.Intn(40)
			block := seq(next, n)
			stored := r.Write(block, negate(block))
			written = append(written, block[:stored]...)
			next += n
		} else {
			dl := make([]float32, rng.Intn(40))
			dr := make([]float32, len(dl))
			got := r.Read(dl, dr)
			read = append(read, dl[:got]...)
			for i := 0; i < got; i++ {
				require.Equal(t, -dl[i], dr[i])
			}
		}
		require.LessOrEqual(t, r.Available(), r.Capacity())
		require.LessOrEqual(t, len(read), len(written))
	}
	assert.Equal(t, written[:len(read)], read)
}

func TestConcurrentProducerConsumer(t *testing.T) {
	const total = 200_000
	r := New(1024)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		block := make([]float32, 97)
		sent := 0
		for sent < total {
			n := min(len(block), total-sent)
			for i := 0; i < n; i++ {
				block[i] = float32(sent + i)
			}
			stored := r.Write(block[:n], block[:n])
			sent += stored
		}
	}()

	dl := make([]float32, 113)
	dr := make([]float32, 113)
	expect := 0
	for expect < total {
		got := r.Read(dl, dr)
		for i := 0; i < got; i++ {
			if dl[i] != float32(expect) || dr[i] != float32(expect) {
				t.Fatalf("sample %d: got %f/%f", expect, dl[i], dr[i])
			}
			expect++
		}
	}
	wg.Wait()
	assert.Equal(t, 0, r.Available())
}
