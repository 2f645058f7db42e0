package render

import (
	"bufio"
	"bytes"
	"image/color"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/guidoenr/xyscope/internal/analyzer"
	"github.com/guidoenr/xyscope/internal/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantBlock(v float32, n int) Block {
	l := make([]float32, n)
	r := make([]float32, n)
	for i := range l {
		l[i], r[i] = v, v
	}
	return Block{Left: l, Right: r}
}

func noiseBlock(seed int64, n int, amp float64) Block {
	rng := rand.New(rand.NewSource(seed))
	l := make([]float32, n)
	r := make([]float32, n)
	for i := range l {
		l[i] = float32((rng.Float64()*2 - 1) * amp)
		r[i] = float32((rng.Float64()*2 - 1) * amp)
	}
	return Block{Left: l, Right: r}
}

func newRenderer(t *testing.T, w, h int) *Renderer {
	t.Helper()
	r, err := New(w, h, Options{})
	require.NoError(t, err)
	return r
}

func TestNewRejectsInvalidSize(t *testing.T) {
	_, err := New(0, 10, Options{})
	require.Error(t, err)
	_, err = New(10, -1, Options{})
	require.Error(t, err)
}

func TestSilenceOnlyFades(t *testing.T) {
	p := params.Defaults()
	r := newRenderer(t, 64, 64)
	frame := r.Plan(constantBlock(0, 512), p, 20, analyzer.Bands{})
	require.Len(t, frame.Points, 512)
	for _, pt := range frame.Points {
		require.False(t, math.IsNaN(pt.X) || math.IsInf(pt.X, 0))
		require.False(t, math.IsNaN(pt.Y) || math.IsInf(pt.Y, 0))
		assert.InDelta(t, 32.0, pt.X, 1e-9)
		assert.InDelta(t, 32.0, pt.Y, 1e-9)
	}

	r.Render(constantBlock(0, 512), p, 20, analyzer.Bands{})

	faded := NewCanvas(64, 64)
	faded.Fade(1 - p.Persistence)
	assert.Equal(t, faded.Image().Pix, r.Surface().Pix)
}

func TestNonFiniteSamplesTreatedAsSilence(t *testing.T) {
	block := constantBlock(0, 64)
	block.Left[3] = float32(math.NaN())
	block.Right[9] = float32(math.Inf(1))
	r := newRenderer(t, 32, 32)
	frame := r.Plan(block, params.Defaults(), 1, analyzer.Bands{})
	for _, pt := range frame.Points {
		require.False(t, math.IsNaN(pt.X) || math.IsNaN(pt.Y))
	}
}

func TestShortBlockIsNoop(t *testing.T) {
	p := params.Defaults()
	p.DCOffset = 1
	r := newRenderer(t, 16, 16)
	r.Render(constantBlock(0.5, 1), p, 1, analyzer.Bands{})
	r.Render(Block{}, p, 1, analyzer.Bands{})
	for _, b := range r.Surface().Pix {
		require.Zero(t, b)
	}
	assert.Zero(t, r.phase)
}

func TestRenderIsDeterministic(t *testing.T) {
	p := params.Defaults()
	p.DCOffset = 0.4
	p.RotateDeg = 30
	block := noiseBlock(7, 1000, 1)
	bands := analyzer.Bands{Bass: 0.2, Mid: 0.6, High: 0.1}

	a := newRenderer(t, 80, 60)
	b := newRenderer(t, 80, 60)
	for i := 0; i < 3; i++ {
		fa := a.Plan(block, p, 2, bands)
		fb := b.Plan(block, p, 2, bands)
		require.Equal(t, fa.Points, fb.Points)
		require.Equal(t, fa.Chunks, fb.Chunks)
		a.Render(block, p, 2, bands)
		b.Render(block, p, 2, bands)
	}
	assert.Equal(t, a.Surface().Pix, b.Surface().Pix)
	assert.Equal(t, a.phase, b.phase)
}

func TestPlanDoesNotAdvancePhase(t *testing.T) {
	p := params.Defaults()
	p.DCOffset = 0.5
	r := newRenderer(t, 32, 32)
	frame := r.Plan(constantBlock(0.1, 256), p, 1, analyzer.Bands{})
	assert.Zero(t, r.phase)
	assert.InDelta(t, 256*0.001*0.5, frame.Phase, 1e-9)

	r.Render(constantBlock(0.1, 256), p, 1, analyzer.Bands{})
	assert.InDelta(t, frame.Phase, r.phase, 1e-12)
}

func TestZeroOffsetFreezesPhase(t *testing.T) {
	r := newRenderer(t, 32, 32)
	r.Render(noiseBlock(1, 512, 1), params.Defaults(), 1, analyzer.Bands{})
	assert.Zero(t, r.phase)
}

func TestMonoCircleTracesCircle(t *testing.T) {
	const (
		level = 0.5
		agc   = 1.5
		size  = 200
	)
	p := params.Defaults()
	r := newRenderer(t, size, size)
	frame := r.Plan(constantBlock(level, 256), p, agc, analyzer.Bands{})

	scale := 0.45 * size
	g := level * agc
	cx := size/2 + 0.2*g*scale
	cy := size/2 - 0.2*g*scale
	radius := 0.8 * 0.4 * g * scale

	require.Len(t, frame.Chunks, 2)
	for _, ch := range frame.Chunks {
		assert.Zero(t, ch.Width)
		assert.InDelta(t, 0.8, ch.Blend, 1e-12)
		assert.InDelta(t, 20.0, ch.Spread, 1e-12)
	}
	for i, pt := range frame.Points {
		d := math.Hypot(pt.X-cx, pt.Y-cy)
		require.InDelta(t, radius, d, 1e-6, "point %d", i)
	}
}

func TestRadiusScalesWithZoomAndGain(t *testing.T) {
	p := params.Defaults()
	r := newRenderer(t, 100, 100)
	base := r.Plan(constantBlock(0.3, 128), p, 1, analyzer.Bands{})
	first := base.Points[10]

	p.Zoom = 2
	p.GainDB = 20 * math.Log10(1.5)
	zoomed := r.Plan(constantBlock(0.3, 128), p, 1, analyzer.Bands{})
	second := zoomed.Points[10]

	d1 := math.Hypot(first.X-50, first.Y-50)
	d2 := math.Hypot(second.X-50, second.Y-50)
	assert.InDelta(t, 3.0, d2/d1, 1e-9)
}

func TestStereoContentPlotsRawXY(t *testing.T) {
	block := Block{Left: []float32{0.5, 0.5, -0.5, -0.5}, Right: []float32{-0.5, -0.5, 0.5, 0.5}}
	p := params.Defaults()
	r := newRenderer(t, 100, 100)
	frame := r.Plan(block, p, 1, analyzer.Bands{})
	require.Len(t, frame.Chunks, 1)
	ch := frame.Chunks[0]
	assert.InDelta(t, 0.5, ch.Width, 1e-12)
	assert.Zero(t, ch.Blend)

	// mid 0, side 0.5 scaled by spread; x = side, y = -side.
	side := 0.5 * ch.Spread
	assert.InDelta(t, 50+side*45, frame.Points[0].X, 1e-9)
	assert.InDelta(t, 50+side*45, frame.Points[0].Y, 1e-9)
}

func TestMonoAmountRemovesWidth(t *testing.T) {
	p := params.Defaults()
	p.MonoAmount = 1
	r := newRenderer(t, 50, 50)
	frame := r.Plan(noiseBlock(3, 256, 1), p, 1, analyzer.Bands{})
	for _, ch := range frame.Chunks {
		assert.Zero(t, ch.Width)
		assert.InDelta(t, 0.55, ch.Sat, 1e-12)
	}
}

func TestTrailingShortChunkIsSkipped(t *testing.T) {
	r := newRenderer(t, 50, 50)
	frame := r.Plan(constantBlock(0.2, 129), params.Defaults(), 1, analyzer.Bands{})
	require.Len(t, frame.Chunks, 1)
	assert.Equal(t, 0, frame.Chunks[0].Start)
	assert.Equal(t, 128, frame.Chunks[0].End)
}

func TestFFTColorFollowsDominantBand(t *testing.T) {
	p := params.Defaults()
	p.FFTColor = true
	r := newRenderer(t, 50, 50)

	frame := r.Plan(constantBlock(0.2, 128), p, 1, analyzer.Bands{Bass: 0.1, Mid: 0.2, High: 1})
	assert.InDelta(t, 0.65, frame.Chunks[0].Hue, 1e-12)

	p.HueShift = 0.5
	p.InvertColors = true
	frame = r.Plan(constantBlock(0.2, 128), p, 1, analyzer.Bands{Bass: 1})
	// bass 1 -> 0.1, shift -> 0.6, invert -> 0.4
	assert.InDelta(t, 0.4, frame.Chunks[0].Hue, 1e-12)
}

func TestBandFloorGatesFFTColor(t *testing.T) {
	p := params.Defaults()
	p.FFTColor = true
	quiet := analyzer.Bands{Mid: 0.1, High: 0.05}

	open := newRenderer(t, 50, 50).Plan(constantBlock(0.2, 128), p, 1, quiet)
	// mid 0.1 -> 0.25 + 0.15*0.1
	assert.InDelta(t, 0.265, open.Chunks[0].Hue, 1e-12)

	gated, err := New(50, 50, Options{BandFloor: 0.2})
	require.NoError(t, err)
	frame := gated.Plan(constantBlock(0.2, 128), p, 1, quiet)
	assert.InDelta(t, 0.0, frame.Chunks[0].Hue, 1e-12)

	frame = gated.Plan(constantBlock(0.2, 128), p, 1, analyzer.Bands{High: 0.6})
	// (0.6-0.2)/0.8 = 0.5 -> 0.5 + 0.15*0.5
	assert.InDelta(t, 0.575, frame.Chunks[0].Hue, 1e-12)
}

func TestResetClearsSurfaceAndPhase(t *testing.T) {
	p := params.Defaults()
	p.DCOffset = 0.5
	r := newRenderer(t, 40, 40)
	r.Render(noiseBlock(3, 256, 0.02), p, 1, analyzer.Bands{})
	require.NotZero(t, r.phase)

	r.Reset()
	assert.Zero(t, r.phase)
	for _, b := range r.Surface().Pix {
		require.Zero(t, b)
	}
}

func TestRenderPaintsGeometry(t *testing.T) {
	for _, particle := range []bool{false, true} {
		p := params.Defaults()
		p.ParticleMode = particle
		r := newRenderer(t, 120, 120)
		r.Render(noiseBlock(11, 512, 0.02), p, 1, analyzer.Bands{})

		lit := 0
		pix := r.Surface().Pix
		for i := 0; i < len(pix); i += 4 {
			if pix[i]|pix[i+1]|pix[i+2] != 0 {
				lit++
			}
		}
		assert.Greater(t, lit, 50, "particle=%v", particle)
	}
}

func TestResizeClearsSurface(t *testing.T) {
	r := newRenderer(t, 40, 40)
	r.Render(noiseBlock(5, 256, 0.02), params.Defaults(), 1, analyzer.Bands{})

	assert.False(t, r.Resize(40, 40))
	assert.False(t, r.Resize(0, 10))
	require.True(t, r.Resize(60, 30))
	w, h := r.Size()
	assert.Equal(t, 60, w)
	assert.Equal(t, 30, h)
	for _, b := range r.Surface().Pix {
		require.Zero(t, b)
	}
}

func TestDoubleCoreDrawsMore(t *testing.T) {
	p := params.Defaults()
	p.GlowIntensity = 0
	block := noiseBlock(9, 256, 0.02)

	single := newRenderer(t, 64, 64)
	double, err := New(64, 64, Options{DoubleCore: true})
	require.NoError(t, err)
	single.Render(block, p, 1, analyzer.Bands{})
	double.Render(block, p, 1, analyzer.Bands{})
	assert.NotEqual(t, single.Surface().Pix, double.Surface().Pix)
}

func TestGlowLayer(t *testing.T) {
	mult, alpha, sat := glowLayer(0, 5, 1)
	assert.InDelta(t, 5.0, mult, 1e-12)
	assert.InDelta(t, 0.15, alpha, 1e-12)
	assert.InDelta(t, 1.0, sat, 1e-12)

	mult, alpha, sat = glowLayer(2, 5, 2)
	assert.InDelta(t, 2.0, mult, 1e-12)
	assert.InDelta(t, 0.1, alpha, 1e-12)
	assert.InDelta(t, 0.7, sat, 1e-12)
}

func TestCanvasPrimitives(t *testing.T) {
	c := NewCanvas(100, 100)
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	c.StrokeLine(10, 50.5, 90, 50.5, 4, white)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, c.Image().RGBAAt(50, 50))
	assert.Equal(t, color.RGBA{}, c.Image().RGBAAt(50, 60))

	c.FillCircle(20, 20, 10, white)
	assert.Greater(t, c.Image().RGBAAt(20, 20).A, uint8(200))
	assert.Equal(t, color.RGBA{}, c.Image().RGBAAt(30, 30))

	// Degenerate and off-surface primitives are ignored.
	c.StrokeLine(5, 5, 5, 5, 3, white)
	c.StrokeLine(-500, -500, -400, -400, 3, white)
	c.FillCircle(1e6, 1e6, 10, white)
	c.FillCircle(math.NaN(), 0, 10, white)
	assert.Equal(t, color.RGBA{}, c.Image().RGBAAt(5, 5))

	c.Fade(1)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, c.Image().RGBAAt(50, 50))
}

func TestFadeDecaysTrail(t *testing.T) {
	c := NewCanvas(10, 10)
	c.FillCircle(5, 5, 20, color.NRGBA{R: 200, A: 255})
	before := c.Image().RGBAAt(5, 5).R
	c.Fade(0.5)
	after := c.Image().RGBAAt(5, 5).R
	assert.Less(t, after, before)
	assert.Greater(t, after, uint8(0))

	c.Fade(0)
	assert.Equal(t, after, c.Image().RGBAAt(5, 5).R)
}

func TestTerminalPresenter(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)
	term.cols, term.rows = 12, 4

	r := newRenderer(t, 24, 24)
	r.Render(noiseBlock(2, 256, 0.02), params.Defaults(), 1, analyzer.Bands{})
	require.NoError(t, term.Present(r.Surface(), Status{FPS: 60, Shape: params.ShapeStar}))
	require.NoError(t, term.Close())

	out := buf.String()
	assert.Equal(t, 12*3, strings.Count(out, upperHalfBlock))
	assert.Contains(t, out, "STAR/SIN")
	assert.True(t, strings.HasSuffix(out, "\x1b[?25h\r\n"))
}

func TestWriteColor(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	writeColor(w, "\x1b[38;5;", 16)
	writeColor(w, "\x1b[48;5;", 231)
	require.NoError(t, w.Flush())
	assert.Equal(t, "\x1b[38;5;16m\x1b[48;5;231m", buf.String())
}

func TestHeadlessPresenter(t *testing.T) {
	p, err := NewPresenter(KindNone, 10, 10)
	require.NoError(t, err)
	h := p.(*Headless)
	require.NoError(t, h.Present(nil, Status{Dropped: 3}))
	assert.Equal(t, uint64(1), h.Frames)
	assert.Equal(t, uint64(3), h.Last.Dropped)
	require.NoError(t, p.Close())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Terminal")
	require.NoError(t, err)
	assert.Equal(t, KindTerminal, k)
	k, err = ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindNone, k)
	_, err = ParseKind("vulkan")
	assert.Error(t, err)
}

func TestStatusString(t *testing.T) {
	s := Status{
		FPS:      59.94,
		Gain:     2,
		Bands:    analyzer.Bands{Bass: 0.5},
		Dropped:  12,
		Shape:    params.ShapeSpiral,
		Wave:     params.WaveSawtooth,
		Particle: true,
	}.String()
	assert.Contains(t, s, "SPIRAL/SAWTOOTH particles")
	assert.Contains(t, s, "bass 0.50")
	assert.Contains(t, s, "fps 59.9")
	assert.Contains(t, s, "dropped 12")
}

func TestEncodePNG(t *testing.T) {
	r := newRenderer(t, 16, 8)
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, r.Surface()))
	assert.Equal(t, "\x89PNG", buf.String()[:4])

	op := Opaque(nil, r.Surface())
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, op.RGBAAt(3, 3))
}
