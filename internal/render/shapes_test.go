package render

import (
	"image/color"
	"math"
	"testing"

	"github.com/guidoenr/xyscope/internal/analyzer"
	"github.com/guidoenr/xyscope/internal/params"
	"github.com/stretchr/testify/assert"
)

func TestWaveFunctions(t *testing.T) {
	cases := []struct {
		wave  params.WaveType
		phase float64
		want  float64
	}{
		{params.WaveSine, 0.25, 1},
		{params.WaveSine, 0.75, -1},
		{params.WaveTriangle, 0, -1},
		{params.WaveTriangle, 0.25, 0},
		{params.WaveTriangle, 0.5, 1},
		{params.WaveTriangle, 0.75, 0},
		{params.WaveSquare, 0.1, 1},
		{params.WaveSquare, 0.6, -1},
		{params.WaveSawtooth, 0, -1},
		{params.WaveSawtooth, 0.5, 0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, waveFor(tc.wave)(tc.phase), 1e-12, "%s@%v", tc.wave, tc.phase)
	}
	assert.InDelta(t, 1.0, waveFor(params.WaveType(42))(0.25), 1e-12)
}

func TestUnmodulatedCircle(t *testing.T) {
	fn := shapeFor(params.ShapeCircle)
	for _, a := range []float64{0, 1, 2.5, 5} {
		x, y := fn(shapeInput{angle: a, radius: 2, wraps: 3, wave: waveSine})
		assert.InDelta(t, 2.0, math.Hypot(x, y), 1e-12)
	}
}

func TestModulatedCircle(t *testing.T) {
	in := shapeInput{angle: math.Pi / 4, radius: 1, wave: waveSquare, modulate: true}
	x, y := shapeCircle(in)
	assert.InDelta(t, 1.3, math.Hypot(x, y), 1e-12)
	in.angle = math.Pi * 1.5
	x, y = shapeCircle(in)
	assert.InDelta(t, 0.7, math.Hypot(x, y), 1e-12)
}

func TestStarAlwaysModulates(t *testing.T) {
	// A tenth of a revolution is a quarter of one lobe: sine peak.
	x, y := shapeStar(shapeInput{angle: twoPi * 0.05, radius: 1, wave: waveSine})
	assert.InDelta(t, 3.0, math.Hypot(x, y), 1e-9)
	x, y = shapeStar(shapeInput{angle: 0, radius: 1, wave: waveSine})
	assert.InDelta(t, 1.0, math.Hypot(x, y), 1e-12)
}

func TestSquareEdges(t *testing.T) {
	cases := []struct {
		turn   float64
		wx, wy float64
	}{
		{0, 1, -1},
		{0.125, 1, 0},
		{0.375, 0, 1},
		{0.625, -1, 0},
		{0.875, 0, -1},
	}
	for _, tc := range cases {
		x, y := shapeSquare(shapeInput{angle: tc.turn * twoPi, radius: 1, wave: waveSine})
		assert.InDelta(t, tc.wx, x, 1e-9, "turn %v", tc.turn)
		assert.InDelta(t, tc.wy, y, 1e-9, "turn %v", tc.turn)
	}
}

func TestSpiralGrowsOverWraps(t *testing.T) {
	in := shapeInput{radius: 1, wraps: 2, wave: waveSine}
	x, y := shapeSpiral(in)
	assert.InDelta(t, 1.0, math.Hypot(x, y), 1e-12)

	in.angle = twoPi * 2
	x, y = shapeSpiral(in)
	assert.InDelta(t, 1.5, math.Hypot(x, y), 1e-9)

	in.wraps = 0
	x, y = shapeSpiral(in)
	assert.InDelta(t, 1.0, math.Hypot(x, y), 1e-9)
}

func TestShapeForFallsBackToCircle(t *testing.T) {
	x, y := shapeFor(params.MonoShape(-1))(shapeInput{angle: 1, radius: 1, wave: waveSine})
	assert.InDelta(t, 1.0, math.Hypot(x, y), 1e-12)
}

func TestHueMapping(t *testing.T) {
	assert.InDelta(t, 0.75, energyHue(0), 1e-12)
	assert.InDelta(t, 0.05, energyHue(1), 1e-12)

	assert.InDelta(t, 0.05, bandHue(analyzer.BandBass, 0.5), 1e-12)
	assert.InDelta(t, 0.4, bandHue(analyzer.BandMid, 1), 1e-12)
	assert.InDelta(t, 0.5, bandHue(analyzer.BandHigh, 0), 1e-12)

	assert.InDelta(t, 0.1, shiftHue(0.9, 0.2, false), 1e-12)
	assert.InDelta(t, 0.9, shiftHue(0.1, -0.2, false), 1e-12)
	assert.InDelta(t, 0.75, shiftHue(0.25, 0, true), 1e-12)
	assert.InDelta(t, 0.0, shiftHue(0, 0, true), 1e-12)
	assert.InDelta(t, 0.15, segmentHue(0.9, 0.833333333333333333), 1e-9)
}

func TestHSVA(t *testing.T) {
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, hsva(0, 1, 1, 1))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, hsva(1, 1, 1, 1))
	assert.Equal(t, color.NRGBA{G: 255, A: 128}, hsva(1.0/3, 1, 1, 0.5))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, hsva(0.4, 0, 1, 1))
	assert.Equal(t, color.NRGBA{}, hsva(0.2, 1, 0, 0))
}

func TestRGBToANSI(t *testing.T) {
	assert.Equal(t, 16, rgbToANSI(0, 0, 0))
	assert.Equal(t, 196, rgbToANSI(1, 0, 0))
	assert.Equal(t, 255, rgbToANSI(1, 1, 1))
	assert.Equal(t, 21, rgbToANSI(0, 0, 1))
}
