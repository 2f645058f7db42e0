package render

import (
	"math"

	"github.com/guidoenr/xyscope/internal/params"
)

const twoPi = 2 * math.Pi

// waveFunc evaluates one cycle of a periodic function; phase is in [0,1)
// and the result in [-1,1].
type waveFunc func(phase float64) float64

var waveRegistry = [...]waveFunc{
	params.WaveSine:     waveSine,
	params.WaveTriangle: waveTriangle,
	params.WaveSquare:   waveSquare,
	params.WaveSawtooth: waveSawtooth,
}

func waveFor(w params.WaveType) waveFunc {
	if w < 0 || int(w) >= len(waveRegistry) {
		return waveSine
	}
	return waveRegistry[w]
}

func waveSine(phase float64) float64 { return math.Sin(phase * twoPi) }

func waveTriangle(phase float64) float64 {
	if phase < 0.5 {
		return remap(phase, 0, 0.5, -1, 1)
	}
	return remap(phase, 0.5, 1, 1, -1)
}

func waveSquare(phase float64) float64 {
	if phase < 0.5 {
		return 1
	}
	return -1
}

func waveSawtooth(phase float64) float64 { return remap(phase, 0, 1, -1, 1) }

// shapeInput carries the per-sample values a mono shape needs.
type shapeInput struct {
	angle  float64
	radius float64
	wraps  float64
	wave   waveFunc
	// modulate is false for the plain sine setting, which leaves circle,
	// square and spiral unmodulated.
	modulate bool
}

type shapeFunc func(in shapeInput) (x, y float64)

var shapeRegistry = [...]shapeFunc{
	params.ShapeCircle: shapeCircle,
	params.ShapeStar:   shapeStar,
	params.ShapeSquare: shapeSquare,
	params.ShapeSpiral: shapeSpiral,
}

func shapeFor(s params.MonoShape) shapeFunc {
	if s < 0 || int(s) >= len(shapeRegistry) {
		return shapeCircle
	}
	return shapeRegistry[s]
}

func cyclePhase(angle float64) float64 {
	return math.Mod(angle/twoPi, 1)
}

func shapeCircle(in shapeInput) (float64, float64) {
	r := in.radius
	if in.modulate {
		r *= 1 + 0.3*in.wave(cyclePhase(in.angle))
	}
	sin, cos := math.Sincos(in.angle)
	return cos * r, sin * r
}

// shapeStar always modulates: five lobes per revolution.
func shapeStar(in shapeInput) (float64, float64) {
	phase := math.Mod(in.angle/twoPi, 0.2) / 0.2
	r := in.radius * (1 + 2*in.wave(phase))
	sin, cos := math.Sincos(in.angle)
	return cos * r, sin * r
}

func shapeSquare(in shapeInput) (float64, float64) {
	t := cyclePhase(in.angle)
	r := in.radius
	if in.modulate {
		r *= 1 + 0.4*in.wave(t)
	}
	switch {
	case t < 0.25:
		return r, remap(t, 0, 0.25, -r, r)
	case t < 0.5:
		return remap(t, 0.25, 0.5, r, -r), r
	case t < 0.75:
		return -r, remap(t, 0.5, 0.75, r, -r)
	default:
		return remap(t, 0.75, 1, -r, r), -r
	}
}

// shapeSpiral grows the radius by half over the full set of wraps.
func shapeSpiral(in shapeInput) (float64, float64) {
	r := in.radius
	if in.wraps > 0 {
		r *= 1 + in.angle/(twoPi*in.wraps)*0.5
	}
	if in.modulate {
		r *= 1 + 0.3*in.wave(cyclePhase(in.angle))
	}
	sin, cos := math.Sincos(in.angle)
	return cos * r, sin * r
}
