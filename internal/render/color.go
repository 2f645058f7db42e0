package render

import (
	"image/color"
	"math"

	"github.com/guidoenr/xyscope/internal/analyzer"
	"github.com/lucasb-eyer/go-colorful"
)

// hsva converts hue, saturation and value in [0,1] plus an alpha in [0,1]
// into a non-premultiplied color.
func hsva(h, s, v, a float64) color.NRGBA {
	c := colorful.Hsv(wrap01(h)*360, clamp01(s), clamp01(v)).Clamped()
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(clamp01(a) * 255))}
}

// energyHue maps the energy norm from blue-violet (quiet) to red (loud).
func energyHue(energyNorm float64) float64 {
	return remap(energyNorm, 0, 1, 0.75, 0.05)
}

// bandHue maps the dominant band into its hue sub-range: bass red/orange,
// mid green/yellow, high cyan/blue.
func bandHue(band analyzer.Band, level float64) float64 {
	switch band {
	case analyzer.BandMid:
		return remap(level, 0, 1, 0.25, 0.4)
	case analyzer.BandHigh:
		return remap(level, 0, 1, 0.5, 0.65)
	default:
		return remap(level, 0, 1, 0.0, 0.1)
	}
}

// shiftHue adds the user hue shift and optionally inverts, both modulo 1.
func shiftHue(hue, shift float64, invert bool) float64 {
	hue = wrap01(hue + shift)
	if invert {
		hue = wrap01(1 - hue)
	}
	return hue
}

func wrap01(v float64) float64 {
	v = math.Mod(v, 1)
	if v < 0 {
		v++
	}
	return v
}

func remap(v, inLo, inHi, outLo, outHi float64) float64 {
	return outLo + (v-inLo)/(inHi-inLo)*(outHi-outLo)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
