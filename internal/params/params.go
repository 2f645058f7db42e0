// Package params holds the user-adjustable visual parameters. Each value is
// stored in its own atomic so the control surface can write while the render
// tick reads without locks; the renderer works from an immutable Snapshot.
package params

import (
	"errors"
	"math"
	"sync/atomic"
)

// ErrUnknownParameter is returned when a parameter key is not registered.
var ErrUnknownParameter = errors.New("params: unknown parameter")

// ID identifies a parameter. Values are stable and used in the state blob.
type ID uint32

const (
	GainDB ID = iota
	Zoom
	RotateDeg
	Persistence
	Saturation
	HueShift
	MonoWraps
	MonoAmount
	Thickness
	Shape
	Wave
	GlowIntensity
	GlowSize
	ParticleMode
	FFTColor
	DCOffset
	InvertColors

	count
)

// Kind describes how a parameter is presented and snapped.
type Kind int

const (
	KindFloat Kind = iota
	KindChoice
	KindToggle
)

// Spec is the static description of one parameter.
type Spec struct {
	ID      ID       `json:"id"`
	Key     string   `json:"key"`
	Name    string   `json:"name"`
	Kind    Kind     `json:"kind"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Step    float64  `json:"step"`
	Default float64  `json:"default"`
	Skew    float64  `json:"skew"`
	Choices []string `json:"choices,omitempty"`
}

var specs = [count]Spec{
	GainDB:        {Key: "gainDb", Name: "Gain", Min: -24, Max: 24, Step: 0.01, Default: 0},
	Zoom:          {Key: "zoom", Name: "Zoom", Min: 0.25, Max: 4, Step: 0.001, Default: 1, Skew: 0.5},
	RotateDeg:     {Key: "rotateDeg", Name: "Rotate", Min: -180, Max: 180, Step: 0.01, Default: 0},
	Persistence:   {Key: "persistence", Name: "Tracer", Min: 0, Max: 1, Step: 0.001, Default: 0.85},
	Saturation:    {Key: "saturation", Name: "Saturate", Min: 0, Max: 2, Step: 0.01, Default: 1},
	HueShift:      {Key: "hueShift", Name: "Hue", Min: -0.5, Max: 0.5, Step: 0.01, Default: 0},
	MonoWraps:     {Key: "monoWraps", Name: "Mono Wraps", Min: 0.5, Max: 10, Step: 0.1, Default: 3},
	MonoAmount:    {Key: "monoAmount", Name: "Mono Amount", Min: 0, Max: 1, Step: 0.01, Default: 0},
	Thickness:     {Key: "thickness", Name: "Thick", Min: 0.1, Max: 10, Step: 0.1, Default: 1},
	Shape:         {Key: "monoShape", Name: "Mono Shape", Kind: KindChoice, Min: 0, Max: 3, Step: 1, Default: 0, Choices: shapeNames[:]},
	Wave:          {Key: "waveType", Name: "Wave Type", Kind: KindChoice, Min: 0, Max: 3, Step: 1, Default: 0, Choices: waveNames[:]},
	GlowIntensity: {Key: "glowIntensity", Name: "Glow Intensity", Min: 0, Max: 2, Step: 0.01, Default: 1},
	GlowSize:      {Key: "glowSize", Name: "Glow Size", Min: 1, Max: 15, Step: 0.1, Default: 5},
	ParticleMode:  {Key: "particleMode", Name: "Wave/Particle", Kind: KindToggle, Min: 0, Max: 1, Step: 1, Default: 0},
	FFTColor:      {Key: "fftMode", Name: "FFT Color Mode", Kind: KindToggle, Min: 0, Max: 1, Step: 1, Default: 0},
	DCOffset:      {Key: "dcOffset", Name: "R.E.M.", Min: -1, Max: 1, Step: 0.01, Default: 0},
	InvertColors:  {Key: "invertColors", Name: "Invert", Kind: KindToggle, Min: 0, Max: 1, Step: 1, Default: 0},
}

var byKey = make(map[string]ID, count)

func init() {
	for i := range specs {
		specs[i].ID = ID(i)
		if specs[i].Skew == 0 {
			specs[i].Skew = 1
		}
		byKey[specs[i].Key] = ID(i)
	}
}

// Specs returns a copy of every parameter description ordered by ID.
func Specs() []Spec {
	out := make([]Spec, count)
	copy(out, specs[:])
	return out
}

// SpecOf returns the description of id.
func SpecOf(id ID) (Spec, bool) {
	if id >= count {
		return Spec{}, false
	}
	return specs[id], true
}

// Lookup resolves a parameter key such as "gainDb".
func Lookup(key string) (ID, bool) {
	id, ok := byKey[key]
	return id, ok
}

// Clamp limits v to the range of the parameter and snaps it to the step.
func (s Spec) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return s.Default
	}
	v = clamp(v, s.Min, s.Max)
	if s.Step > 0 {
		v = s.Min + math.Round((v-s.Min)/s.Step)*s.Step
		v = clamp(v, s.Min, s.Max)
	}
	return v
}

// Normalize maps a plain value to [0,1], honoring the skew factor.
func (s Spec) Normalize(plain float64) float64 {
	if s.Max <= s.Min {
		return 0
	}
	proportion := clamp((plain-s.Min)/(s.Max-s.Min), 0, 1)
	if s.Skew != 1 && proportion > 0 {
		proportion = math.Pow(proportion, s.Skew)
	}
	return proportion
}

// Denormalize maps a [0,1] value back to the plain range.
func (s Spec) Denormalize(normalized float64) float64 {
	proportion := clamp(normalized, 0, 1)
	if s.Skew != 1 && proportion > 0 {
		proportion = math.Exp(math.Log(proportion) / s.Skew)
	}
	return s.Clamp(s.Min + proportion*(s.Max-s.Min))
}

// Registry stores the live parameter values.
type Registry struct {
	values [count]atomic.Uint64
}

// NewRegistry returns a registry populated with defaults.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Reset restores every parameter to its default.
func (r *Registry) Reset() {
	for i := range specs {
		r.values[i].Store(math.Float64bits(specs[i].Default))
	}
}

// Get returns the plain value of id.
func (r *Registry) Get(id ID) float64 {
	if id >= count {
		return 0
	}
	return math.Float64frombits(r.values[id].Load())
}

// Set stores a plain value, clamped and snapped to the parameter range.
func (r *Registry) Set(id ID, plain float64) {
	if id >= count {
		return
	}
	r.values[id].Store(math.Float64bits(specs[id].Clamp(plain)))
}

// SetByKey stores a plain value addressed by key.
func (r *Registry) SetByKey(key string, plain float64) error {
	id, ok := Lookup(key)
	if !ok {
		return ErrUnknownParameter
	}
	r.Set(id, plain)
	return nil
}

// Normalized returns the [0,1] value of id.
func (r *Registry) Normalized(id ID) float64 {
	if id >= count {
		return 0
	}
	return specs[id].Normalize(r.Get(id))
}

// SetNormalized stores a [0,1] value.
func (r *Registry) SetNormalized(id ID, normalized float64) {
	if id >= count {
		return
	}
	r.Set(id, specs[id].Denormalize(normalized))
}

// Toggle flips a boolean parameter.
func (r *Registry) Toggle(id ID) {
	if r.Get(id) > 0.5 {
		r.Set(id, 0)
		return
	}
	r.Set(id, 1)
}

// Cycle advances a choice parameter, wrapping at the end.
func (r *Registry) Cycle(id ID) {
	s, ok := SpecOf(id)
	if !ok || s.Kind != KindChoice {
		return
	}
	next := r.Get(id) + 1
	if next > s.Max {
		next = s.Min
	}
	r.Set(id, next)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
