package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// MonoShape selects the parametric curve used for near-mono content.
type MonoShape int

const (
	ShapeCircle MonoShape = iota
	ShapeStar
	ShapeSquare
	ShapeSpiral
)

var shapeNames = [...]string{"circle", "star", "square", "spiral"}

func (s MonoShape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return shapeNames[0]
	}
	return shapeNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s MonoShape) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalJSON accepts a shape name or its index. Indexes are rounded and
// clamped onto the known shapes; null leaves s unchanged.
func (s *MonoShape) UnmarshalJSON(b []byte) error {
	i, err := decodeChoice(b, shapeNames[:])
	if err != nil {
		return fmt.Errorf("mono shape: %w", err)
	}
	if i >= 0 {
		*s = MonoShape(i)
	}
	return nil
}

// decodeChoice reads a JSON choice as a name or number. It returns -1 for
// null.
func decodeChoice(b []byte, names []string) (int, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return -1, nil
	}
	var num float64
	if err := json.Unmarshal(b, &num); err == nil {
		return int(clamp(math.Round(num), 0, float64(len(names)-1))), nil
	}
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return 0, fmt.Errorf("want a name or an index, got %s", b)
	}
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown choice %q", name)
}

// WaveType selects the periodic function that modulates the mono shape.
type WaveType int

const (
	WaveSine WaveType = iota
	WaveTriangle
	WaveSquare
	WaveSawtooth
)

var waveNames = [...]string{"sine", "triangle", "square", "sawtooth"}

func (w WaveType) String() string {
	if w < 0 || int(w) >= len(waveNames) {
		return waveNames[0]
	}
	return waveNames[w]
}

// MarshalText implements encoding.TextMarshaler.
func (w WaveType) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

// UnmarshalJSON accepts a wave name or its index, like MonoShape.
func (w *WaveType) UnmarshalJSON(b []byte) error {
	i, err := decodeChoice(b, waveNames[:])
	if err != nil {
		return fmt.Errorf("wave type: %w", err)
	}
	if i >= 0 {
		*w = WaveType(i)
	}
	return nil
}

// Snapshot is an immutable copy of every visual parameter, taken once per
// render tick and passed to the renderer by value.
type Snapshot struct {
	GainDB        float64   `json:"gainDb"`
	Zoom          float64   `json:"zoom"`
	RotateDeg     float64   `json:"rotateDeg"`
	Persistence   float64   `json:"persistence"`
	Saturation    float64   `json:"saturation"`
	HueShift      float64   `json:"hueShift"`
	MonoWraps     float64   `json:"monoWraps"`
	MonoAmount    float64   `json:"monoAmount"`
	Thickness     float64   `json:"thickness"`
	MonoShape     MonoShape `json:"monoShape"`
	WaveType      WaveType  `json:"waveType"`
	GlowIntensity float64   `json:"glowIntensity"`
	GlowSize      float64   `json:"glowSize"`
	ParticleMode  bool      `json:"particleMode"`
	FFTColor      bool      `json:"fftMode"`
	DCOffset      float64   `json:"dcOffset"`
	InvertColors  bool      `json:"invertColors"`
}

// Defaults returns the snapshot of a freshly created registry.
func Defaults() Snapshot {
	var v [count]float64
	for i := range specs {
		v[i] = specs[i].Default
	}
	return fromValues(v)
}

// Sanitize returns a copy with every field clamped to its parameter range.
func (s Snapshot) Sanitize() Snapshot {
	v := s.values()
	for i := range v {
		v[i] = specs[i].Clamp(v[i])
	}
	return fromValues(v)
}

// Snapshot copies the current values. Individual fields may be written
// concurrently; no cross-field consistency is guaranteed.
func (r *Registry) Snapshot() Snapshot {
	var v [count]float64
	for i := range v {
		v[i] = r.Get(ID(i))
	}
	return fromValues(v)
}

// Restore stores every field of s, clamping out-of-range values.
func (r *Registry) Restore(s Snapshot) {
	for i, v := range s.values() {
		r.Set(ID(i), v)
	}
}

func (s Snapshot) values() [count]float64 {
	var v [count]float64
	v[GainDB] = s.GainDB
	v[Zoom] = s.Zoom
	v[RotateDeg] = s.RotateDeg
	v[Persistence] = s.Persistence
	v[Saturation] = s.Saturation
	v[HueShift] = s.HueShift
	v[MonoWraps] = s.MonoWraps
	v[MonoAmount] = s.MonoAmount
	v[Thickness] = s.Thickness
	v[Shape] = float64(s.MonoShape)
	v[Wave] = float64(s.WaveType)
	v[GlowIntensity] = s.GlowIntensity
	v[GlowSize] = s.GlowSize
	v[ParticleMode] = boolValue(s.ParticleMode)
	v[FFTColor] = boolValue(s.FFTColor)
	v[DCOffset] = s.DCOffset
	v[InvertColors] = boolValue(s.InvertColors)
	return v
}

func fromValues(v [count]float64) Snapshot {
	return Snapshot{
		GainDB:        v[GainDB],
		Zoom:          v[Zoom],
		RotateDeg:     v[RotateDeg],
		Persistence:   v[Persistence],
		Saturation:    v[Saturation],
		HueShift:      v[HueShift],
		MonoWraps:     v[MonoWraps],
		MonoAmount:    v[MonoAmount],
		Thickness:     v[Thickness],
		MonoShape:     MonoShape(int(v[Shape])),
		WaveType:      WaveType(int(v[Wave])),
		GlowIntensity: v[GlowIntensity],
		GlowSize:      v[GlowSize],
		ParticleMode:  v[ParticleMode] > 0.5,
		FFTColor:      v[FFTColor] > 0.5,
		DCOffset:      v[DCOffset],
		InvertColors:  v[InvertColors] > 0.5,
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
