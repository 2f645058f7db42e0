// Package analyzer runs a fixed-size spectral analysis inside the audio
// callback and publishes three band energies for the render tick.
package analyzer

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/mjibson/go-dsp/window"
)

const (
	defaultSize       = 1024
	defaultSampleRate = 44_100
	defaultScale      = 0.1

	bassCutoffHz = 250.0
	midCutoffHz  = 2000.0
)

// Config controls Analyzer behavior.
type Config struct {
	SampleRate float64
	// Size is the window length in samples, rounded up to a power of two.
	Size    int
	Backend Backend
	// Window is "rect" (default) or "hann".
	Window string
	// Scale multiplies band averages before clamping to [0,1].
	Scale float64
	// Attack and Release are the per-window smoothing coefficients applied
	// when a band rises or falls. Zero means 1, which publishes each window
	// unsmoothed.
	Attack  float64
	Release float64
}

// Analyzer accumulates mono samples into a window and, each time the window
// fills, reduces its magnitude spectrum into bass/mid/high energies.
//
// Update must be called from a single goroutine (the audio callback). Bands
// may be called concurrently from any goroutine; each band is published
// independently.
type Analyzer struct {
	sampleRate float64
	size       int
	transform  Transform
	window     []float64

	frame []float64
	work  []float64
	mags  []float64
	pos   int

	bassEnd int
	midEnd  int
	scale   float64
	attack  float64
	release float64

	bass    atomicFloat
	mid     atomicFloat
	high    atomicFloat
	windows atomic.Uint64
}

// New creates an Analyzer. All buffers are allocated here so Update never
// allocates.
func New(cfg Config) (*Analyzer, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.Size <= 0 {
		cfg.Size = defaultSize
	}
	size := nextPow2(cfg.Size)
	if size < 16 {
		return nil, fmt.Errorf("analysis window %d too small", cfg.Size)
	}
	if cfg.Scale <= 0 {
		cfg.Scale = defaultScale
	}
	if cfg.Attack <= 0 || cfg.Attack > 1 {
		cfg.Attack = 1
	}
	if cfg.Release <= 0 || cfg.Release > 1 {
		cfg.Release = 1
	}

	var win []float64
	switch strings.ToLower(cfg.Window) {
	case "", "rect", "rectangular":
	case "hann", "hanning":
		win = window.Hann(size)
	default:
		return nil, fmt.Errorf("unknown analysis window %q", cfg.Window)
	}

	a := &Analyzer{
		sampleRate: cfg.SampleRate,
		size:       size,
		transform:  NewTransform(cfg.Backend, size),
		window:     win,
		frame:      make([]float64, size),
		work:       make([]float64, size),
		mags:       make([]float64, size/2),
		scale:      cfg.Scale,
		attack:     cfg.Attack,
		release:    cfg.Release,
	}
	a.bassEnd, a.midEnd = bandEdges(cfg.SampleRate, size)
	return a, nil
}

// Size returns the window length.
func (a *Analyzer) Size() int { return a.size }

// Edges returns the first mid bin and the first high bin.
func (a *Analyzer) Edges() (midStart, highStart int) { return a.bassEnd, a.midEnd }

// Windows returns the number of completed transforms.
func (a *Analyzer) Windows() uint64 { return a.windows.Load() }

// Bands returns the latest published energies.
func (a *Analyzer) Bands() Bands {
	return Bands{Bass: a.bass.Load(), Mid: a.mid.Load(), High: a.high.Load()}
}

// Update appends mono samples to the current window, analysing and
// resetting it each time it fills. Windows do not overlap.
func (a *Analyzer) Update(mono []float32) {
	for _, s := range mono {
		a.push(float64(s))
	}
}

// UpdateStereo mixes left and right to mono and appends them.
func (a *Analyzer) UpdateStereo(left, right []float32) {
	n := min(len(left), len(right))
	for i := 0; i < n; i++ {
		a.push(float64(left[i]+right[i]) * 0.5)
	}
}

// Reset clears the partially filled window and the published bands.
// It must not race with Update.
func (a *Analyzer) Reset() {
	a.pos = 0
	a.bass.Store(0)
	a.mid.Store(0)
	a.high.Store(0)
}

func (a *Analyzer) push(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	a.frame[a.pos] = v
	a.pos++
	if a.pos < a.size {
		return
	}
	a.pos = 0
	a.analyse()
}

func (a *Analyzer) analyse() {
	src := a.frame
	if a.window != nil {
		for i, v := range a.frame {
			a.work[i] = v * a.window[i]
		}
		src = a.work
	}
	a.transform.Magnitudes(a.mags, src)

	bass := average(a.mags[:a.bassEnd])
	mid := average(a.mags[a.bassEnd:a.midEnd])
	high := average(a.mags[a.midEnd:])

	a.bass.Store(a.smooth(a.bass.Load(), clamp(bass*a.scale, 0, 1)))
	a.mid.Store(a.smooth(a.mid.Load(), clamp(mid*a.scale, 0, 1)))
	a.high.Store(a.smooth(a.high.Load(), clamp(high*a.scale, 0, 1)))
	a.windows.Add(1)
}

func (a *Analyzer) smooth(current, target float64) float64 {
	if target > current {
		return current + (target-current)*a.attack
	}
	return current + (target-current)*a.release
}

// bandEdges returns the exclusive upper bins of the bass and mid ranges for
// a transform of size bins at sampleRate. Each range keeps at least one bin.
func bandEdges(sampleRate float64, size int) (bassEnd, midEnd int) {
	half := size / 2
	resolution := sampleRate / float64(size)
	bassEnd = int(math.Ceil(bassCutoffHz / resolution))
	bassEnd = clampInt(bassEnd, 1, half-2)
	midEnd = int(math.Ceil(midCutoffHz / resolution))
	midEnd = clampInt(midEnd, bassEnd+1, half-1)
	return bassEnd, midEnd
}

type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.bits.Load()) }
func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

func clampInt(v, minVal, maxVal int) int {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
