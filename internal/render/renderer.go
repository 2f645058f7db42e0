package render

import (
	"fmt"
	"image"
	"math"

	"github.com/guidoenr/xyscope/internal/analyzer"
	"github.com/guidoenr/xyscope/internal/params"
)

const (
	// DefaultChunkSize is the number of samples sharing one color and
	// thickness within a frame.
	DefaultChunkSize = 128

	glowPasses    = 3
	particleEvery = 4
	wobbleRate    = 0.001
	hueSlide      = 0.3
	patternRadius = 0.4
	surfaceScale  = 0.45
)

// Options tune the renderer beyond the per-frame parameters.
type Options struct {
	ChunkSize int
	// DoubleCore draws the solid core line twice in line mode, which
	// thickens anti-aliased edges slightly.
	DoubleCore bool
	// BandFloor gates the bands that pick the FFT color so room noise
	// does not tint the trace. Zero disables the gate.
	BandFloor float64
}

// Block is one render tick's worth of stereo samples.
type Block struct {
	Left  []float32
	Right []float32
}

// Len returns the number of complete sample pairs.
func (b Block) Len() int { return min(len(b.Left), len(b.Right)) }

// Point is a surface pixel coordinate.
type Point struct{ X, Y float64 }

// Chunk holds the per-chunk color and geometry derived from the samples in
// [Start, End).
type Chunk struct {
	Start, End int

	Width     float64
	Energy    float64
	Hue       float64
	Sat       float64
	Val       float64
	Thickness float64
	Spread    float64
	Blend     float64
}

// Frame is the fully computed drawing plan for one block. Slices are owned
// by the renderer and stay valid until the next call to Plan or Render.
type Frame struct {
	Fade   float64
	Points []Point
	Chunks []Chunk

	Particle      bool
	GlowIntensity float64
	GlowSize      float64

	// Phase is the wobble phase after the block.
	Phase float64
}

// Renderer turns sample blocks into a persistent, fading vector image.
type Renderer struct {
	opts   Options
	canvas *Canvas
	phase  float64

	points []Point
	chunks []Chunk
}

// New creates a renderer with a cleared surface.
func New(width, height int, opts Options) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d height=%d", width, height)
	}
	if opts.ChunkSize < 2 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Renderer{
		opts:   opts,
		canvas: NewCanvas(width, height),
	}, nil
}

// Resize reallocates the surface when the size changes, dropping the trail.
// It reports whether a reallocation happened.
func (r *Renderer) Resize(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	w, h := r.canvas.Size()
	if w == width && h == height {
		return false
	}
	r.canvas = NewCanvas(width, height)
	return true
}

// Size returns the surface dimensions.
func (r *Renderer) Size() (int, int) { return r.canvas.Size() }

// Surface exposes the accumulation bitmap.
func (r *Renderer) Surface() *image.RGBA { return r.canvas.Image() }

// Reset clears the surface and the wobble phase.
func (r *Renderer) Reset() {
	r.canvas.Clear()
	r.phase = 0
}

// Render fades the surface and paints the block. Blocks shorter than two
// pairs leave the surface untouched.
func (r *Renderer) Render(block Block, p params.Snapshot, agc float64, bands analyzer.Bands) {
	frame := r.Plan(block, p, agc, bands)
	if len(frame.Points) < 2 {
		return
	}
	r.Paint(frame)
	r.phase = frame.Phase
}

// Plan computes point coordinates and chunk colors without touching the
// surface or the renderer's phase.
func (r *Renderer) Plan(block Block, p params.Snapshot, agc float64, bands analyzer.Bands) Frame {
	got := block.Len()
	if got < 2 {
		return Frame{Phase: r.phase}
	}
	p = p.Sanitize()
	if !isFinite(agc) {
		agc = 1
	}

	if cap(r.points) < got {
		r.points = make([]Point, got)
	}
	points := r.points[:got]
	chunks := r.chunks[:0]

	w, h := r.canvas.Size()
	cx, cy := float64(w)*0.5, float64(h)*0.5
	scale := surfaceScale * float64(min(w, h))

	userGain := math.Pow(10, p.GainDB/20)
	level := userGain * p.Zoom * agc
	sinR, cosR := math.Sincos(p.RotateDeg * math.Pi / 180)

	shape := shapeFor(p.MonoShape)
	in := shapeInput{
		wraps:    p.MonoWraps,
		wave:     waveFor(p.WaveType),
		modulate: p.WaveType != params.WaveSine,
	}
	dominant, dominantLevel := analyzer.Gate(bands, r.opts.BandFloor).Dominant()
	phase := r.phase

	for start := 0; start < got; start += r.opts.ChunkSize {
		end := min(start+r.opts.ChunkSize, got)
		if end-start < 2 {
			continue
		}
		left, right := block.Left[start:end], block.Right[start:end]
		ch := Chunk{Start: start, End: end}

		var widthSum, energySum float64
		for i := range left {
			l, rr := sample(left[i]), sample(right[i])
			widthSum += math.Abs(l - rr)
			m := 0.5 * (l + rr)
			energySum += m * m
		}
		n := float64(end - start)
		ch.Width = clamp01(widthSum/n*0.5) * (1 - p.MonoAmount)
		ch.Energy = clamp01(math.Sqrt(energySum/n) * 3)

		hue := energyHue(ch.Energy)
		if p.FFTColor {
			hue = bandHue(dominant, dominantLevel)
		}
		ch.Hue = shiftHue(hue, p.HueShift, p.InvertColors)
		ch.Sat = clamp01(remap(ch.Width, 0, 1, 0.55, 1) * p.Saturation)
		ch.Val = remap(ch.Energy, 0, 1, 0.75, 1)
		ch.Thickness = remap(ch.Width, 0, 1, 3.5, 1) * p.Thickness
		ch.Spread = remap(ch.Width, 0, 1, 20, 1)
		ch.Blend = clamp01(remap(ch.Width, 0, 0.2, 0.8, 0))

		for i := start; i < end; i++ {
			offset := math.Sin(phase) * p.DCOffset
			l := sample(block.Left[i]) + offset
			rr := sample(block.Right[i]) - offset
			mid := (l + rr) * 0.5
			side := (l - rr) * 0.5
			phase = math.Mod(phase+wobbleRate*math.Abs(p.DCOffset), twoPi)

			side *= (1 - p.MonoAmount) * ch.Spread

			in.angle = float64(i) / float64(got) * twoPi * p.MonoWraps
			in.radius = mid * patternRadius * level
			px, py := shape(in)

			sx := (mid + side) * level
			sy := (mid - side) * level

			x := sx*(1-ch.Blend) + px*ch.Blend
			y := sy*(1-ch.Blend) + py*ch.Blend

			xr := x*cosR - y*sinR
			yr := x*sinR + y*cosR
			points[i] = Point{X: cx + xr*scale, Y: cy - yr*scale}
		}
		chunks = append(chunks, ch)
	}
	r.chunks = chunks

	return Frame{
		Fade:          1 - p.Persistence,
		Points:        points,
		Chunks:        chunks,
		Particle:      p.ParticleMode,
		GlowIntensity: p.GlowIntensity,
		GlowSize:      p.GlowSize,
		Phase:         phase,
	}
}

// Paint applies a planned frame to the surface.
func (r *Renderer) Paint(f Frame) {
	r.canvas.Fade(f.Fade)
	for _, ch := range f.Chunks {
		if f.Particle {
			r.paintParticles(f, ch)
		} else {
			r.paintLines(f, ch)
		}
	}
}

func (r *Renderer) paintParticles(f Frame, ch Chunk) {
	size := ch.Thickness * 2
	n := float64(ch.End - ch.Start)
	for i := ch.Start; i < ch.End; i += particleEvery {
		hue := segmentHue(ch.Hue, float64(i-ch.Start)/n)
		pt := f.Points[i]
		if f.GlowIntensity > 0 {
			for pass := 0; pass < glowPasses; pass++ {
				mult, alpha, sat := glowLayer(pass, f.GlowSize, f.GlowIntensity)
				r.canvas.FillCircle(pt.X, pt.Y, size*mult, hsva(hue, sat, ch.Val, alpha))
			}
		}
		r.canvas.FillCircle(pt.X, pt.Y, size, hsva(hue, ch.Sat, ch.Val, 1))
	}
}

func (r *Renderer) paintLines(f Frame, ch Chunk) {
	n := float64(ch.End - ch.Start)
	for pass := 0; pass < glowPasses; pass++ {
		mult, alpha, sat := glowLayer(pass, f.GlowSize, f.GlowIntensity)
		if alpha <= 0 {
			continue
		}
		for i := ch.Start; i < ch.End-1; i++ {
			hue := segmentHue(ch.Hue, float64(i-ch.Start)/n)
			a, b := f.Points[i], f.Points[i+1]
			r.canvas.StrokeLine(a.X, a.Y, b.X, b.Y, ch.Thickness*mult, hsva(hue, sat, ch.Val, alpha))
		}
	}
	cores := 1
	if r.opts.DoubleCore {
		cores = 2
	}
	for c := 0; c < cores; c++ {
		for i := ch.Start; i < ch.End-1; i++ {
			hue := segmentHue(ch.Hue, float64(i-ch.Start)/n)
			a, b := f.Points[i], f.Points[i+1]
			r.canvas.StrokeLine(a.X, a.Y, b.X, b.Y, ch.Thickness, hsva(hue, ch.Sat, ch.Val, 1))
		}
	}
}

// glowLayer returns the size multiplier, alpha and saturation of one glow
// pass. Pass 0 is the widest.
func glowLayer(pass int, size, intensity float64) (mult, alpha, sat float64) {
	p := float64(pass)
	mult = size - p*size*0.3
	alpha = 0.15 / (p + 1) * intensity
	sat = remap(p, 0, glowPasses-1, 1, 0.7)
	return mult, alpha, sat
}

func segmentHue(hue, progress float64) float64 {
	return wrap01(hue + progress*hueSlide)
}

// sample treats non-finite input as silence.
func sample(v float32) float64 {
	f := float64(v)
	if !isFinite(f) {
		return 0
	}
	return f
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
