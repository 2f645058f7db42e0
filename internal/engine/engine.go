// Package engine joins the audio-block callback to the render tick.
//
// Process runs on the audio goroutine and must not block or allocate.
// OnTick, Resize and Surface belong to the render goroutine. Everything the
// two share goes through the sample ring, the analyzer's published bands
// and the parameter registry.
package engine

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guidoenr/xyscope/internal/analyzer"
	"github.com/guidoenr/xyscope/internal/gain"
	"github.com/guidoenr/xyscope/internal/params"
	"github.com/guidoenr/xyscope/internal/render"
	"github.com/guidoenr/xyscope/internal/ring"
)

const (
	// DefaultPullSize is the most sample pairs one tick consumes.
	DefaultPullSize = 4096

	DefaultWidth  = 600
	DefaultHeight = 600

	dropLogInterval = time.Second
)

// Config controls Engine construction. Zero values pick defaults.
type Config struct {
	SampleRate   float64
	RingCapacity int
	PullSize     int
	Width        int
	Height       int

	Analyzer analyzer.Config
	Gain     gain.Config
	Render   render.Options

	// Params is shared with control surfaces; nil creates a fresh registry.
	Params *params.Registry
	// Trace, when set, is called after each tick phase with its name.
	Trace  func(section string)
	Logger *slog.Logger
}

// Stats is the latest render-side view of the pipeline.
type Stats struct {
	Ticks   uint64         `json:"ticks"`
	Pulled  int            `json:"pulled"`
	Levels  gain.Levels    `json:"levels"`
	Bands   analyzer.Bands `json:"bands"`
	Dropped uint64         `json:"dropped"`
	Windows uint64         `json:"windows"`
}

// Engine owns the sample ring, the spectral analyzer, the auto-gain
// controller and the renderer.
type Engine struct {
	params   *params.Registry
	ring     *ring.Ring
	analyzer *analyzer.Analyzer
	agc      *gain.Controller
	renderer *render.Renderer
	pull     int
	trace    func(string)
	log      *slog.Logger

	scratchL []float32
	scratchR []float32

	lastDropped uint64
	lastDropLog time.Time

	resetRender atomic.Bool
	resetAudio  atomic.Bool

	mu       sync.RWMutex
	stats    Stats
	snapshot *image.RGBA
}

// New builds an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PullSize <= 0 {
		cfg.PullSize = DefaultPullSize
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.Params == nil {
		cfg.Params = params.NewRegistry()
	}
	if cfg.SampleRate > 0 {
		cfg.Analyzer.SampleRate = cfg.SampleRate
	}

	an, err := analyzer.New(cfg.Analyzer)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	rd, err := render.New(cfg.Width, cfg.Height, cfg.Render)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}

	e := &Engine{
		params:   cfg.Params,
		ring:     ring.New(cfg.RingCapacity),
		analyzer: an,
		agc:      gain.New(cfg.Gain),
		renderer: rd,
		pull:     cfg.PullSize,
		trace:    cfg.Trace,
		log:      cfg.Logger,
		scratchL: make([]float32, cfg.PullSize),
		scratchR: make([]float32, cfg.PullSize),
	}
	e.stats.Levels = e.agc.Last()
	e.publishSurface()
	midBin, highBin := an.Edges()
	e.log.Debug("engine ready",
		"ring", e.ring.Capacity(),
		"fft", an.Size(),
		"midBin", midBin,
		"highBin", highBin,
		"width", cfg.Width,
		"height", cfg.Height,
	)
	return e, nil
}

// Params returns the shared parameter registry.
func (e *Engine) Params() *params.Registry { return e.params }

// Process is the audio-block callback. in and out carry one slice per
// channel. Output equals input; output channels without a matching input
// are zeroed. A single input channel feeds both sides of the scope.
func (e *Engine) Process(in, out [][]float32) {
	for c, dst := range out {
		if c < len(in) {
			n := copy(dst, in[c])
			clear(dst[n:])
		} else {
			clear(dst)
		}
	}
	if len(in) == 0 {
		return
	}
	left, right := in[0], in[0]
	if len(in) > 1 {
		right = in[1]
	}
	n := min(len(left), len(right))
	if n == 0 {
		return
	}
	e.ring.Write(left[:n], right[:n])
	if e.resetAudio.Swap(false) {
		e.analyzer.Reset()
	}
	e.analyzer.UpdateStereo(left[:n], right[:n])
}

// OnTick drains up to the pull size from the ring, advances the auto-gain
// controller and renders. With fewer than two pairs available the surface
// and gain state are left alone. It reports whether a frame was drawn.
func (e *Engine) OnTick() bool {
	if e.resetRender.Swap(false) {
		e.ring.Reset()
		e.renderer.Reset()
		e.agc.Reset()
		e.mu.Lock()
		e.stats.Levels = e.agc.Last()
		e.mu.Unlock()
		e.publishSurface()
		e.log.Info("pipeline reset")
	}
	got := e.ring.Read(e.scratchL, e.scratchR)
	e.mark("pull")
	if got < 2 {
		e.mu.Lock()
		e.stats.Ticks++
		e.stats.Pulled = got
		e.mu.Unlock()
		return false
	}
	left, right := e.scratchL[:got], e.scratchR[:got]

	levels := e.agc.Update(left, right)
	e.mark("agc")

	bands := e.analyzer.Bands()
	e.renderer.Render(render.Block{Left: left, Right: right}, e.params.Snapshot(), levels.Gain, bands)
	e.mark("render")

	dropped := e.ring.Dropped()
	e.mu.Lock()
	e.stats.Ticks++
	e.stats.Pulled = got
	e.stats.Levels = levels
	e.stats.Bands = bands
	e.stats.Dropped = dropped
	e.stats.Windows = e.analyzer.Windows()
	e.snapshot = render.Opaque(e.snapshot, e.renderer.Surface())
	e.mu.Unlock()
	e.mark("publish")

	e.logDrops(dropped)
	return true
}

// RequestReset drops queued samples, clears the trail and returns the gain
// to unity on the next tick; the analysis window restarts with the next
// audio block. Safe from any goroutine.
func (e *Engine) RequestReset() {
	e.resetRender.Store(true)
	e.resetAudio.Store(true)
}

// Resize adapts the surface to a new display area, clearing the trail.
func (e *Engine) Resize(width, height int) {
	if e.renderer.Resize(width, height) {
		e.log.Info("surface reallocated", "width", width, "height", height)
		e.publishSurface()
	}
}

// Size returns the surface dimensions.
func (e *Engine) Size() (width, height int) { return e.renderer.Size() }

// Surface is the live accumulation bitmap. Render goroutine only.
func (e *Engine) Surface() *image.RGBA { return e.renderer.Surface() }

// Snapshot returns a copy of the latest frame, opaque over black. Safe
// from any goroutine.
func (e *Engine) Snapshot() *image.RGBA {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return render.Opaque(nil, e.snapshot)
}

// Stats returns the latest tick statistics. Safe from any goroutine.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// Status summarises the engine for a presenter.
func (e *Engine) Status(fps float64) render.Status {
	st := e.Stats()
	p := e.params.Snapshot()
	return render.Status{
		FPS:      fps,
		Gain:     st.Levels.Gain,
		Energy:   st.Levels.Energy,
		Bands:    st.Bands,
		Dropped:  st.Dropped,
		Windows:  st.Windows,
		Shape:    p.MonoShape,
		Wave:     p.WaveType,
		Particle: p.ParticleMode,
		FFTColor: p.FFTColor,
	}
}

func (e *Engine) publishSurface() {
	e.mu.Lock()
	e.snapshot = render.Opaque(e.snapshot, e.renderer.Surface())
	e.mu.Unlock()
}

func (e *Engine) mark(section string) {
	if e.trace != nil {
		e.trace(section)
	}
}

func (e *Engine) logDrops(total uint64) {
	if total == e.lastDropped {
		return
	}
	now := time.Now()
	if now.Sub(e.lastDropLog) < dropLogInterval {
		return
	}
	e.log.Debug("ring overflow", "dropped", total-e.lastDropped, "total", total)
	e.lastDropped = total
	e.lastDropLog = now
}
