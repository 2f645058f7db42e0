package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/xyscope/internal/analyzer"
	"github.com/guidoenr/xyscope/internal/audio"
	"github.com/guidoenr/xyscope/internal/config"
	"github.com/guidoenr/xyscope/internal/engine"
	"github.com/guidoenr/xyscope/internal/params"
	"github.com/guidoenr/xyscope/internal/render"
	"github.com/guidoenr/xyscope/internal/web"
)

const (
	defaultTargetFPS   = 60
	defaultSynthRate   = 48000
	defaultSynthBlock  = 512
	fpsSmoothing       = 0.1
	inputEventCapacity = 16
)

// Config configures the application runtime.
type Config struct {
	Audio audio.Config
	// DisableAudio replaces the sound card with a synthetic Signal.
	DisableAudio bool
	Signal       Signal

	TargetFPS    float64
	Width        int
	Height       int
	RingCapacity int

	Presenter render.Kind
	// Display overrides Presenter with an already open display.
	Display  render.Presenter
	Analyzer analyzer.Config
	Render   render.Options
	Params   *params.Registry

	WebAddr      string
	SettingsPath string
	Settings     func() config.Settings

	ProfilePath string
	// Keyboard enables single-key parameter toggles on the controlling
	// terminal.
	Keyboard bool
	Logger   *slog.Logger
}

type inputEvent int

const (
	inputEventCycleShape inputEvent = iota
	inputEventCycleWave
	inputEventParticles
	inputEventFFTColor
	inputEventInvert
	inputEventReset
	inputEventQuit
)

// App ties together the audio source, the engine and the display.
type App struct {
	cfg       Config
	engine    *engine.Engine
	stream    *audio.Stream
	fake      *fakeGenerator
	presenter render.Presenter
	profiler  *profiler
	log       *slog.Logger

	inputEvents chan inputEvent
	last        time.Time
	fps         atomic.Uint64
}

// New opens the audio source and display and builds the engine.
func New(cfg Config) (*App, error) {
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = defaultTargetFPS
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Params == nil {
		cfg.Params = params.NewRegistry()
	}
	if cfg.Signal == "" {
		cfg.Signal = SignalMono
	}
	if cfg.Audio.Logger == nil {
		cfg.Audio.Logger = cfg.Logger
	}

	a := &App{cfg: cfg, log: cfg.Logger}

	var (
		sel        audio.Selection
		sampleRate float64
	)
	if cfg.DisableAudio {
		sampleRate = cfg.Audio.SampleRate
		if sampleRate <= 0 {
			sampleRate = defaultSynthRate
		}
	} else {
		var err error
		sel, err = audio.Select(cfg.Audio)
		if err != nil {
			return nil, fmt.Errorf("audio device: %w", err)
		}
		sampleRate = sel.SampleRate
	}

	a.profiler = newProfiler(cfg.ProfilePath, a.log)
	eng, err := engine.New(engine.Config{
		SampleRate:   sampleRate,
		RingCapacity: cfg.RingCapacity,
		Width:        cfg.Width,
		Height:       cfg.Height,
		Analyzer:     cfg.Analyzer,
		Render:       cfg.Render,
		Params:       cfg.Params,
		Trace:        a.profiler.markSection,
		Logger:       a.log,
	})
	if err != nil {
		_ = a.profiler.Close()
		return nil, err
	}
	a.engine = eng

	if cfg.Display != nil {
		a.presenter = cfg.Display
	} else {
		width, height := eng.Size()
		a.presenter, err = render.NewPresenter(cfg.Presenter, width, height)
		if err != nil {
			_ = a.profiler.Close()
			return nil, fmt.Errorf("presenter: %w", err)
		}
	}

	if cfg.DisableAudio {
		block := cfg.Audio.FramesPerBuffer
		if block <= 0 {
			block = defaultSynthBlock
		}
		a.fake = newFakeGenerator(cfg.Signal, sampleRate, block)
		a.log.Info("audio disabled, using synthetic generator", "signal", cfg.Signal, "rate", sampleRate)
	} else {
		a.stream, err = audio.Open(sel, cfg.Audio, eng)
		if err != nil {
			_ = a.presenter.Close()
			_ = a.profiler.Close()
			return nil, fmt.Errorf("audio stream: %w", err)
		}
	}
	return a, nil
}

// Engine returns the running engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// Params, Snapshot and Status let the web control surface drive the app.
func (a *App) Params() *params.Registry { return a.engine.Params() }

func (a *App) Snapshot() *image.RGBA { return a.engine.Snapshot() }

func (a *App) Status() render.Status { return a.engine.Status(a.FPS()) }

// Reset restores default parameters and clears the trace.
func (a *App) Reset() {
	a.engine.Params().Reset()
	a.engine.RequestReset()
}

// FPS returns the smoothed presentation rate.
func (a *App) FPS() float64 { return math.Float64frombits(a.fps.Load()) }

// Run starts the render loop until context cancellation, a quit key or the
// display being closed.
func (a *App) Run(ctx context.Context) error {
	frameDuration := time.Duration(float64(time.Second) / a.cfg.TargetFPS)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	if a.fake != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.fake.Run(runCtx, a.engine)
		}()
	}
	if a.cfg.WebAddr != "" {
		server := web.New(a, web.Config{
			Addr:         a.cfg.WebAddr,
			SettingsPath: a.cfg.SettingsPath,
			Settings:     a.cfg.Settings,
			Logger:       a.log,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Run(runCtx); err != nil {
				a.log.Error("control surface stopped", "error", err)
			}
		}()
	}
	if a.cfg.Keyboard {
		a.startInputListener(runCtx)
	}

	a.last = time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-a.inputEvents:
			if !ok {
				a.inputEvents = nil
				continue
			}
			if evt == inputEventQuit {
				return nil
			}
			a.applyInput(evt)
		case <-ticker.C:
			if err := a.step(); err != nil {
				if errors.Is(err, render.ErrPresenterQuit) {
					return nil
				}
				return err
			}
		}
	}
}

// Close releases the audio stream, display and profiler.
func (a *App) Close() error {
	var errs []error
	if a.stream != nil {
		errs = append(errs, a.stream.Close())
	}
	if a.presenter != nil {
		errs = append(errs, a.presenter.Close())
	}
	errs = append(errs, a.profiler.Close())
	return errors.Join(errs...)
}

func (a *App) step() error {
	now := time.Now()
	delta := now.Sub(a.last).Seconds()
	if delta <= 0 {
		delta = 1.0 / a.cfg.TargetFPS
	}
	a.last = now
	a.updateFPS(1 / delta)

	a.profiler.beginFrame()
	if sizer, ok := a.presenter.(render.Sizer); ok {
		if w, h := sizer.Size(); w > 0 && h > 0 {
			a.engine.Resize(w, h)
		}
	}
	a.engine.OnTick()
	err := a.presenter.Present(a.engine.Surface(), a.Status())
	a.profiler.markSection("present")
	a.profiler.endFrame()
	return err
}

func (a *App) updateFPS(instant float64) {
	prev := a.FPS()
	next := instant
	if prev > 0 {
		next = prev + (instant-prev)*fpsSmoothing
	}
	a.fps.Store(math.Float64bits(next))
}

func (a *App) applyInput(evt inputEvent) {
	reg := a.engine.Params()
	switch evt {
	case inputEventCycleShape:
		reg.Cycle(params.Shape)
	case inputEventCycleWave:
		reg.Cycle(params.Wave)
	case inputEventParticles:
		reg.Toggle(params.ParticleMode)
	case inputEventFFTColor:
		reg.Toggle(params.FFTColor)
	case inputEventInvert:
		reg.Toggle(params.InvertColors)
	case inputEventReset:
		a.Reset()
		a.log.Info("parameters reset to defaults")
		return
	default:
		return
	}
	s := reg.Snapshot()
	a.log.Debug("parameters changed",
		"shape", s.MonoShape,
		"wave", s.WaveType,
		"particles", s.ParticleMode,
		"fft", s.FFTColor,
		"invert", s.InvertColors,
	)
}

var keyBindings = map[rune]inputEvent{
	's': inputEventCycleShape,
	'w': inputEventCycleWave,
	'p': inputEventParticles,
	'f': inputEventFFTColor,
	'i': inputEventInvert,
	'r': inputEventReset,
	'q': inputEventQuit,
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.Warn("keyboard input disabled", "error", err)
		a.inputEvents = nil
		return
	}

	events := make(chan inputEvent, inputEventCapacity)
	a.inputEvents = events

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			if key == keyboard.KeyEsc || key == keyboard.KeyCtrlC {
				events <- inputEventQuit
				return
			}
			evt, ok := lookupKey(char)
			if !ok {
				continue
			}
			if evt == inputEventQuit {
				events <- evt
				return
			}
			select {
			case events <- evt:
			default:
			}
		}
	}()
}

func lookupKey(char rune) (inputEvent, bool) {
	if char >= 'A' && char <= 'Z' {
		char += 'a' - 'A'
	}
	evt, ok := keyBindings[char]
	return evt, ok
}
