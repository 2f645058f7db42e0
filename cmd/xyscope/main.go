package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/guidoenr/xyscope/internal/analyzer"
	"github.com/guidoenr/xyscope/internal/app"
	"github.com/guidoenr/xyscope/internal/audio"
	"github.com/guidoenr/xyscope/internal/config"
	"github.com/guidoenr/xyscope/internal/logger"
	"github.com/guidoenr/xyscope/internal/params"
	"github.com/guidoenr/xyscope/internal/render"
	"golang.org/x/term"
)

var version = "dev"

// autoPresenter picks the presenter from the settings file or the build.
const autoPresenter = "auto"

// CLI defines the command-line interface. Zero-valued runtime options fall
// back to the settings file, then to built-in defaults.
type CLI struct {
	Device          string  `short:"d" help:"Input device name (substring match)"`
	OutputDevice    string  `help:"Output device for pass-through (defaults to the input's host API default)"`
	NoOutput        bool    `help:"Capture only, no pass-through"`
	FramesPerBuffer int     `default:"512" help:"Audio frames per callback"`
	SampleRate      float64 `help:"Override the device sample rate in Hz"`
	FPS             float64 `name:"fps" help:"Target frames per second (default 60)"`
	Width           int     `help:"Surface width in pixels (default 600)"`
	Height          int     `help:"Surface height in pixels (default 600)"`
	RingCapacity    int     `help:"Sample ring capacity in stereo pairs (default 131072)"`
	Presenter       string  `short:"p" default:"auto" enum:"auto,${presenters}" help:"Display: auto, ${presenters} (auto is sdl when built with -tags sdl, else term)"`
	NoAudio         bool    `help:"Use a synthetic signal instead of the sound card"`
	Signal          string  `default:"mono" enum:"${signals}" help:"Synthetic signal: ${signals}"`
	Web             string  `placeholder:"ADDR" help:"Serve the control surface on this address, e.g. :8080"`
	Config          string  `short:"c" type:"path" help:"Settings file (default ${config_path})"`
	Profile         string  `type:"path" help:"Append per-tick phase timings to this CSV file"`
	LogLevel        string  `help:"Log level: debug, info, warn or error (default from XYSCOPE_LOG_LEVEL)"`
	LogFormat       string  `default:"text" enum:"text,json" help:"Log format: text or json"`
	ListAudio       bool    `name:"list-audio-devices" help:"List audio devices and exit"`
	FFTBackend      string  `name:"fft-backend" help:"Transform backend: gonum or godsp"`
	FFTWindow       string  `name:"fft-window" help:"Analysis window: rect or hann"`
	FFTFloor        float64 `name:"fft-floor" help:"Band level below which FFT coloring treats a band as silent (0 disables)"`
	DoubleCore      bool    `help:"Stroke the line core twice"`
	Version         bool    `short:"v" help:"Show version information"`
}

func main() {
	cli := &CLI{}
	kong.Parse(cli,
		kong.Name("xyscope"),
		kong.Description("XY stereo oscilloscope for live audio"),
		kong.UsageOnError(),
		kong.Vars{
			"config_path": config.DefaultPath(),
			"presenters":  strings.Join(render.KindNames(), ","),
			"signals":     strings.Join(app.SignalNames(), ","),
		},
	)
	if cli.Version {
		fmt.Println("xyscope", version)
		return
	}
	if err := run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "xyscope: %v\n", err)
		os.Exit(1)
	}
}

func run(cli *CLI) error {
	logCfg := logger.DefaultConfig()
	logCfg.Format = cli.LogFormat
	if cli.LogLevel != "" {
		level, err := logger.ParseLevel(cli.LogLevel)
		if err != nil {
			return err
		}
		logCfg.Level = level
	}
	log := logger.New(logCfg)
	slog.SetDefault(log)

	if cli.ListAudio {
		if err := audio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize PortAudio: %w", err)
		}
		defer audio.Terminate()
		devices, err := audio.ListDevices()
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}
		return audio.WriteDevices(os.Stdout, devices)
	}

	settingsPath := cli.Config
	if settingsPath == "" {
		settingsPath = config.DefaultPath()
	}
	settings, err := config.Load(settingsPath)
	switch {
	case err == nil:
		log.Info("settings loaded", "path", settingsPath)
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("no settings file", "path", settingsPath)
	default:
		return err
	}
	cli.applySettings(settings)

	kind := defaultPresenter()
	if cli.Presenter != autoPresenter {
		if kind, err = render.ParseKind(cli.Presenter); err != nil {
			return err
		}
	}
	backend, err := analyzer.ParseBackend(cli.FFTBackend)
	if err != nil {
		return err
	}
	sig, err := app.ParseSignal(cli.Signal)
	if err != nil {
		return err
	}

	reg := params.NewRegistry()
	reg.Restore(settings.Params)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !cli.NoAudio {
		if err := audio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize PortAudio: %w", err)
		}
		defer audio.Terminate()
	}

	a, err := app.New(app.Config{
		Audio: audio.Config{
			InputDevice:     cli.Device,
			OutputDevice:    cli.OutputDevice,
			NoOutput:        cli.NoOutput,
			SampleRate:      cli.SampleRate,
			FramesPerBuffer: cli.FramesPerBuffer,
		},
		DisableAudio: cli.NoAudio,
		Signal:       sig,
		TargetFPS:    cli.FPS,
		Width:        cli.Width,
		Height:       cli.Height,
		RingCapacity: cli.RingCapacity,
		Presenter:    kind,
		Analyzer:     analyzer.Config{Backend: backend, Window: cli.FFTWindow},
		Render:       render.Options{DoubleCore: cli.DoubleCore, BandFloor: cli.FFTFloor},
		Params:       reg,
		WebAddr:      cli.Web,
		SettingsPath: settingsPath,
		Settings:     cli.settings,
		ProfilePath:  cli.Profile,
		Keyboard:     term.IsTerminal(int(os.Stdin.Fd())),
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("cleanup error", "error", err)
		}
	}()

	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("runtime error: %w", err)
	}
	return nil
}

// applySettings fills options the command line left unset.
func (c *CLI) applySettings(s config.Settings) {
	if c.FPS <= 0 {
		c.FPS = s.TargetFPS
	}
	if c.Width <= 0 {
		c.Width = s.Width
	}
	if c.Height <= 0 {
		c.Height = s.Height
	}
	if c.Presenter == autoPresenter && s.Presenter != "" {
		c.Presenter = s.Presenter
	}
	if c.FFTBackend == "" {
		c.FFTBackend = s.FFTBackend
	}
	if c.FFTWindow == "" {
		c.FFTWindow = s.FFTWindow
	}
	c.DoubleCore = c.DoubleCore || s.DoubleCore
}

// settings reports the runtime options stored by the control surface.
func (c *CLI) settings() config.Settings {
	presenter := c.Presenter
	if presenter == autoPresenter {
		presenter = ""
	}
	return config.Settings{
		TargetFPS:  c.FPS,
		Width:      c.Width,
		Height:     c.Height,
		Presenter:  presenter,
		DoubleCore: c.DoubleCore,
		FFTBackend: c.FFTBackend,
		FFTWindow:  c.FFTWindow,
	}
}

func defaultPresenter() render.Kind {
	if render.SupportsSDL() {
		return render.KindSDL
	}
	return render.KindTerminal
}
