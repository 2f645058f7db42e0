package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// Processor receives one block per callback. in and out hold one slice per
// channel; out is nil for capture-only streams. It runs on the PortAudio
// callback thread and must not block.
type Processor interface {
	Process(in, out [][]float32)
}

// Config describes the devices and buffering to use.
type Config struct {
	// InputDevice and OutputDevice match device names by substring,
	// case-insensitively. Empty picks the best candidate.
	InputDevice  string
	OutputDevice string
	// NoOutput opens a capture-only stream.
	NoOutput        bool
	SampleRate      float64
	FramesPerBuffer int
	Logger          *slog.Logger
}

// Selection is the resolved device set for a stream.
type Selection struct {
	Input          *portaudio.DeviceInfo
	Output         *portaudio.DeviceInfo
	InputChannels  int
	OutputChannels int
	SampleRate     float64
}

// Stream is a running PortAudio stream that passes blocks to a Processor.
type Stream struct {
	stream *portaudio.Stream
	log    *slog.Logger
}

const (
	defaultFramesPerBuffer = 512
	maxChannels            = 2
)

// Select resolves devices, channel counts and sample rate. The output is
// taken from the input's host API because duplex streams cannot span APIs.
func Select(cfg Config) (Selection, error) {
	in, err := findDevice(cfg.InputDevice, directionInput)
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{
		Input:         in,
		InputChannels: min(in.MaxInputChannels, maxChannels),
		SampleRate:    in.DefaultSampleRate,
	}
	if cfg.SampleRate > 0 {
		sel.SampleRate = cfg.SampleRate
	}
	if cfg.NoOutput {
		return sel, nil
	}

	var out *portaudio.DeviceInfo
	if cfg.OutputDevice != "" {
		out, err = findDevice(cfg.OutputDevice, directionOutput)
		if err != nil {
			return Selection{}, err
		}
	} else if in.HostApi != nil && in.HostApi.DefaultOutputDevice != nil {
		out = in.HostApi.DefaultOutputDevice
	}
	if out == nil || out.MaxOutputChannels <= 0 {
		return Selection{}, errors.New("no output device for pass-through; use a capture-only stream")
	}
	sel.Output = out
	sel.OutputChannels = min(out.MaxOutputChannels, maxChannels)
	return sel, nil
}

// Open starts a stream for sel feeding proc, buffered per cfg.
func Open(sel Selection, cfg Config, proc Processor) (*Stream, error) {
	if sel.Input == nil {
		return nil, errors.New("no input device selected")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	framesPerBuffer := cfg.FramesPerBuffer
	if framesPerBuffer <= 0 {
		framesPerBuffer = defaultFramesPerBuffer
	}

	p := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   sel.Input,
			Channels: sel.InputChannels,
			Latency:  sel.Input.DefaultLowInputLatency,
		},
		SampleRate:      sel.SampleRate,
		FramesPerBuffer: framesPerBuffer,
	}

	var (
		stream *portaudio.Stream
		err    error
	)
	if sel.Output != nil {
		p.Output = portaudio.StreamDeviceParameters{
			Device:   sel.Output,
			Channels: sel.OutputChannels,
			Latency:  sel.Output.DefaultLowOutputLatency,
		}
		stream, err = portaudio.OpenStream(p, proc.Process)
	} else {
		stream, err = portaudio.OpenStream(p, func(in [][]float32) {
			proc.Process(in, nil)
		})
	}
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}

	s := &Stream{stream: stream, log: log}
	attrs := []any{
		"input", sel.Input.Name,
		"channels", sel.InputChannels,
		"rate", sel.SampleRate,
		"frames", framesPerBuffer,
	}
	if sel.Output != nil {
		attrs = append(attrs, "output", sel.Output.Name)
	}
	log.Info("audio stream started", attrs...)
	return s, nil
}

// Close stops and closes the stream.
func (s *Stream) Close() error {
	if s == nil || s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil && !isInvalidStreamState(err) {
		return err
	}
	err := s.stream.Close()
	s.stream = nil
	s.log.Info("audio stream stopped")
	return err
}

type direction int

const (
	directionInput direction = iota
	directionOutput
)

func (d direction) channels(dev *portaudio.DeviceInfo) int {
	if d == directionOutput {
		return dev.MaxOutputChannels
	}
	return dev.MaxInputChannels
}

func findDevice(name string, dir direction) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	if name != "" {
		return matchDevice(devices, name, dir)
	}

	var def *portaudio.DeviceInfo
	if dir == directionOutput {
		def, err = portaudio.DefaultOutputDevice()
	} else {
		def, err = portaudio.DefaultInputDevice()
	}
	if err == nil && def != nil && dir.channels(def) > 0 {
		return def, nil
	}
	if best := pickBestDevice(devices, dir); best != nil {
		return best, nil
	}
	return nil, errors.New("no suitable audio device found")
}

func matchDevice(devices []*portaudio.DeviceInfo, name string, dir direction) (*portaudio.DeviceInfo, error) {
	name = strings.ToLower(name)
	for _, d := range devices {
		if d == nil || dir.channels(d) == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(d.Name), name) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("audio device %q not found", name)
}

// pickBestDevice prefers stereo devices, then loopback or monitor sources
// for input, then anything called "default".
func pickBestDevice(devices []*portaudio.DeviceInfo, dir direction) *portaudio.DeviceInfo {
	type scored struct {
		dev   *portaudio.DeviceInfo
		score int
	}
	keywords := []string{"monitor", "loopback", "stereo mix", "what u hear", "mix"}

	var results []scored
	for _, d := range devices {
		if d == nil || dir.channels(d) <= 0 {
			continue
		}
		score := min(dir.channels(d), maxChannels) * 10
		lower := strings.ToLower(d.Name)
		if dir == directionInput {
			for _, kw := range keywords {
				if strings.Contains(lower, kw) {
					score += 20
					break
				}
			}
		}
		if strings.Contains(lower, "default") {
			score += 5
		}
		results = append(results, scored{dev: d, score: score})
	}
	if len(results) == 0 {
		return nil
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return strings.ToLower(results[i].dev.Name) < strings.ToLower(results[j].dev.Name)
		}
		return results[i].score > results[j].score
	})
	return results[0].dev
}

// isInvalidStreamState reports errors from stopping a stream that already stopped.
func isInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, portaudio.StreamIsStopped) || strings.Contains(err.Error(), "PaErrorCode -9986")
}
