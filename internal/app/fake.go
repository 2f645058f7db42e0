package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/guidoenr/xyscope/internal/audio"
)

// Signal names a synthetic test source used when audio is disabled.
type Signal string

const (
	SignalMono    Signal = "mono"
	SignalStereo  Signal = "stereo"
	SignalSweep   Signal = "sweep"
	SignalSilence Signal = "silence"
)

// SignalNames lists the accepted synthetic signals.
func SignalNames() []string {
	return []string{string(SignalMono), string(SignalStereo), string(SignalSweep), string(SignalSilence)}
}

// ParseSignal resolves a signal name; empty means mono.
func ParseSignal(name string) (Signal, error) {
	switch s := Signal(strings.ToLower(name)); s {
	case "":
		return SignalMono, nil
	case SignalMono, SignalStereo, SignalSweep, SignalSilence:
		return s, nil
	}
	return "", fmt.Errorf("unknown signal %q", name)
}

const (
	monoHz        = 110.0
	stereoLeftHz  = 220.0
	stereoRightHz = 330.5
	sweepLowHz    = 40.0
	sweepHighHz   = 8000.0
	sweepSeconds  = 10.0
	amplitude     = 0.5
)

// fakeGenerator synthesises stereo blocks and hands them to a processor at
// the rate a sound card would.
type fakeGenerator struct {
	signal Signal
	rate   float64
	t      float64

	phaseL float64
	phaseR float64

	in  [][]float32
	out [][]float32
}

func newFakeGenerator(signal Signal, sampleRate float64, blockSize int) *fakeGenerator {
	return &fakeGenerator{
		signal: signal,
		rate:   sampleRate,
		in:     [][]float32{make([]float32, blockSize), make([]float32, blockSize)},
		out:    [][]float32{make([]float32, blockSize), make([]float32, blockSize)},
	}
}

// Next fills and returns the next block, one slice per channel.
func (f *fakeGenerator) Next() [][]float32 {
	left, right := f.in[0], f.in[1]
	dt := 1 / f.rate
	for i := range left {
		var fl, fr float64
		switch f.signal {
		case SignalMono:
			fl, fr = monoHz, monoHz
		case SignalStereo:
			fl, fr = stereoLeftHz, stereoRightHz
		case SignalSweep:
			pos := math.Mod(f.t, sweepSeconds) / sweepSeconds
			fl = sweepLowHz * math.Pow(sweepHighHz/sweepLowHz, pos)
			fr = fl
		default:
			left[i], right[i] = 0, 0
			f.t += dt
			continue
		}
		f.phaseL = math.Mod(f.phaseL+2*math.Pi*fl*dt, 2*math.Pi)
		f.phaseR = math.Mod(f.phaseR+2*math.Pi*fr*dt, 2*math.Pi)
		left[i] = float32(amplitude * math.Sin(f.phaseL))
		if f.signal == SignalSweep {
			// quadrature keeps the sweep visible as a rotating figure
			right[i] = float32(amplitude * math.Cos(f.phaseR))
		} else {
			right[i] = float32(amplitude * math.Sin(f.phaseR))
		}
		f.t += dt
	}
	return f.in
}

// Run feeds proc one block per block period until ctx ends.
func (f *fakeGenerator) Run(ctx context.Context, proc audio.Processor) {
	period := time.Duration(float64(len(f.in[0])) / f.rate * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			proc.Process(f.Next(), f.out)
		}
	}
}
