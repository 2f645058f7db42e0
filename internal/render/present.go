package render

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/guidoenr/xyscope/internal/analyzer"
	"github.com/guidoenr/xyscope/internal/params"
)

// ErrPresenterQuit is returned by Present when the user closed the display.
var ErrPresenterQuit = errors.New("presenter quit requested")

// Kind selects how the surface reaches the screen.
type Kind string

const (
	KindSDL      Kind = "sdl"
	KindTerminal Kind = "term"
	KindNone     Kind = "none"
)

// KindNames lists the accepted presenter names.
func KindNames() []string {
	return []string{string(KindSDL), string(KindTerminal), string(KindNone)}
}

// ParseKind resolves a presenter name.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "sdl", "window":
		return KindSDL, nil
	case "term", "terminal", "ansi":
		return KindTerminal, nil
	case "none", "headless", "":
		return KindNone, nil
	}
	return "", fmt.Errorf("unknown presenter %q", name)
}

// Status is the one-line summary shown next to the scope.
type Status struct {
	FPS      float64          `json:"fps"`
	Gain     float64          `json:"gain"`
	Energy   float64          `json:"energy"`
	Bands    analyzer.Bands   `json:"bands"`
	Dropped  uint64           `json:"dropped"`
	Windows  uint64           `json:"windows"`
	Shape    params.MonoShape `json:"shape"`
	Wave     params.WaveType  `json:"wave"`
	Particle bool             `json:"particle"`
	FFTColor bool             `json:"fftColor"`
}

func (s Status) String() string {
	var b strings.Builder
	b.Grow(128)
	b.WriteString(strings.ToUpper(s.Shape.String()))
	b.WriteByte('/')
	b.WriteString(strings.ToUpper(s.Wave.String()))
	if s.Particle {
		b.WriteString(" particles")
	}
	if s.FFTColor {
		b.WriteString(" fft")
	}
	b.WriteString(" | bass ")
	appendFloat(&b, s.Bands.Bass, 2)
	b.WriteString(" mid ")
	appendFloat(&b, s.Bands.Mid, 2)
	b.WriteString(" high ")
	appendFloat(&b, s.Bands.High, 2)
	b.WriteString(" | agc ")
	appendFloat(&b, s.Gain, 2)
	b.WriteString(" energy ")
	appendFloat(&b, s.Energy, 2)
	b.WriteString(" fps ")
	appendFloat(&b, s.FPS, 1)
	if s.Dropped > 0 {
		b.WriteString(" dropped ")
		b.WriteString(strconv.FormatUint(s.Dropped, 10))
	}
	return b.String()
}

// Presenter paints the accumulation surface to a display.
type Presenter interface {
	Present(surface *image.RGBA, status Status) error
	Close() error
}

// Sizer is implemented by presenters whose display area can change.
type Sizer interface {
	Size() (width, height int)
}

// NewPresenter opens the presenter of the given kind.
func NewPresenter(kind Kind, width, height int) (Presenter, error) {
	switch kind {
	case KindSDL:
		return newSDLPresenter(width, height)
	case KindTerminal:
		return NewTerminal(nil), nil
	case KindNone:
		return &Headless{}, nil
	}
	return nil, fmt.Errorf("unknown presenter %q", kind)
}

// Headless drops frames. It keeps the last status for callers that poll.
type Headless struct {
	Frames uint64
	Last   Status
}

func (h *Headless) Present(_ *image.RGBA, status Status) error {
	h.Frames++
	h.Last = status
	return nil
}

func (h *Headless) Close() error { return nil }

func appendFloat(b *strings.Builder, value float64, precision int) {
	var buf [32]byte
	b.Write(strconv.AppendFloat(buf[:0], value, 'f', precision, 64))
}
