package analyzer

import (
	"fmt"
	"math/cmplx"
	"strings"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Transform is a forward real-input frequency transform reduced to
// magnitudes. Magnitudes writes |X[k]| for k in [0, len(dst)); src has the
// transform size and is not retained.
type Transform interface {
	Magnitudes(dst, src []float64)
}

// Backend names a Transform implementation.
type Backend string

const (
	// BackendGonum performs no allocation per transform and is safe to run
	// inside the audio callback.
	BackendGonum Backend = "gonum"
	// BackendGoDSP allocates its output on every call.
	BackendGoDSP Backend = "godsp"
)

// ParseBackend resolves a backend name; the empty string selects gonum.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(name) {
	case "", "gonum":
		return BackendGonum, nil
	case "godsp", "go-dsp":
		return BackendGoDSP, nil
	default:
		return "", fmt.Errorf("unknown fft backend %q", name)
	}
}

// NewTransform returns a transform of the given size.
func NewTransform(b Backend, size int) Transform {
	if b == BackendGoDSP {
		return dspTransform{}
	}
	return &gonumTransform{
		fft:    fourier.NewFFT(size),
		coeffs: make([]complex128, size/2+1),
	}
}

type gonumTransform struct {
	fft    *fourier.FFT
	coeffs []complex128
}

func (g *gonumTransform) Magnitudes(dst, src []float64) {
	g.coeffs = g.fft.Coefficients(g.coeffs, src)
	n := min(len(dst), len(g.coeffs))
	for i := 0; i < n; i++ {
		dst[i] = cmplx.Abs(g.coeffs[i])
	}
}

type dspTransform struct{}

func (dspTransform) Magnitudes(dst, src []float64) {
	spectrum := fft.FFTReal(src)
	n := min(len(dst), len(spectrum))
	for i := 0; i < n; i++ {
		dst[i] = cmplx.Abs(spectrum[i])
	}
}
