// Package vad measures spectral flux between consecutive blocks of audio, a
// cheap indicator of speech onset.
package vad

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

type Interface interface {
	Flux(samples []int16) float64
	Reset()
}

type vadImpl struct {
	windowLen int
	previous  []float64
}

// New returns a flux meter for blocks of windowLen samples. Shorter blocks
// are zero padded, longer ones truncated.
func New(windowLen int) Interface {
	return &vadImpl{
		windowLen: windowLen,
	}
}

// Flux returns the mean positive change of the magnitude spectrum since the
// previous call. The first call compares against silence.
func (v *vadImpl) Flux(samples []int16) float64 {
	if v.windowLen <= 0 {
		return 0
	}

	x := make([]float64, v.windowLen)
	for i := 0; i < len(samples) && i < v.windowLen; i++ {
		x[i] = float64(samples[i]) / 32768
	}

	spectrum := fft.FFTReal(x)

	bins := v.windowLen/2 + 1
	magnitudes := make([]float64, bins)
	for i := 0; i < bins; i++ {
		magnitudes[i] = cmplx.Abs(spectrum[i])
	}

	var flux float64
	for i, m := range magnitudes {
		var prev float64
		if v.previous != nil {
			prev = v.previous[i]
		}

		if diff := m - prev; diff > 0 {
			flux += diff
		}
	}

	v.previous = magnitudes

	return flux / float64(bins)
}

// Reset forgets the previous spectrum; the next Flux compares against silence.
func (v *vadImpl) Reset() {
	v.previous = nil
}
