// Package spectrum turns a capture stream into byte magnitude spectra, the
// same shape a browser AnalyserNode hands out from getByteFrequencyData.
package spectrum

import (
	"errors"
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	FFTSize = 2048 // analysis window, in samples

	MinDecibels = -100.0
	MaxDecibels = -30.0
	Smoothing   = 0.8
)

var ErrFFTSize = errors.New("fft size must be a power of two between 32 and 32768")

// Spectrum is one byte magnitude per frequency bin, len = fft size / 2.
type Spectrum []uint8

// Source is what the analyzer reads time-domain samples from.
type Source interface {
	SampleRate() int
	Latest(dst []float32) uint64
}

// Analyzer computes the magnitude spectrum of the latest window of a Source.
// It does not own the source.
type Analyzer struct {
	src     Source
	size    int
	rate    int
	mu      sync.Mutex
	samples []float32
	frame   []float64
	smooth  []float64
	out     Spectrum
	seen    uint64
}

func NewAnalyzer(src Source, size int) (*Analyzer, error) {
	if size < 32 || size > 32768 || size&(size-1) != 0 {
		return nil, ErrFFTSize
	}

	return &Analyzer{
		src:     src,
		size:    size,
		rate:    src.SampleRate(),
		samples: make([]float32, size),
		frame:   make([]float64, size),
		smooth:  make([]float64, size/2),
		out:     make(Spectrum, size/2),
	}, nil
}

// SampleRate is the source rate captured at construction.
func (a *Analyzer) SampleRate() int {
	return a.rate
}

func (a *Analyzer) BinCount() int {
	return a.size / 2
}

// Snapshot returns the most recent spectrum without waiting for audio. When
// nothing new was captured since the previous call the previous frame comes
// back unchanged. The returned slice is reused by the next call.
func (a *Analyzer) Snapshot() Spectrum {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := a.src.Latest(a.samples)
	if total == a.seen {
		return a.out
	}
	a.seen = total

	for i, s := range a.samples {
		a.frame[i] = float64(s)
	}
	window.Apply(a.frame, window.Blackman)

	spectrum := fft.FFTReal(a.frame)
	scale := 1.0 / float64(a.size)
	span := MaxDecibels - MinDecibels

	for k := range a.smooth {
		mag := cmplx.Abs(spectrum[k]) * scale
		v := Smoothing*a.smooth[k] + (1-Smoothing)*mag
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		a.smooth[k] = v

		db := 20 * math.Log10(v)
		b := math.Floor(255 / span * (db - MinDecibels))
		switch {
		case math.IsNaN(b) || b < 0:
			b = 0
		case b > 255:
			b = 255
		}
		a.out[k] = uint8(b)
	}

	return a.out
}
