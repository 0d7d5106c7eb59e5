/*
NAME
  filter.go

DESCRIPTION
  filter.go provides a windowed-sinc FIR bandpass filter operating on
  normalized float64 PCM, generalizing this repository's codec/pcm
  SelectiveFrequencyFilter (byte-buffer lowpass/highpass/bandpass/
  bandstop filters built from FlatTop-windowed sinc coefficients and
  applied by FFT-based fast convolution) to the float64 samples this
  module's sources and decoder use directly.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package pcm

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/pkg/errors"
)

// BandPassFilter is a windowed-sinc FIR bandpass filter built from a
// highpass and a lowpass filter in series, matching the teacher
// package's newBandFilter construction.
type BandPassFilter struct {
	coeffs     []float64
	sampleRate uint
	lowCutoff  float64
	highCutoff float64
}

// NewBandPass builds a BandPassFilter passing [lowCutoff, highCutoff]
// Hz at the given sample rate, with taps FIR coefficients (taps should
// be odd for a symmetric filter; the teacher package uses the same
// length convention).
func NewBandPass(lowCutoff, highCutoff float64, sampleRate uint, taps int) (*BandPassFilter, error) {
	if lowCutoff <= 0 || highCutoff <= lowCutoff || highCutoff >= float64(sampleRate)/2 {
		return nil, errors.New("pcm: invalid bandpass cutoff frequencies")
	}
	if taps <= 0 {
		return nil, errors.New("pcm: filter length must be > 0")
	}
	hp, err := sincCoeffs(lowCutoff, sampleRate, taps, true)
	if err != nil {
		return nil, errors.Wrap(err, "highpass stage")
	}
	lp, err := sincCoeffs(highCutoff, sampleRate, taps, false)
	if err != nil {
		return nil, errors.Wrap(err, "lowpass stage")
	}
	coeffs, err := fastConvolve(hp, lp)
	if err != nil {
		return nil, errors.Wrap(err, "combine bandpass stages")
	}
	return &BandPassFilter{coeffs: coeffs, sampleRate: sampleRate, lowCutoff: lowCutoff, highCutoff: highCutoff}, nil
}

// Apply convolves samples with the filter's FIR coefficients,
// returning a slice of len(samples)+len(coeffs)-1 samples.
func (f *BandPassFilter) Apply(samples []float64) ([]float64, error) {
	return fastConvolve(samples, f.coeffs)
}

// sincCoeffs generates a single FlatTop-windowed sinc lowpass or
// highpass FIR filter, following the teacher package's newLoHiFilter.
func sincCoeffs(fc float64, rate uint, taps int, highpass bool) ([]float64, error) {
	if fc <= 0 || fc >= float64(rate)/2 {
		return nil, errors.New("pcm: cutoff frequency out of bounds")
	}
	fd := fc / float64(rate)
	factor1, factor2 := 1.0, 2*fd
	if highpass {
		factor1, factor2 = -1.0, 1-2*fd
	}

	size := taps + 1
	coeffs := make([]float64, size)
	b := 2 * math.Pi * fd
	winData := window.FlatTop(size)
	for n := 0; n < taps/2; n++ {
		c := float64(n) - float64(taps)/2
		y := math.Sin(c*b) / (math.Pi * c)
		coeffs[n] = factor1 * y * winData[n]
		coeffs[size-1-n] = coeffs[n]
	}
	coeffs[taps/2] = factor2 * winData[taps/2]
	return coeffs, nil
}

// fastConvolve computes the linear convolution of x and h via
// zero-padded FFT multiplication, as the teacher package does.
func fastConvolve(x, h []float64) ([]float64, error) {
	if len(x) == 0 || len(h) == 0 {
		return nil, errors.New("pcm: convolution requires non-empty input")
	}
	convLen := len(x) + len(h) - 1
	padLen := int(math.Pow(2, math.Ceil(math.Log2(float64(convLen)))))

	xp := make([]float64, padLen)
	copy(xp, x)
	hp := make([]float64, padLen)
	copy(hp, h)

	xFFT, hFFT := fft.FFTReal(xp), fft.FFTReal(hp)
	yFFT := make([]complex128, padLen)
	for i := range xFFT {
		yFFT[i] = xFFT[i] * hFFT[i]
	}
	iy := fft.IFFT(yFFT)

	y := make([]float64, convLen)
	for i := range y {
		y[i] = real(iy[i])
	}
	return y, nil
}
