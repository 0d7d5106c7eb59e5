/*
NAME
  denoise.go

DESCRIPTION
  denoise.go provides an optional pre-decoder band-limiting stage:
  FCC SAME audio occupies a narrow baseband around the mark and space
  tones, so a bandpass FIR limited to that band ahead of C3 rejects
  voice and hum energy a naive threshold would otherwise fight.
  Built on pcm.NewBandPass (pcm/filter.go).

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package audio

import (
	"fmt"

	"github.com/kr8mer/eas-station/pcm"
	"github.com/kr8mer/eas-station/same"
)

// Denoiser band-limits samples to the SAME tone range before they
// reach the decoder. It carries the convolution tail of each chunk
// into the next call, so each source needs its own instance.
type Denoiser struct {
	filter *pcm.BandPassFilter
	tail   []float64
}

// denoiseMargin widens the passband beyond the mark/space tones
// themselves so DLL-relevant sidebands from the 520 5/6 baud keying
// survive filtering undistorted.
const denoiseMargin = 400.0

// denoiseTaps is the FIR filter length; long enough for a sharp
// transition band at typical SAME sample rates without materially
// affecting decode latency (overlap is a few dozen milliseconds).
const denoiseTaps = 255

// NewDenoiser builds a bandpass filter spanning the SAME space tone
// minus denoiseMargin to the mark tone plus denoiseMargin, at
// sampleRate.
func NewDenoiser(sampleRate uint) (*Denoiser, error) {
	low := same.SpaceFreq - denoiseMargin
	high := same.MarkFreq + denoiseMargin
	filter, err := pcm.NewBandPass(low, high, sampleRate, denoiseTaps)
	if err != nil {
		return nil, fmt.Errorf("audio: build denoise filter: %w", err)
	}
	return &Denoiser{filter: filter}, nil
}

// Apply returns samples band-limited to the SAME tone range, as many
// as it was given. The convolution tail past the end of the chunk is
// held back and added to the start of the next call's output
// (overlap-add), so consecutive calls form one continuous filtered
// stream, delayed by approximately denoiseTaps samples.
func (d *Denoiser) Apply(samples []float64) ([]float64, error) {
	if d == nil || d.filter == nil {
		return samples, nil
	}
	out, err := d.filter.Apply(samples)
	if err != nil {
		return nil, fmt.Errorf("audio: apply denoise filter: %w", err)
	}
	for i, v := range d.tail {
		out[i] += v
	}
	n := len(samples)
	d.tail = append(d.tail[:0], out[n:]...)
	return out[:n], nil
}
