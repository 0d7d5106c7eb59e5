/*
NAME
  tone.go

DESCRIPTION
  tone.go implements a phase-continuous sinusoidal oscillator used by
  the SAME encoder for both FSK bit tones and the dual-tone attention
  signal, avoiding the phase discontinuities that would otherwise
  appear at bit and tone boundaries.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package encoder

import "math"

// toneAmplitude bounds every oscillator sample to -1 dBfs of headroom
// (spec section 4.6: peak amplitude at most 0.89 of full scale). A
// two-tone sum of oscillators at this amplitude, scaled by 0.5 as
// EncodeAttention does, never exceeds toneAmplitude.
const toneAmplitude = 0.89

// oscillator is a phase-continuous sine generator. Changing Freq
// between calls to Next does not introduce a phase jump.
type oscillator struct {
	fs    float64
	freq  float64
	phase float64
}

func newOscillator(fs uint) *oscillator {
	return &oscillator{fs: float64(fs)}
}

// setFreq changes the instantaneous frequency without resetting phase.
func (o *oscillator) setFreq(freq float64) { o.freq = freq }

// next returns the next sample, scaled to toneAmplitude, and advances
// phase by one sample period at the current frequency.
func (o *oscillator) next() float64 {
	s := toneAmplitude * math.Sin(o.phase)
	o.phase += 2 * math.Pi * o.freq / o.fs
	if o.phase > 2*math.Pi {
		o.phase -= 2 * math.Pi
	}
	return s
}

// reset zeroes phase, used at the start of a fresh burst.
func (o *oscillator) reset() { o.phase = 0 }
