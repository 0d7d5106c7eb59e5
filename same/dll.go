/*
NAME
  dll.go

DESCRIPTION
  dll.go implements the delay-locked-loop bit synchronizer: a 16-bit
  fractional phase accumulator that latches one recovered bit per
  symbol period and nudges its phase toward alignment whenever the
  correlator's mark/space decision transitions, the same technique
  multimon-ng's POCSAG/SAME decoders use.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package same

// phaseResolution is the fractional accumulator's full-cycle width:
// one symbol spans 65536 phase units.
const phaseResolution = 65536

// dllPullShift implements an eighth-of-the-error pull on every
// polarity transition.
const dllPullShift = 3 // 1/8th, i.e. error >> 3

// bitSync is the delay-locked-loop symbol timing recovery state.
type bitSync struct {
	step   int32 // phaseResolution * baud / fs, fixed-point accumulator step
	sphase int32 // signed phase in [0, phaseResolution)
	prevD  int8  // last decision, for transition detection
	haveD  bool
}

// newBitSync builds a bitSync for sample rate fs.
func newBitSync(fs uint) *bitSync {
	step := int32((phaseResolution*Baud)/float64(fs) + 0.5)
	if step < 1 {
		step = 1
	}
	return &bitSync{step: step}
}

func (b *bitSync) reset() {
	b.sphase = 0
	b.prevD = 0
	b.haveD = false
}

// advance moves the phase on by one sample and, given the correlator's
// instantaneous decision d, returns (bit, ok) where ok is true exactly
// when a new bit has been latched at this sample.
func (b *bitSync) advance(d int8) (bit int8, ok bool) {
	// Delay-locked pull: on every polarity transition, nudge sphase
	// toward the nearest symbol boundary by a fraction of the error.
	if b.haveD && d != b.prevD {
		err := b.sphase
		if err > phaseResolution/2 {
			err -= phaseResolution
		}
		b.sphase -= err >> dllPullShift
	}
	b.prevD = d
	b.haveD = true

	b.sphase += b.step
	if b.sphase >= phaseResolution {
		b.sphase -= phaseResolution
		return d, true
	}
	return 0, false
}
