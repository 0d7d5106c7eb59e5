/*
NAME
  correlate.go

DESCRIPTION
  correlate.go implements the per-sample mark/space correlation and the
  data-carrier-detect (DCD) integrator described for the streaming SAME
  demodulator's front end.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package same

// correlator maintains a sliding window of the last L raw samples and,
// for every new sample, produces the mark/space correlation magnitudes
// and the instantaneous mark/space decision. It also tracks a DCD
// shift register/integrator over the decision stream.
//
// The window is correlated directly against the pre-computed templates
// (a sliding sum-of-products) rather than via a recursive resonator:
// at SAME's audio rates (tens of kHz) and one-symbol window lengths
// (tens of samples) this is cheap, and keeping the explicit dot
// product makes the magnitude computation easy to reason about and
// test against the template tables directly.
type correlator struct {
	t *tables

	// window is a circular buffer of the last L raw samples.
	window   []float64
	writePos int
	filled   int

	// dcdReg is the DCD shift register of decisions (+1/-1), width L.
	dcdReg    []int8
	dcdPos    int
	dcdFilled int
	dcdScore  int

	// dcdThreshold declares "signal present" once dcdScore reaches it.
	dcdThreshold int
}

// newCorrelator builds a correlator for template set t.
func newCorrelator(t *tables) *correlator {
	l := t.templateLen
	return &correlator{
		t:            t,
		window:       make([]float64, l),
		dcdReg:       make([]int8, l),
		dcdThreshold: l / 2,
	}
}

// reset clears all accumulated state without reallocating, used when
// the decoder returns to IDLE.
func (c *correlator) reset() {
	for i := range c.window {
		c.window[i] = 0
	}
	for i := range c.dcdReg {
		c.dcdReg[i] = 0
	}
	c.writePos, c.filled = 0, 0
	c.dcdPos, c.dcdFilled, c.dcdScore = 0, 0, 0
}

// step feeds one sample into the window, returning the mark power,
// space power, the instantaneous decision d (+1 mark, -1 space) and
// whether DCD currently declares signal present.
func (c *correlator) step(sample float64) (markPower, spacePower float64, decision int8, dcd bool) {
	l := len(c.window)
	c.window[c.writePos] = sample
	c.writePos = (c.writePos + 1) % l
	if c.filled < l {
		c.filled++
	}

	// Align template index 0 with the oldest sample in the window.
	var mi, mq, si, sq float64
	idx := c.writePos // oldest sample position after the write above
	for k := 0; k < l; k++ {
		x := c.window[(idx+k)%l]
		mi += x * c.t.markI[k]
		mq += x * c.t.markQ[k]
		si += x * c.t.spaceI[k]
		sq += x * c.t.spaceQ[k]
	}
	markPower = mi*mi + mq*mq
	spacePower = si*si + sq*sq

	decision = int8(1)
	if spacePower > markPower {
		decision = -1
	}

	c.pushDCD(decision)
	dcd = c.dcdScore >= c.dcdThreshold

	return markPower, spacePower, decision, dcd
}

// pushDCD shifts decision into the DCD register, incrementing the
// integrator when the newest and oldest bits disagree and decrementing
// it otherwise (spec: data-carrier-detect integrator).
func (c *correlator) pushDCD(decision int8) {
	l := len(c.dcdReg)
	oldest := c.dcdReg[c.dcdPos]
	if c.dcdFilled == l && oldest != decision {
		c.dcdScore++
	} else if c.dcdFilled == l {
		if c.dcdScore > 0 {
			c.dcdScore--
		}
	}
	c.dcdReg[c.dcdPos] = decision
	c.dcdPos = (c.dcdPos + 1) % l
	if c.dcdFilled < l {
		c.dcdFilled++
	}
}
