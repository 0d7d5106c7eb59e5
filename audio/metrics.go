/*
NAME
  metrics.go

DESCRIPTION
  metrics.go computes the RMS/peak dBFS levels the manager's selection
  policy (spec section 4.2) depends on. The SDR adapter has no squelch
  gate: it does not act on these levels or report itself degraded.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package audio

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// dbFloor is substituted for -Inf dBFS (perfect silence) so downstream
// comparisons against SilenceFloorDBFS behave sanely.
const dbFloor = -120.0

// RMSDBFS returns the RMS level of samples in dBFS. gonum/stat has no
// direct RMS reduction, so the sum-of-squares is computed with
// floats.Dot (mirroring codec/pcm's hand-rolled float conversions) and
// the sqrt/log10 done directly.
func RMSDBFS(samples []float64) float64 {
	if len(samples) == 0 {
		return dbFloor
	}
	sumSq := floats.Dot(samples, samples)
	rms := math.Sqrt(sumSq / float64(len(samples)))
	return linearToDBFS(rms)
}

// PeakDBFS returns the peak absolute sample value in dBFS.
func PeakDBFS(samples []float64) float64 {
	if len(samples) == 0 {
		return dbFloor
	}
	peak := 0.0
	for _, s := range samples {
		a := math.Abs(s)
		if a > peak {
			peak = a
		}
	}
	return linearToDBFS(peak)
}

func linearToDBFS(v float64) float64 {
	if v <= 0 {
		return dbFloor
	}
	db := 20 * math.Log10(v)
	if db < dbFloor {
		return dbFloor
	}
	return db
}

// SignalDBm is the advisory-only SDR signal-strength estimate
// (20*log10 of IQ magnitude). Never used to gate decoding (spec
// section 9, open question 3).
func SignalDBm(iqMagnitude float64) float64 {
	if iqMagnitude <= 0 {
		return dbFloor
	}
	return 20 * math.Log10(iqMagnitude)
}
