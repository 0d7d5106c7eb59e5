/*
NAME
  tables.go

DESCRIPTION
  tables.go builds the fixed-length mark/space correlation templates a
  Decoder uses for the lifetime of a single sample rate, per the
  pre-computed correlation table design (one symbol period's worth of
  samples, regenerated only if the sample rate changes).

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package same

import "math"

// Numeric constants mandated for SAME FSK, exact to the fraction.
const (
	MarkFreq  = 2083.0 + 1.0/3.0 // Hz
	SpaceFreq = 1562.0 + 1.0/2.0 // Hz
	Baud      = 520.0 + 5.0/6.0  // symbols/sec
)

// SymbolPeriod is the exact SAME symbol duration, 96/50000s = 1.92ms.
const SymbolPeriod = 96.0 / 50000.0

// tables holds the immutable sine/cosine correlation templates for one
// sample rate. templateLen equals one symbol period in samples,
// rounded to the nearest integer.
type tables struct {
	sampleRate  uint
	templateLen int
	markI       []float64
	markQ       []float64
	spaceI      []float64
	spaceQ      []float64
}

// newTables builds the four correlation templates for fs.
func newTables(fs uint) *tables {
	n := int(math.Round(float64(fs) / Baud))
	if n < 1 {
		n = 1
	}
	t := &tables{
		sampleRate:  fs,
		templateLen: n,
		markI:       make([]float64, n),
		markQ:       make([]float64, n),
		spaceI:      make([]float64, n),
		spaceQ:      make([]float64, n),
	}
	fsf := float64(fs)
	for i := 0; i < n; i++ {
		fi := float64(i)
		t.markI[i] = math.Cos(2 * math.Pi * MarkFreq * fi / fsf)
		t.markQ[i] = math.Sin(2 * math.Pi * MarkFreq * fi / fsf)
		t.spaceI[i] = math.Cos(2 * math.Pi * SpaceFreq * fi / fsf)
		t.spaceQ[i] = math.Sin(2 * math.Pi * SpaceFreq * fi / fsf)
	}
	return t
}

// symbolLenSamples returns the un-rounded ideal number of samples per
// symbol (fs/Baud); newBitSync computes its phase step from Baud and
// fs directly.
func symbolLenSamples(fs uint) float64 {
	return float64(fs) / Baud
}
