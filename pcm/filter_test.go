package pcm

import (
	"math"
	"testing"
)

func TestNewBandPassRejectsBadCutoffs(t *testing.T) {
	if _, err := NewBandPass(0, 2000, 44100, 127); err == nil {
		t.Fatal("expected error for zero low cutoff")
	}
	if _, err := NewBandPass(2000, 1000, 44100, 127); err == nil {
		t.Fatal("expected error when high cutoff <= low cutoff")
	}
	if _, err := NewBandPass(1000, 30000, 44100, 127); err == nil {
		t.Fatal("expected error when high cutoff exceeds Nyquist")
	}
}

func TestBandPassAttenuatesOutOfBandTone(t *testing.T) {
	const rate = 22050
	f, err := NewBandPass(1400, 2200, rate, 255)
	if err != nil {
		t.Fatalf("NewBandPass: %v", err)
	}

	inBand := toneAt(2083.33, rate, 2048)
	outOfBand := toneAt(6000, rate, 2048)

	passed, err := f.Apply(inBand)
	if err != nil {
		t.Fatalf("Apply in-band: %v", err)
	}
	blocked, err := f.Apply(outOfBand)
	if err != nil {
		t.Fatalf("Apply out-of-band: %v", err)
	}

	if rms(passed) <= rms(blocked)*2 {
		t.Fatalf("expected in-band tone energy well above out-of-band: in=%v out=%v", rms(passed), rms(blocked))
	}
}

func toneAt(freq float64, rate uint, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(rate))
	}
	return out
}

func rms(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	if len(samples) == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(len(samples)))
}
