package same

import (
	"testing"
	"time"
)

const validHeader = "ZCZC-EAS-RWT-039107+0030-2121800-KR8MER  -"

func candidateFor(text string, strength []float64) Candidate {
	return Candidate{Text: text, ByteStrength: strength, DetectedAt: time.Now()}
}

func TestValidatorTripletAgreement(t *testing.T) {
	v := NewValidator(ValidatorConfig{MinConfidence: 0.5})
	now := time.Now()
	strength := make([]float64, len(validHeader))
	for i := range strength {
		strength[i] = 10
	}

	if _, ok := v.Submit(candidateFor(validHeader, strength), now); ok {
		t.Fatalf("single candidate should not resolve yet if awaiting siblings returns ok only for single-resolution path")
	}
	if _, ok := v.Submit(candidateFor(validHeader, strength), now.Add(100*time.Millisecond)); !ok {
		t.Fatalf("expected pair path to report an outcome placeholder")
	}
	oc, ok := v.Submit(candidateFor(validHeader, strength), now.Add(200*time.Millisecond))
	if !ok {
		t.Fatalf("expected triplet resolution")
	}
	if !oc.Emit {
		t.Fatalf("expected emit=true, got %+v", oc)
	}
	if oc.Confidence != 1.0 {
		t.Fatalf("expected full confidence on unanimous triplet, got %v", oc.Confidence)
	}
	if oc.Text != validHeader {
		t.Fatalf("voted text mismatch: %q", oc.Text)
	}
}

func TestValidatorTripletMajorityCorrectsCorruption(t *testing.T) {
	v := NewValidator(ValidatorConfig{MinConfidence: 0.5})
	now := time.Now()

	// Both noisy copies are altered at the same two positions but with
	// different masks, so every candidate disagrees at those positions
	// and the tiebreak falls to per-byte DCD strength rather than a
	// 2-of-3 majority.
	corruptA := []byte(validHeader)
	corruptA[14] ^= 0x20
	corruptA[20] ^= 0x20
	corruptB := []byte(validHeader)
	corruptB[14] ^= 0x01
	corruptB[20] ^= 0x01

	lowStrength := make([]float64, len(validHeader))
	for i := range lowStrength {
		lowStrength[i] = 3
	}
	highStrength := make([]float64, len(validHeader))
	for i := range highStrength {
		highStrength[i] = 10
	}

	v.Submit(candidateFor(string(corruptA), lowStrength), now)
	v.Submit(candidateFor(string(corruptB), lowStrength), now.Add(50*time.Millisecond))
	oc, ok := v.Submit(candidateFor(validHeader, highStrength), now.Add(100*time.Millisecond))
	if !ok {
		t.Fatalf("expected a resolution")
	}
	if oc.Text != validHeader {
		t.Fatalf("expected majority/strength vote to recover clean header, got %q", oc.Text)
	}
	if oc.ByteErrors != 2 {
		t.Fatalf("expected 2 disagreeing positions, got %d", oc.ByteErrors)
	}
}

func TestValidatorPairAgreementConfidence(t *testing.T) {
	v := NewValidator(ValidatorConfig{MinConfidence: 0.5, Window: 2 * time.Second})
	now := time.Now()
	v.Submit(candidateFor(validHeader, nil), now)
	oc, ok := v.Submit(candidateFor(validHeader, nil), now.Add(10*time.Millisecond))
	if !ok {
		t.Fatalf("expected pair resolution")
	}
	if oc.Confidence != 0.75 {
		t.Fatalf("expected 0.75 confidence on pair agreement, got %v", oc.Confidence)
	}
}

func TestValidatorSingleStructurallyValid(t *testing.T) {
	v := NewValidator(ValidatorConfig{MinConfidence: 0.4, Window: 1 * time.Millisecond})
	now := time.Now()
	v.Submit(candidateFor(validHeader, nil), now)
	outs := v.Flush(now.Add(2 * time.Millisecond))
	if len(outs) != 1 {
		t.Fatalf("expected one flushed outcome, got %d", len(outs))
	}
	if outs[0].Confidence != 0.50 {
		t.Fatalf("expected 0.50 confidence for lone structurally valid header, got %v", outs[0].Confidence)
	}
}

func TestValidatorDedupSuppressesRepeat(t *testing.T) {
	v := NewValidator(ValidatorConfig{MinConfidence: 0.5, DedupWindow: time.Minute})
	now := time.Now()
	v.Submit(candidateFor(validHeader, nil), now)
	v.Submit(candidateFor(validHeader, nil), now.Add(10*time.Millisecond))
	oc1, _ := v.Submit(candidateFor(validHeader, nil), now.Add(20*time.Millisecond))
	if oc1.Reason == "duplicate" {
		t.Fatalf("first triplet resolution should not be flagged duplicate")
	}

	now2 := now.Add(time.Second)
	v.Submit(candidateFor(validHeader, nil), now2)
	v.Submit(candidateFor(validHeader, nil), now2.Add(10*time.Millisecond))
	oc2, _ := v.Submit(candidateFor(validHeader, nil), now2.Add(20*time.Millisecond))
	if oc2.Reason != "duplicate" {
		t.Fatalf("expected second triplet to be suppressed as duplicate, got %+v", oc2)
	}
}

func TestValidatorBelowMinConfidenceNotEmitted(t *testing.T) {
	v := NewValidator(ValidatorConfig{MinConfidence: 0.9, Window: time.Millisecond})
	now := time.Now()
	v.Submit(candidateFor(validHeader, nil), now)
	outs := v.Flush(now.Add(2 * time.Millisecond))
	if len(outs) != 1 {
		t.Fatalf("expected one flushed outcome")
	}
	if outs[0].Emit {
		t.Fatalf("expected emit=false below min confidence, got %+v", outs[0])
	}
}
