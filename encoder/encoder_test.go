package encoder

import (
	"testing"
	"time"

	"github.com/kr8mer/eas-station/same"
)

const testFS uint = 22050
const testHeader = "ZCZC-EAS-RWT-039107+0030-2121800-KR8MER  -"

func TestEncodeHeaderRoundTripsThroughDecoder(t *testing.T) {
	e := NewEncoder(testFS)
	burst, err := e.EncodeHeader(testHeader)
	if err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}

	d := same.NewDecoder(testFS, "test", 4)
	d.ProcessSamples(burst)
	d.ProcessSamples(make([]float64, int(same.SymbolPeriod*float64(testFS))*8))

	select {
	case c := <-d.Candidates():
		if c.Text != testHeader {
			t.Fatalf("decoded %q, want %q", c.Text, testHeader)
		}
	default:
		t.Fatalf("encoded burst did not decode back to a candidate")
	}
}

func TestEncodeHeaderRejectsMalformed(t *testing.T) {
	e := NewEncoder(testFS)
	if _, err := e.EncodeHeader("not a header"); err == nil {
		t.Fatalf("expected error for malformed header")
	}
}

func TestEncodeEOMRoundTrips(t *testing.T) {
	e := NewEncoder(testFS)
	burst := e.EncodeEOM()

	d := same.NewDecoder(testFS, "test", 4)
	d.ProcessSamples(burst)
	d.ProcessSamples(make([]float64, int(same.SymbolPeriod*float64(testFS))*8))

	select {
	case c := <-d.Candidates():
		if !c.IsEOM {
			t.Fatalf("expected EOM candidate, got %+v", c)
		}
	default:
		t.Fatalf("encoded EOM did not decode")
	}
}

func TestAssembleMessageRejectsShortGap(t *testing.T) {
	e := NewEncoder(testFS)
	_, err := e.AssembleMessage(testHeader, nil, 8, 500*time.Millisecond)
	if err == nil {
		t.Fatalf("expected error for sub-1s inter-burst gap")
	}
}

func TestAssembleMessageLayout(t *testing.T) {
	e := NewEncoder(testFS)
	announcement := make([]float64, 1000)
	msg, err := e.AssembleMessage(testHeader, announcement, 8, time.Second)
	if err != nil {
		t.Fatalf("AssembleMessage: %v", err)
	}
	total := msg.HeaderSamples + msg.AttentionSamples + msg.AudioSamples + msg.EOMSamples
	if total != len(msg.PCM) {
		t.Fatalf("component sample counts %d do not sum to total PCM length %d", total, len(msg.PCM))
	}
	if msg.AudioSamples != len(announcement) {
		t.Fatalf("audio segment length mismatch: %d vs %d", msg.AudioSamples, len(announcement))
	}
}
