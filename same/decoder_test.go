package same

import (
	"math"
	"testing"
	"time"
)

const testFS uint = 22050

// synthesizeBurst renders 16 preamble bytes followed by text as an FSK
// waveform at fs, LSB-first per byte, one cycle-continuous tone per
// bit at the mark or space frequency.
func synthesizeBurst(fs uint, text string) []float64 {
	var bits []int
	emitByte := func(b byte) {
		for i := 0; i < 8; i++ {
			bits = append(bits, int((b>>uint(i))&1))
		}
	}
	for i := 0; i < PreambleCount; i++ {
		emitByte(Preamble)
	}
	for i := 0; i < len(text); i++ {
		emitByte(text[i])
	}

	samplesPerBit := symbolLenSamples(fs)
	out := make([]float64, 0, int(samplesPerBit)*len(bits))
	phase := 0.0
	for _, bit := range bits {
		freq := SpaceFreq
		if bit == 1 {
			freq = MarkFreq
		}
		n := int(math.Round(samplesPerBit))
		step := 2 * math.Pi * freq / float64(fs)
		for s := 0; s < n; s++ {
			out = append(out, math.Sin(phase))
			phase += step
		}
	}
	return out
}

func TestDecoderRecoversHeader(t *testing.T) {
	text := "ZCZC-EAS-RWT-039107+0030-2121800-KR8MER  -"
	sig := synthesizeBurst(testFS, text)

	d := NewDecoder(testFS, "test", 4)
	d.ProcessSamples(sig)
	// Flush a little trailing silence so the final bit latches.
	d.ProcessSamples(make([]float64, int(symbolLenSamples(testFS))*4))

	select {
	case c := <-d.Candidates():
		if c.IsEOM {
			t.Fatalf("expected header candidate, got EOM")
		}
		if c.Text != text {
			t.Fatalf("decoded %q, want %q", c.Text, text)
		}
	case <-time.After(time.Second):
		t.Fatalf("no candidate emitted")
	}
}

func TestDecoderRecoversEOM(t *testing.T) {
	sig := synthesizeBurst(testFS, EOMText)

	d := NewDecoder(testFS, "test", 4)
	d.ProcessSamples(sig)
	d.ProcessSamples(make([]float64, int(symbolLenSamples(testFS))*4))

	select {
	case c := <-d.Candidates():
		if !c.IsEOM {
			t.Fatalf("expected EOM candidate, got %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatalf("no candidate emitted")
	}
}

func TestDecoderIgnoresNoise(t *testing.T) {
	d := NewDecoder(testFS, "test", 4)
	noise := make([]float64, int(symbolLenSamples(testFS))*400)
	for i := range noise {
		noise[i] = math.Sin(float64(i) * 0.37)
	}
	d.ProcessSamples(noise)

	select {
	case c := <-d.Candidates():
		t.Fatalf("unexpected candidate from noise: %+v", c)
	default:
	}
}

func TestDecoderSanitizesNonFiniteSamples(t *testing.T) {
	d := NewDecoder(testFS, "test", 4)
	d.ProcessSamples([]float64{math.NaN(), math.Inf(1), math.Inf(-1), 0.5})
	snap := d.Snapshot()
	if snap.SanitizeCount != 3 {
		t.Fatalf("expected 3 sanitized samples, got %d", snap.SanitizeCount)
	}
	if snap.SamplesProcessed != 4 {
		t.Fatalf("expected 4 samples processed, got %d", snap.SamplesProcessed)
	}
}

func TestDecoderResetReturnsToIdle(t *testing.T) {
	d := NewDecoder(testFS, "test", 4)
	sig := synthesizeBurst(testFS, "ZCZC-EAS-RWT-039107")
	d.ProcessSamples(sig)
	d.Reset()
	if d.Snapshot().State != StateIdle {
		t.Fatalf("expected idle state after reset")
	}
}
