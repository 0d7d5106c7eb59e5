package same

import (
	"os"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func encodeTestWAV(t *testing.T, fs uint, samples []float64) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "same-test-*.wav")
	if err != nil {
		t.Fatalf("create temp wav: %v", err)
	}
	enc := wav.NewEncoder(f, int(fs), 16, 1, 1)
	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = int(s * 32767)
	}
	if err := enc.Write(&goaudio.IntBuffer{
		Data:           ints,
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: int(fs)},
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("seek temp wav: %v", err)
	}
	return f
}

func TestDecodeWAVRecoversHeader(t *testing.T) {
	samples := synthesizeBurst(testFS, validHeader)
	f := encodeTestWAV(t, testFS, samples)
	defer f.Close()

	candidates, err := DecodeWAV(f, testFS)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	found := false
	for _, c := range candidates {
		if c.Text == validHeader {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected header candidate in %v", candidates)
	}
}
