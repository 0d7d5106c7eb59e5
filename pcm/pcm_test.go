package pcm

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestBytesToFloat64RoundTrip(t *testing.T) {
	in := []float64{0, 0.5, -0.5, 0.999, -1}
	b, err := Float64ToBytes(in, S16LE)
	if err != nil {
		t.Fatalf("Float64ToBytes: %v", err)
	}
	out, err := BytesToFloat64(b, S16LE)
	if err != nil {
		t.Fatalf("BytesToFloat64: %v", err)
	}
	if diff := cmp.Diff(in, out, cmpopts.EquateApprox(0, 0.001)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStereoToMono(t *testing.T) {
	stereo := []float64{1, -1, 0.5, 0.5, -0.2, 0.2}
	want := []float64{0, 0.5, 0}
	got := StereoToMono(stereo)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("StereoToMono mismatch (-want +got):\n%s", diff)
	}
}

func TestResampleIntegerDecimation(t *testing.T) {
	in := make([]float64, 8)
	for i := range in {
		in[i] = float64(i)
	}
	got, err := Resample(in, 8000, 4000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	want := []float64{0.5, 2.5, 4.5, 6.5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resample mismatch (-want +got):\n%s", diff)
	}
}

func TestResampleUnsupportedRatio(t *testing.T) {
	_, err := Resample([]float64{1, 2, 3}, 8000, 3000)
	if err != ErrUnsupportedRatio {
		t.Fatalf("got err %v, want ErrUnsupportedRatio", err)
	}
}

func TestSanitizeNaN(t *testing.T) {
	s := []float64{1, math.NaN(), math.Inf(1), -0.5, math.Inf(-1)}
	n := SanitizeNaN(s)
	if n != 3 {
		t.Errorf("got %d sanitized, want 3", n)
	}
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("sample %v not sanitized", v)
		}
	}
}

func TestRemoveDCOffset(t *testing.T) {
	s := []float64{1, 1, 1, 1}
	offset := RemoveDCOffset(s)
	if offset != 1 {
		t.Errorf("got offset %v, want 1", offset)
	}
	for _, v := range s {
		if v != 0 {
			t.Errorf("got %v, want 0", v)
		}
	}
}
