package same

import (
	"math"
	"testing"
)

func TestNewTablesLength(t *testing.T) {
	tb := newTables(22050)
	want := int(math.Round(22050.0 / Baud))
	if tb.templateLen != want {
		t.Fatalf("templateLen = %d, want %d", tb.templateLen, want)
	}
	if len(tb.markI) != want || len(tb.spaceQ) != want {
		t.Fatalf("template slices not sized to templateLen")
	}
}

func TestTemplatesAreQuadrature(t *testing.T) {
	tb := newTables(22050)
	for i := range tb.markI {
		sum := tb.markI[i]*tb.markI[i] + tb.markQ[i]*tb.markQ[i]
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("mark template at %d not unit magnitude: %v", i, sum)
		}
	}
}

func TestSymbolLenSamples(t *testing.T) {
	got := symbolLenSamples(48000)
	want := 48000.0 / Baud
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("symbolLenSamples = %v, want %v", got, want)
	}
}

func TestSymbolPeriodConstant(t *testing.T) {
	if math.Abs(SymbolPeriod-1.0/Baud) > 1e-9 {
		t.Fatalf("SymbolPeriod inconsistent with Baud: %v vs %v", SymbolPeriod, 1.0/Baud)
	}
}
