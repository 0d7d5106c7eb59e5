package same

import (
	"testing"
)

func TestParseHeaderValid(t *testing.T) {
	s := "ZCZC-EAS-RWT-039107+0030-2121800-KR8MER  -"
	h, issues, ok := ParseHeader(s, nil, nil)
	if !ok {
		t.Fatalf("expected tokenizable header")
	}
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
	if h.Org != "EAS" || h.Event != "RWT" {
		t.Fatalf("unexpected org/event: %+v", h)
	}
	if len(h.Locations) != 1 || h.Locations[0] != "039107" {
		t.Fatalf("unexpected locations: %v", h.Locations)
	}
	if h.Duration != "0030" || h.Issuance != "2121800" || h.Station != "KR8MER  " {
		t.Fatalf("unexpected fields: %+v", h)
	}
}

func TestParseHeaderMultipleLocations(t *testing.T) {
	s := "ZCZC-WXR-TOR-039107+039108+0100-2121800-KR8MER  -"
	h, issues, ok := ParseHeader(s, nil, nil)
	if !ok || len(issues) != 0 {
		t.Fatalf("expected valid header, issues=%v ok=%v", issues, ok)
	}
	if len(h.Locations) != 2 {
		t.Fatalf("expected 2 locations, got %v", h.Locations)
	}
}

func TestParseHeaderBadPrefix(t *testing.T) {
	_, _, ok := ParseHeader("XXXX-EAS-RWT-039107+0030-2121800-KR8MER  -", nil, nil)
	if ok {
		t.Fatalf("expected tokenization failure")
	}
}

func TestParseHeaderUnknownOrgAndEvent(t *testing.T) {
	s := "ZCZC-ZZZ-ZZZ-039107+0030-2121800-KR8MER  -"
	_, issues, ok := ParseHeader(s, nil, nil)
	if !ok {
		t.Fatalf("expected tokenizable header")
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues (ORG, EEE), got %v", issues)
	}
}

func TestParseHeaderBadStationID(t *testing.T) {
	s := "ZCZC-EAS-RWT-039107+0030-2121800-BADID-"
	_, issues, ok := ParseHeader(s, nil, nil)
	if !ok {
		t.Fatalf("expected tokenizable header")
	}
	found := false
	for _, iss := range issues {
		if iss.Field == "LLLLLLLL" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected LLLLLLLL issue, got %v", issues)
	}
}

func TestConfidenceFromIssues(t *testing.T) {
	if c := ConfidenceFromIssues(1.0, nil); c != 1.0 {
		t.Fatalf("expected 1.0, got %v", c)
	}
	if c := ConfidenceFromIssues(1.0, []FieldIssue{{}, {}}); c != 0.8 {
		t.Fatalf("expected 0.8, got %v", c)
	}
	if c := ConfidenceFromIssues(0.1, []FieldIssue{{}, {}, {}}); c != 0 {
		t.Fatalf("expected floor at 0, got %v", c)
	}
}

func TestHeaderID(t *testing.T) {
	h := Header{Org: "EAS", Event: "RWT", Locations: []string{"039107", "039108"}, Issuance: "2121800", Station: "KR8MER  "}
	id := h.ID()
	if id != "EASRWT039107+039108"+"2121800"+"KR8MER  " {
		t.Fatalf("unexpected id: %q", id)
	}
}
