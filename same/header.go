/*
NAME
  header.go

DESCRIPTION
  header.go parses and structurally validates the SAME header wire
  format (spec section 3) once a candidate byte string has been framed
  by the decoder or synthesized by the triplet validator.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package same

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxHeaderLen is the maximum total header length, including the
// terminating dash, per spec section 3.
const MaxHeaderLen = 268

// Preamble is the byte that precedes every SAME burst, repeated 16
// times.
const Preamble = 0xAB

// PreambleCount is the number of preamble bytes expected before a
// burst.
const PreambleCount = 16

// EOMText is the literal End-Of-Message marker.
const EOMText = "NNNN"

// Header holds the parsed fields of a SAME header.
type Header struct {
	Org       string
	Event     string
	Locations []string
	Duration  string // TTTT
	Issuance  string // JJJHHMM
	Station   string // LLLLLLLL
}

// ID returns the deduplication identifier for h, per spec section 3
// invariant 3: ORG+EEE+PSSCCC+JJJHHMM+LLLLLLLL.
func (h Header) ID() string {
	return h.Org + h.Event + strings.Join(h.Locations, "+") + h.Issuance + h.Station
}

var (
	allowedOrgs = map[string]bool{"EAS": true, "CIV": true, "WXR": true, "PEP": true}

	// registeredEvents is the built-in event-code table; a
	// configuration-provided allow-list overrides it entirely.
	registeredEvents = map[string]bool{
		"EAN": true, "EAT": true, "NIC": true, "RMT": true, "RWT": true,
		"ADR": true, "AVW": true, "AVA": true, "BZW": true, "CAE": true,
		"CDW": true, "CEM": true, "CFW": true, "CFA": true, "DSW": true,
		"EQW": true, "EVI": true, "FRW": true, "FFW": true, "FFA": true,
		"FLW": true, "FLA": true, "FLS": true, "HMW": true, "HWW": true,
		"HWA": true, "HUW": true, "HUA": true, "HLS": true, "LEW": true,
		"LAE": true, "NMN": true, "NUW": true, "DMO": true, "SVR": true,
		"SVA": true, "SVS": true, "SPS": true, "SMW": true, "SQW": true,
		"TOR": true, "TOA": true, "TRW": true, "TRA": true, "TSW": true,
		"TSA": true, "VOW": true, "WSW": true, "WSA": true,
	}

	stationIDPattern = regexp.MustCompile(`^[A-Z0-9/ ]{8}$`)
)

// FieldIssue describes a single structural validation failure. Each
// issue reduces a candidate's confidence by 0.1 (spec section 4.4),
// with a floor of 0.0.
type FieldIssue struct {
	Field  string
	Detail string
}

func (f FieldIssue) Error() string { return fmt.Sprintf("%s: %s", f.Field, f.Detail) }

// ParseHeader splits and validates a raw header string of the form
// ZCZC-ORG-EEE-PSSCCC[+PSSCCC]*+TTTT-JJJHHMM-LLLLLLLL- into a Header
// and the list of structural issues found. A nil/empty issue list
// means the header is fully valid. If the string cannot even be
// tokenized into the expected six dash-delimited segments, ok is
// false and Header is the zero value.
func ParseHeader(s string, allowedOrgs_, allowedEvents map[string]bool) (h Header, issues []FieldIssue, ok bool) {
	if len(s) == 0 || len(s) > MaxHeaderLen {
		return Header{}, []FieldIssue{{"length", "header length out of bounds"}}, false
	}
	if !strings.HasPrefix(s, "ZCZC-") {
		return Header{}, []FieldIssue{{"preamble-text", "missing ZCZC- prefix"}}, false
	}
	if !strings.HasSuffix(s, "-") {
		return Header{}, []FieldIssue{{"terminator", "missing trailing '-'"}}, false
	}

	// Strip "ZCZC-" and the trailing "-", then split the remainder into
	// its five dash-delimited fields: ORG, EEE, locations+duration,
	// JJJHHMM, LLLLLLLL.
	body := strings.TrimSuffix(strings.TrimPrefix(s, "ZCZC-"), "-")
	parts := strings.SplitN(body, "-", 4)
	if len(parts) != 4 {
		return Header{}, []FieldIssue{{"delimiters", "expected 4 dash-delimited fields after ZCZC-"}}, false
	}
	org, event, locAndDur, rest := parts[0], parts[1], parts[2], parts[3]
	restParts := strings.SplitN(rest, "-", 2)
	if len(restParts) != 2 {
		return Header{}, []FieldIssue{{"delimiters", "missing JJJHHMM/LLLLLLLL separator"}}, false
	}
	issuance, station := restParts[0], restParts[1]

	locFields := strings.Split(locAndDur, "+")
	if len(locFields) < 2 {
		return Header{}, []FieldIssue{{"delimiters", "expected at least one location and a duration joined by '+'"}}, false
	}
	locations := locFields[:len(locFields)-1]
	duration := locFields[len(locFields)-1]

	h = Header{
		Org:       org,
		Event:     event,
		Locations: locations,
		Duration:  duration,
		Issuance:  issuance,
		Station:   station,
	}

	orgs := allowedOrgs_
	if orgs == nil {
		orgs = allowedOrgs
	}
	events := allowedEvents
	if events == nil {
		events = registeredEvents
	}

	if !orgs[org] {
		issues = append(issues, FieldIssue{"ORG", "not in allowed originator list: " + org})
	}
	if !events[event] {
		issues = append(issues, FieldIssue{"EEE", "not in known event code set: " + event})
	}
	if len(locations) < 1 || len(locations) > 31 {
		issues = append(issues, FieldIssue{"PSSCCC", "expected 1-31 location codes"})
	}
	for _, loc := range locations {
		if !isSixDigits(loc) {
			issues = append(issues, FieldIssue{"PSSCCC", "location code not six decimal digits: " + loc})
		}
	}
	if len(duration) != 4 || !isAllDigits(duration) {
		issues = append(issues, FieldIssue{"TTTT", "duration not HHMM digits: " + duration})
	} else {
		if mm, err := strconv.Atoi(duration[2:]); err != nil || mm >= 60 {
			issues = append(issues, FieldIssue{"TTTT", "minute field >= 60: " + duration})
		}
	}
	if len(issuance) != 7 || !isAllDigits(issuance) {
		issues = append(issues, FieldIssue{"JJJHHMM", "issuance not 7 digits: " + issuance})
	} else {
		if jjj, err := strconv.Atoi(issuance[:3]); err != nil || jjj < 1 || jjj > 366 {
			issues = append(issues, FieldIssue{"JJJHHMM", "day-of-year out of [001,366]: " + issuance})
		}
	}
	if !stationIDPattern.MatchString(station) {
		issues = append(issues, FieldIssue{"LLLLLLLL", "station id must match [A-Z0-9/ ]{8}: " + station})
	}

	return h, issues, true
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isSixDigits(s string) bool {
	return len(s) == 6 && isAllDigits(s)
}

// ConfidenceFromIssues converts a structural issue count into the
// confidence penalty from spec section 4.4: 0.1 per failed field,
// floored at 0.0, applied on top of a base confidence.
func ConfidenceFromIssues(base float64, issues []FieldIssue) float64 {
	c := base - 0.1*float64(len(issues))
	if c < 0 {
		c = 0
	}
	return c
}
