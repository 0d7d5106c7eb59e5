/*
NAME
  validator.go

DESCRIPTION
  validator.go implements the header triplet validator (C4): it aligns
  up to three repeated transmissions of the same SAME header, recovers
  a majority-voted reconstruction, computes a confidence score,
  structurally validates the result, and suppresses duplicate
  emissions within a sliding window.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package same

import (
	"container/list"
	"sort"
	"time"
)

// TripletWindow is the window within which three repeated header
// transmissions are grouped for majority voting (spec section 4.4).
const TripletWindow = 15 * time.Second

// rollingCandidate is a Candidate awaiting its siblings within the
// triplet voting window.
type rollingCandidate struct {
	Candidate
	arrived time.Time
	header  Header
	parsed  bool
}

// Validator is C4: the header triplet voter, field validator and
// dedup gate. It is intended to be driven from a single goroutine
// (spec section 5: "confined to C4's thread; no external access").
type Validator struct {
	window        time.Duration
	dedupWindow   time.Duration
	minConfidence float64
	cacheSize     int

	allowedOrgs   map[string]bool
	allowedEvents map[string]bool

	rolling []rollingCandidate

	dedup     map[string]*list.Element // key -> LRU element
	dedupList *list.List                // front = most recently seen
}

type dedupEntry struct {
	key     string
	expires time.Time
}

// ValidatorConfig configures a Validator.
type ValidatorConfig struct {
	Window        time.Duration // default TripletWindow
	DedupWindow   time.Duration
	MinConfidence float64
	CacheSize     int
	AllowedOrgs   []string
	AllowedEvents []string
}

// NewValidator constructs a Validator from cfg, applying defaults for
// zero-valued fields.
func NewValidator(cfg ValidatorConfig) *Validator {
	v := &Validator{
		window:        cfg.Window,
		dedupWindow:   cfg.DedupWindow,
		minConfidence: cfg.MinConfidence,
		cacheSize:     cfg.CacheSize,
		dedup:         make(map[string]*list.Element),
		dedupList:     list.New(),
	}
	if v.window <= 0 {
		v.window = TripletWindow
	}
	if v.dedupWindow <= 0 {
		v.dedupWindow = 10 * time.Minute
	}
	if v.cacheSize <= 0 {
		v.cacheSize = 512
	}
	if len(cfg.AllowedOrgs) > 0 {
		v.allowedOrgs = toSet(cfg.AllowedOrgs)
	}
	if len(cfg.AllowedEvents) > 0 {
		v.allowedEvents = toSet(cfg.AllowedEvents)
	}
	return v
}

// Window returns the configured triplet-voting window, for callers
// that need to schedule Flush at a matching cadence.
func (v *Validator) Window() time.Duration { return v.window }

// SetAllowLists replaces the originator/event-code allow lists in
// place. Like Submit and Flush, it must only be called from the
// single goroutine driving this Validator; it exists so a config
// file watcher can push a reload through that same goroutine instead
// of mutating allowedOrgs/allowedEvents from its own goroutine.
func (v *Validator) SetAllowLists(orgs, events []string) {
	if len(orgs) > 0 {
		v.allowedOrgs = toSet(orgs)
	} else {
		v.allowedOrgs = nil
	}
	if len(events) > 0 {
		v.allowedEvents = toSet(events)
	} else {
		v.allowedEvents = nil
	}
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// Outcome is the result of submitting a candidate header to the
// validator.
type Outcome struct {
	Header     Header
	Text       string
	Confidence float64
	ByteErrors int
	Emit       bool // false if below MinConfidence, suppressed by dedup, or a provisional pair
	Reason     string
}

// Submit feeds a new candidate (non-EOM) header into the validator,
// grouping it with any siblings received within the triplet window and
// returning an Outcome once enough information is available to decide
// whether to emit. Submit returns ok=false when the candidate is still
// waiting on siblings and nothing is ready to report yet.
func (v *Validator) Submit(c Candidate, now time.Time) (Outcome, bool) {
	v.prune(now)

	h, issues, tokenized := ParseHeader(c.Text, v.allowedOrgs, v.allowedEvents)
	rc := rollingCandidate{Candidate: c, arrived: now, header: h, parsed: tokenized}
	v.rolling = append(v.rolling, rc)

	if !tokenized {
		// Cannot even group it; fall through to single-candidate path.
		return v.resolveSingle(rc, issues, now)
	}

	group := v.groupFor(rc)
	switch {
	case len(group) >= 3:
		return v.resolveTriplet(group, now)
	case len(group) == 2:
		return v.resolvePair(group, issues, now)
	default:
		return Outcome{}, false
	}
}

// Flush is called on a timer (or before shutdown) to resolve any
// candidates that have been waiting past the triplet window without
// reaching a triplet: an agreeing pair at confidence 0.75, otherwise
// a lone candidate at 0.50. Expired candidates are pruned afterwards.
func (v *Validator) Flush(now time.Time) []Outcome {
	defer v.prune(now)
	var out []Outcome
	seen := map[int]bool{}
	for i, rc := range v.rolling {
		if seen[i] || !rc.parsed {
			continue
		}
		if now.Sub(rc.arrived) < v.window {
			continue
		}
		group := v.groupFor(rc)
		if len(group) == 0 {
			continue
		}
		_, issues, _ := ParseHeader(rc.Text, v.allowedOrgs, v.allowedEvents)
		var oc Outcome
		ok := false
		if len(group) == 2 {
			oc, ok = v.resolvePair(group, issues, now)
		}
		if !ok {
			oc, ok = v.resolveSingle(rc, issues, now)
		}
		if ok {
			out = append(out, oc)
		}
		for j := range v.rolling {
			if v.groupKey(v.rolling[j].header) == v.groupKey(rc.header) {
				seen[j] = true
			}
		}
	}
	return out
}

func (v *Validator) groupKey(h Header) string {
	return h.Org + "|" + h.Event + "|" + h.Issuance
}

func (v *Validator) groupFor(rc rollingCandidate) []rollingCandidate {
	key := v.groupKey(rc.header)
	var group []rollingCandidate
	for _, o := range v.rolling {
		if o.parsed && v.groupKey(o.header) == key {
			group = append(group, o)
		}
	}
	sort.Slice(group, func(i, j int) bool { return group[i].arrived.Before(group[j].arrived) })
	return group
}

func (v *Validator) prune(now time.Time) {
	kept := v.rolling[:0]
	for _, rc := range v.rolling {
		if now.Sub(rc.arrived) <= v.window {
			kept = append(kept, rc)
		}
	}
	v.rolling = kept
}

// resolveTriplet implements spec section 4.4 step 3: positional
// majority vote across (at least) three candidates, tie-broken by
// per-byte DCD strength.
func (v *Validator) resolveTriplet(group []rollingCandidate, now time.Time) (Outcome, bool) {
	three := group[:3]
	length := len(three[0].Text)
	for _, c := range three[1:] {
		if len(c.Text) > length {
			length = len(c.Text)
		}
	}

	voted := make([]byte, 0, length)
	byteErrors := 0
	for pos := 0; pos < length; pos++ {
		counts := map[byte]int{}
		var chars [3]byte
		var have [3]bool
		for i, c := range three {
			if pos < len(c.Text) {
				ch := c.Text[pos]
				chars[i] = ch
				have[i] = true
				counts[ch]++
			}
		}
		var winner byte
		won := false
		for ch, n := range counts {
			if n >= 2 {
				winner = ch
				won = true
				break
			}
		}
		if !won {
			// All three disagree (or some missing): pick the candidate
			// with the highest recorded DCD strength at this position.
			byteErrors++
			best := -1.0
			for i := range three {
				if !have[i] {
					continue
				}
				var strength float64
				if pos < len(three[i].ByteStrength) {
					strength = three[i].ByteStrength[pos]
				}
				if strength > best {
					best = strength
					winner = chars[i]
				}
			}
		}
		voted = append(voted, winner)
	}

	text := string(voted)
	h, issues, ok := ParseHeader(text, v.allowedOrgs, v.allowedEvents)
	if !ok {
		return v.discard(text, issues)
	}
	confidence := ConfidenceFromIssues(1.0, issues)
	return v.finish(h, text, confidence, byteErrors, now)
}

// resolvePair implements spec section 4.4 step 4: two candidates that
// agree byte-for-byte are emitted at confidence 0.75. While the first
// of them is still inside the triplet window a third copy may follow,
// so the outcome is provisional (Emit=false, not recorded for dedup);
// Flush resolves the pair for real once the window has passed.
func (v *Validator) resolvePair(group []rollingCandidate, issues []FieldIssue, now time.Time) (Outcome, bool) {
	a, b := group[0], group[1]
	if a.Text != b.Text {
		return Outcome{}, false
	}
	h, issues2, ok := ParseHeader(a.Text, v.allowedOrgs, v.allowedEvents)
	if !ok {
		return v.discard(a.Text, issues2)
	}
	confidence := ConfidenceFromIssues(0.75, issues2)
	if now.Sub(a.arrived) < v.window {
		return Outcome{Header: h, Text: a.Text, Confidence: confidence, ByteErrors: a.ByteErrors + b.ByteErrors, Reason: "awaiting third copy"}, true
	}
	return v.finish(h, a.Text, confidence, a.ByteErrors+b.ByteErrors, now)
}

// resolveSingle implements spec section 4.4 step 5: a lone candidate
// that passes structural validation is emitted at confidence 0.50.
func (v *Validator) resolveSingle(rc rollingCandidate, issues []FieldIssue, now time.Time) (Outcome, bool) {
	h, issues2, ok := ParseHeader(rc.Text, v.allowedOrgs, v.allowedEvents)
	if !ok {
		return v.discard(rc.Text, issues2)
	}
	if len(issues2) > 0 {
		return v.discard(rc.Text, issues2)
	}
	confidence := 0.50
	return v.finish(h, rc.Text, confidence, rc.ByteErrors, now)
}

func (v *Validator) discard(text string, issues []FieldIssue) (Outcome, bool) {
	reason := "structurally invalid"
	if len(issues) > 0 {
		reason = issues[0].Error()
	}
	return Outcome{Text: text, Reason: reason}, true
}

func (v *Validator) finish(h Header, text string, confidence float64, byteErrors int, now time.Time) (Outcome, bool) {
	if v.dedupHit(h, now) {
		return Outcome{Header: h, Text: text, Confidence: confidence, ByteErrors: byteErrors, Reason: "duplicate"}, true
	}
	emit := confidence >= v.minConfidence
	reason := ""
	if !emit {
		reason = "below minimum confidence"
	}
	return Outcome{
		Header:     h,
		Text:       text,
		Confidence: confidence,
		ByteErrors: byteErrors,
		Emit:       emit,
		Reason:     reason,
	}, true
}

// dedupHit checks and, if the header is new, records it in the LRU
// dedup cache keyed on (EEE, sorted(PSSCCC), JJJHHMM, LLLLLLLL) per
// spec section 4.4.
func (v *Validator) dedupHit(h Header, now time.Time) bool {
	locs := append([]string(nil), h.Locations...)
	sort.Strings(locs)
	key := h.Event + "|" + joinStrings(locs) + "|" + h.Issuance + "|" + h.Station

	if el, ok := v.dedup[key]; ok {
		entry := el.Value.(*dedupEntry)
		if now.Before(entry.expires) {
			v.dedupList.MoveToFront(el)
			return true
		}
		v.dedupList.Remove(el)
		delete(v.dedup, key)
	}

	el := v.dedupList.PushFront(&dedupEntry{key: key, expires: now.Add(v.dedupWindow)})
	v.dedup[key] = el
	for v.dedupList.Len() > v.cacheSize {
		back := v.dedupList.Back()
		if back == nil {
			break
		}
		entry := back.Value.(*dedupEntry)
		delete(v.dedup, entry.key)
		v.dedupList.Remove(back)
	}
	return false
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += "+"
		}
		out += s
	}
	return out
}
