/*
NAME
  sink_test.go

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package alert

import (
	"errors"
	"sync"
	"testing"
)

// countingSink fails its first failUntil calls then succeeds, and
// records every Event it was asked to publish.
type countingSink struct {
	mu        sync.Mutex
	failUntil int
	calls     int
	published []Event
}

func (s *countingSink) Publish(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failUntil {
		return errors.New("countingSink: induced failure")
	}
	s.published = append(s.published, e)
	return nil
}

func (s *countingSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestPublishWithRetryRecoversWithinAttempts(t *testing.T) {
	s := &countingSink{failUntil: sinkMaxAttempts - 1}
	if err := publishWithRetry(s, Event{ID: "A"}); err != nil {
		t.Fatalf("publishWithRetry: %v", err)
	}
	if got := s.callCount(); got != sinkMaxAttempts {
		t.Fatalf("calls = %d, want %d", got, sinkMaxAttempts)
	}
}

func TestPublishWithRetryExhausts(t *testing.T) {
	s := &countingSink{failUntil: sinkMaxAttempts + 5}
	if err := publishWithRetry(s, Event{ID: "A"}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := s.callCount(); got != sinkMaxAttempts {
		t.Fatalf("calls = %d, want %d", got, sinkMaxAttempts)
	}
}

func TestMultiSinkDemotesFailingSinkWithoutStallingOthers(t *testing.T) {
	bad := &countingSink{failUntil: sinkMaxAttempts + 5}
	good := &countingSink{}
	m := NewMultiSink(bad, good)

	if err := m.Publish(Event{ID: "A"}); err == nil {
		t.Fatal("expected a combined error reporting the failing sink")
	}
	if got := good.callCount(); got != 1 {
		t.Fatalf("good sink calls = %d, want 1 (must not be stalled by bad sink)", got)
	}
	if len(good.published) != 1 {
		t.Fatalf("good sink received %d events, want 1", len(good.published))
	}
	if got := m.Degraded(); got != 1 {
		t.Fatalf("Degraded() = %d, want 1", got)
	}
}

func TestMultiSinkRecoversFromDegraded(t *testing.T) {
	flaky := &countingSink{failUntil: sinkMaxAttempts + 5}
	m := NewMultiSink(flaky)

	if err := m.Publish(Event{ID: "A"}); err == nil {
		t.Fatal("expected first publish to fail")
	}
	if got := m.Degraded(); got != 1 {
		t.Fatalf("Degraded() = %d, want 1 after failure", got)
	}

	flaky.mu.Lock()
	flaky.failUntil = 0
	flaky.calls = 0
	flaky.mu.Unlock()

	if err := m.Publish(Event{ID: "B"}); err != nil {
		t.Fatalf("expected second publish to succeed, got %v", err)
	}
	if got := m.Degraded(); got != 0 {
		t.Fatalf("Degraded() = %d, want 0 after recovery", got)
	}
}
