/*
NAME
  emitter.go

DESCRIPTION
  emitter.go implements C5: it receives validated Outcomes from the
  triplet validator, converts those with Emit set into Events, and
  publishes them to every configured Sink.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package alert

import (
	"sync/atomic"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/kr8mer/eas-station/same"
)

// Emitter is C5. It is driven from a single goroutine reading
// validator outcomes; Snapshot is safe to call from any goroutine.
type Emitter struct {
	sinks Sink
	log   logging.Logger

	emitted   uint64
	suppressed uint64
	failed    uint64
}

// NewEmitter constructs an Emitter publishing to sinks.
func NewEmitter(sinks Sink, log logging.Logger) *Emitter {
	return &Emitter{sinks: sinks, log: log}
}

// Stats is a read-only snapshot of emission counters.
type Stats struct {
	Emitted    uint64
	Suppressed uint64
	Failed     uint64
}

// Snapshot returns the current emission counters.
func (e *Emitter) Snapshot() Stats {
	return Stats{
		Emitted:    atomic.LoadUint64(&e.emitted),
		Suppressed: atomic.LoadUint64(&e.suppressed),
		Failed:     atomic.LoadUint64(&e.failed),
	}
}

// Submit converts a validator Outcome for source into an Event and
// publishes it if the outcome says to emit. Outcomes with Emit=false
// (below minimum confidence, duplicate, or structurally discarded) are
// logged at Debug and counted as suppressed, never published.
func (e *Emitter) Submit(oc same.Outcome, source string, detectedAt time.Time) {
	e.SubmitWithArchive(oc, source, detectedAt, nil)
}

// SubmitWithArchive behaves like Submit but attaches a pre-captured
// ArchiveHandle to the published Event, for callers (the pipeline)
// that archive the originating burst themselves via ArchiveSink before
// publication.
func (e *Emitter) SubmitWithArchive(oc same.Outcome, source string, detectedAt time.Time, archive *ArchiveHandle) {
	if !oc.Emit {
		atomic.AddUint64(&e.suppressed, 1)
		if e.log != nil {
			e.log.Debug("alert suppressed", "reason", oc.Reason, "text", oc.Text, "confidence", oc.Confidence)
		}
		return
	}

	ev := Event{
		ID:         oc.Header.ID(),
		Header:     oc.Header,
		RawText:    oc.Text,
		Confidence: oc.Confidence,
		ByteErrors: oc.ByteErrors,
		Source:     source,
		DetectedAt: detectedAt,
		EmittedAt:  time.Now(),
		Archive:    archive,
	}

	if err := e.sinks.Publish(ev); err != nil {
		atomic.AddUint64(&e.failed, 1)
		if e.log != nil {
			e.log.Error("alert sink publish failed", "id", ev.ID, "error", err.Error())
		}
		return
	}
	atomic.AddUint64(&e.emitted, 1)
}
