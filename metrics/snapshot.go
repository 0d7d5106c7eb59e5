/*
NAME
  snapshot.go

DESCRIPTION
  snapshot.go defines the read-only metrics snapshot external
  collaborators can poll: per-source health, decoder state and emitter
  counters, gathered without locking the pipeline
  components that own them (each contributor already exposes its own
  atomic or mutex-guarded Snapshot/Metrics accessor; this package only
  aggregates their results).

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

// Package metrics aggregates the pipeline's component-level snapshots
// into a single struct suitable for a status endpoint or periodic log
// line, matching this repository's preference for a concrete,
// poll-based status surface over a push-based metrics client.
package metrics

import (
	"time"

	"github.com/kr8mer/eas-station/alert"
	"github.com/kr8mer/eas-station/audio"
	"github.com/kr8mer/eas-station/same"
)

// SourceSnapshot is one registered source's health at the moment of
// collection.
type SourceSnapshot struct {
	Name   string
	Active bool
	audio.SourceMetrics
}

// Snapshot is the full point-in-time picture of a running pipeline.
type Snapshot struct {
	CollectedAt time.Time

	ActiveSource string
	Sources      []SourceSnapshot

	Decoder same.Stats

	Emitted    uint64
	Suppressed uint64
	Failed     uint64
}

// Collector pulls a Snapshot from a running Manager, Decoder and
// Emitter. It holds no state of its own; Collect is safe to call
// repeatedly and concurrently with pipeline operation, since every
// field it reads is already safe for concurrent access.
type Collector struct {
	Manager *audio.Manager
	Decoder *same.Decoder
	Emitter *alert.Emitter
}

// Collect gathers one Snapshot.
func (c *Collector) Collect() Snapshot {
	now := time.Now()
	active := c.Manager.ActiveSource()

	names := c.Manager.SourceNames()
	sources := make([]SourceSnapshot, 0, len(names))
	for _, name := range names {
		m, _ := c.Manager.SourceMetricsFor(name)
		sources = append(sources, SourceSnapshot{
			Name:          name,
			Active:        name == active,
			SourceMetrics: m,
		})
	}

	stats := alert.Stats{}
	if c.Emitter != nil {
		stats = c.Emitter.Snapshot()
	}

	var decStats same.Stats
	if c.Decoder != nil {
		decStats = c.Decoder.Snapshot()
	}

	return Snapshot{
		CollectedAt:  now,
		ActiveSource: active,
		Sources:      sources,
		Decoder:      decStats,
		Emitted:      stats.Emitted,
		Suppressed:   stats.Suppressed,
		Failed:       stats.Failed,
	}
}
