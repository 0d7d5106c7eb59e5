/*
NAME
  event.go

DESCRIPTION
  event.go defines the Event type published once a candidate header has
  cleared triplet validation and confidence gating (C5).

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

// Package alert implements C5, the alert emission stage that turns a
// validated SAME header into a published Event with an optional raw
// audio archive.
package alert

import (
	"time"

	"github.com/kr8mer/eas-station/same"
)

// Event is a fully validated, deduplicated SAME alert ready for
// downstream consumption (logging, archival, relay).
type Event struct {
	// ID is the dedup identifier, same.Header.ID().
	ID string

	Header     same.Header
	RawText    string
	Confidence float64
	ByteErrors int

	Source     string
	DetectedAt time.Time
	EmittedAt  time.Time

	// Archive is non-nil when an audio clip of the originating burst
	// was captured alongside the alert.
	Archive *ArchiveHandle
}

// ArchiveHandle identifies where an Event's originating audio was
// archived.
type ArchiveHandle struct {
	Path     string
	Duration time.Duration
	Bytes    int64
}
