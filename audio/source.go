/*
NAME
  source.go

DESCRIPTION
  source.go defines the Source interface (C1) that every adapter kind
  (sdr, sound-card, file, stream) implements, generalizing the
  AVDevice contract this repository's video pipeline used.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

// Package audio implements the continuous PCM ingestion pipeline: the
// uniform source adapter contract (C1) and the priority/failover
// multiplexing audio source manager (C2).
package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/kr8mer/eas-station/config"
)

// ErrUnderrun is returned by Read when the adapter has no samples
// available within its read timeout; it is not a fatal condition.
var ErrUnderrun = errors.New("audio: underrun")

// ErrEOF is returned by Read when a finite source (e.g. a
// non-looping file) has been exhausted.
var ErrEOF = errors.New("audio: eof")

// Source is the uniform PCM producer abstraction over SDR, sound-card,
// file and HTTP-stream origins (spec section 4.1). Implementations
// must never block a Read call indefinitely: all I/O is bounded by
// ReadTimeout.
type Source interface {
	// Name returns the adapter kind's human-readable name.
	Name() string

	// Set configures the adapter from a Descriptor before Start.
	Set(d config.Config, desc Descriptor) error

	// Start begins producing frames. Calling Start on an already
	// running adapter is a no-op.
	Start(ctx context.Context) error

	// Stop requests the adapter to cease producing frames. Stop is
	// cooperative: the adapter observes it between reads and returns
	// within one ReadTimeout period (spec section 5).
	Stop() error

	// Read returns the next Frame of at most maxSamples mono samples.
	// It returns ErrUnderrun if no data arrived within the adapter's
	// read timeout, or ErrEOF if a finite source is exhausted.
	Read(maxSamples int) (Frame, error)

	// Metrics returns the adapter's current health snapshot.
	Metrics() SourceMetrics

	// State returns the adapter's current lifecycle state.
	State() State
}

// ReadTimeout bounds every Source.Read call (spec section 4.1: "all
// I/O has a 5-s timeout").
const ReadTimeout = 5

// MultiError aggregates independent adapter-construction errors, the
// same accumulate-and-default shape used by config.MultiError.
type MultiError []error

func (m MultiError) Error() string {
	s := fmt.Sprintf("%d adapter error(s):", len(m))
	for _, e := range m {
		s += " " + e.Error() + ";"
	}
	return s
}

// Manager errors (spec section 4.2).
var (
	ErrDuplicateName      = errors.New("audio: duplicate source name")
	ErrUnknownName        = errors.New("audio: unknown source name")
	ErrConfigInvalid      = errors.New("audio: invalid source configuration")
	ErrResamplerUnavailable = errors.New("audio: high-quality resampler unavailable")
)
