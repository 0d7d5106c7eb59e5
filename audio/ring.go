/*
NAME
  ring.go

DESCRIPTION
  ring.go implements the per-source PCM ring buffer (spec section 4.2:
  "each source is fed through a fixed-capacity ring buffer; on overrun
  the oldest frame is discarded"), built on this repository's existing
  overwrite-oldest pool buffer rather than a bespoke ring.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package audio

import (
	"fmt"
	"time"

	"github.com/ausocean/utils/pool"

	"github.com/kr8mer/eas-station/pcm"
)

// ringChunkSamples bounds how many samples one ring buffer slot holds;
// the pool.Buffer beneath it is chunked in bytes of S32LE-encoded
// samples.
const ringChunkSamples = 4096

// ringTimeout bounds blocking pool.Buffer operations so a stalled
// consumer cannot wedge the adapter goroutine feeding it.
const ringTimeout = 200 * time.Millisecond

// Ring is a fixed-capacity, overwrite-oldest-on-overrun PCM ring
// buffer for one source.
type Ring struct {
	buf *pool.Buffer
}

// NewRing returns a Ring sized to hold approximately seconds of audio
// at sampleRate.
func NewRing(sampleRate uint, seconds uint) *Ring {
	chunkBytes := ringChunkSamples * 4 // S32LE
	totalSamples := sampleRate * seconds
	slots := int(totalSamples)/ringChunkSamples + 1
	if slots < 2 {
		slots = 2
	}
	return &Ring{buf: pool.NewBuffer(slots, chunkBytes, ringTimeout)}
}

// Write enqueues samples, returning pool.ErrDropped (not fatal) if the
// oldest unread chunk had to be overwritten to make room.
func (r *Ring) Write(samples []float64) error {
	b, err := pcm.Float64ToBytes(samples, pcm.S32LE)
	if err != nil {
		return fmt.Errorf("ring: encode: %w", err)
	}
	_, err = r.buf.Write(b)
	return err
}

// Next dequeues the oldest available chunk, blocking up to timeout.
func (r *Ring) Next(timeout time.Duration) ([]float64, error) {
	b, err := r.buf.Next(timeout)
	if err != nil {
		return nil, err
	}
	return pcm.BytesToFloat64(b, pcm.S32LE)
}

// Len returns the number of full chunks currently queued.
func (r *Ring) Len() int { return r.buf.Len() }

// Close releases the underlying pool buffer.
func (r *Ring) Close() error { return r.buf.Close() }
