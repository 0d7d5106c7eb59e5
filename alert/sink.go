/*
NAME
  sink.go

DESCRIPTION
  sink.go defines the Sink interface and the built-in sinks: a
  structured-logging sink and a WAV archival sink, following the
  mutex-guarded os.File ownership pattern used by this codebase's
  file-backed device adapters.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package alert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ausocean/utils/logging"
)

// Sink publishes a validated Event to some downstream consumer. Sinks
// must be safe for concurrent use; the emitter calls Publish from a
// single goroutine but archival and relay may run callers from
// elsewhere (e.g. a replay tool).
type Sink interface {
	Publish(Event) error
}

// Per spec section 4.5: sink delivery is retried up to sinkMaxAttempts
// times with sinkRetryBackoff between attempts before the sink is
// demoted to degraded.
const (
	sinkMaxAttempts  = 3
	sinkRetryBackoff = 500 * time.Millisecond
)

// member tracks one MultiSink entry's degraded status across Publish
// calls.
type member struct {
	sink     Sink
	degraded bool
}

// MultiSink fans an Event out to every member sink. Each sink is
// retried independently on failure; a sink that exhausts its retries
// is demoted to degraded but never stalls delivery to the others. A
// degraded sink is still attempted on the next Publish, so it recovers
// automatically once it starts succeeding again.
type MultiSink struct {
	mu      sync.Mutex
	members []*member
}

// NewMultiSink constructs a MultiSink fanning out to sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{members: make([]*member, len(sinks))}
	for i, s := range sinks {
		m.members[i] = &member{sink: s}
	}
	return m
}

func (m *MultiSink) Publish(e Event) error {
	var errs []error
	for _, mem := range m.members {
		err := publishWithRetry(mem.sink, e)
		m.mu.Lock()
		mem.degraded = err != nil
		m.mu.Unlock()
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%d sink(s) failed:", len(errs))
	for _, err := range errs {
		msg += " " + err.Error() + ";"
	}
	return errors.New(msg)
}

// Degraded returns the number of member sinks whose most recent
// Publish exhausted its retries.
func (m *MultiSink) Degraded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, mem := range m.members {
		if mem.degraded {
			n++
		}
	}
	return n
}

// publishWithRetry calls s.Publish, retrying up to sinkMaxAttempts
// times with sinkRetryBackoff between attempts.
func publishWithRetry(s Sink, e Event) error {
	var err error
	for attempt := 1; attempt <= sinkMaxAttempts; attempt++ {
		if err = s.Publish(e); err == nil {
			return nil
		}
		if attempt < sinkMaxAttempts {
			time.Sleep(sinkRetryBackoff)
		}
	}
	return err
}

// LogSink publishes Events as structured log lines.
type LogSink struct {
	Log logging.Logger
}

func (s LogSink) Publish(e Event) error {
	s.Log.Info("alert emitted",
		"id", e.ID,
		"org", e.Header.Org,
		"event", e.Header.Event,
		"locations", e.Header.Locations,
		"confidence", e.Confidence,
		"byteErrors", e.ByteErrors,
		"source", e.Source,
	)
	return nil
}

// ArchiveSink writes a WAV clip for every Event it is handed, named by
// the event's dedup ID and detection time.
type ArchiveSink struct {
	Dir        string
	SampleRate int

	mu sync.Mutex
}

// NewArchiveSink returns an ArchiveSink rooted at dir, creating dir if
// it does not already exist.
func NewArchiveSink(dir string, sampleRate int) (*ArchiveSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create archive directory: %w", err)
	}
	return &ArchiveSink{Dir: dir, SampleRate: sampleRate}, nil
}

// WriteClip archives pcm as a mono 16-bit WAV file for event e and
// records the resulting ArchiveHandle in e.Archive.
func (s *ArchiveSink) WriteClip(e *Event, pcm []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("%s-%d.wav", sanitizeID(e.ID), e.DetectedAt.UnixNano())
	path := filepath.Join(s.Dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create archive clip: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, s.SampleRate, 16, 1, 1)
	ints := make([]int, len(pcm))
	for i, v := range pcm {
		iv := int(v * 32767)
		if iv > 32767 {
			iv = 32767
		}
		if iv < -32768 {
			iv = -32768
		}
		ints[i] = iv
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: s.SampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("could not write archive clip: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("could not finalize archive clip: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("could not stat archive clip: %w", err)
	}
	e.Archive = &ArchiveHandle{
		Path:     path,
		Duration: time.Duration(len(pcm)) * time.Second / time.Duration(s.SampleRate),
		Bytes:    info.Size(),
	}
	return nil
}

// Publish is a no-op for ArchiveSink: archiving happens eagerly via
// WriteClip before the event reaches the rest of the sink chain, since
// the raw samples are only available at capture time.
func (s *ArchiveSink) Publish(Event) error { return nil }

func sanitizeID(id string) string {
	out := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
