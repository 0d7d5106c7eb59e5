/*
NAME
  pipeline.go

DESCRIPTION
  pipeline.go wires the five cooperating components (spec section 2)
  into one running process: the audio source manager (C2) feeds the
  streaming decoder (C3), whose candidates are grouped and scored by
  the triplet validator (C4) before the emitter (C5) publishes alert
  events, with a rolling wall-clock-indexed audio history standing in
  for the pinned sample-offset archive buffer. Matches this
  repository's revid.go convention of a single top-level value owning
  every running goroutine, constructed once at startup.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

// Package pipeline assembles the audio manager, decoder, validator and
// emitter into the running EAS station core.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/kr8mer/eas-station/alert"
	"github.com/kr8mer/eas-station/audio"
	"github.com/kr8mer/eas-station/config"
	"github.com/kr8mer/eas-station/same"
)

// historyWindow bounds how much raw audio the pipeline retains for
// archival purposes (spec section 6: "archived audio" handle covering
// a burst plus trailing voice segment).
const historyWindow = 90 * time.Second

// historyChunk is one timestamped slice of recently processed PCM.
type historyChunk struct {
	at      time.Time
	samples []float64
	rate    uint
}

// Pipeline is the single top-level value owning every running
// goroutine in the EAS station core.
type Pipeline struct {
	cfg config.Config
	log logging.Logger

	Manager   *audio.Manager
	Decoder   *same.Decoder
	Validator *same.Validator
	Emitter   *alert.Emitter
	Archive   *alert.ArchiveSink // nil disables audio archival

	mu      sync.Mutex
	history []historyChunk

	allowListUpdates <-chan config.AllowLists

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SetAllowListSource wires a config.Watcher's update channel into the
// pipeline's own driving goroutine, so the validator's allow lists are
// reloaded without ever being mutated from a second goroutine. Must be
// called before Start.
func (p *Pipeline) SetAllowListSource(ch <-chan config.AllowLists) {
	p.allowListUpdates = ch
}

// New constructs a Pipeline. sources must already be registered with
// mgr before Start is called.
func New(cfg config.Config, mgr *audio.Manager, validator *same.Validator, emitter *alert.Emitter, archive *alert.ArchiveSink) *Pipeline {
	dec := same.NewDecoder(cfg.SampleRate, "pipeline", cfg.CandidateQueueLen)
	p := &Pipeline{
		cfg:       cfg,
		log:       cfg.Log,
		Manager:   mgr,
		Decoder:   dec,
		Validator: validator,
		Emitter:   emitter,
		Archive:   archive,
	}
	return p
}

// Start launches the audio manager and the pipeline's own draining
// goroutine. The manager's onSwitch hook (registered at construction
// time via audio.NewManager) must call p.Decoder.Reset; callers
// typically do this by passing p.OnSourceSwitch to audio.NewManager
// before registering sources.
func (p *Pipeline) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	if err := p.Manager.Start(ctx); err != nil {
		cancel()
		return err
	}

	p.wg.Add(1)
	go p.drain(ctx)
	return nil
}

// Stop cancels the draining goroutines and the audio manager.
func (p *Pipeline) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return p.Manager.Stop()
}

// OnSourceSwitch is the hook to pass as audio.NewManager's onSwitch
// argument: it resets the decoder's bit-level state but preserves the
// validator's dedup cache, per spec section 4.2.
func (p *Pipeline) OnSourceSwitch(from, to string) {
	p.Decoder.Reset()
	if p.log != nil {
		p.log.Info("active source switched", "from", from, "to", to)
	}
}

// drain is the single goroutine that serially feeds the decoder (spec
// section 4.3.6: "must be called serially by exactly one goroutine")
// and, on the same goroutine, drives the validator's Submit and Flush
// calls, since the validator is likewise documented single-goroutine
// (spec section 5: "confined to C4's thread; no external access").
func (p *Pipeline) drain(ctx context.Context) {
	defer p.wg.Done()

	interval := p.Validator.Window() / 4
	if interval < 20*time.Millisecond {
		interval = 20 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case lists := <-p.allowListUpdates:
			p.Validator.SetAllowLists(lists.AllowedOriginators, lists.AllowedEventCodes)
			if p.log != nil {
				p.log.Info("validator allow lists reloaded",
					"originators", len(lists.AllowedOriginators), "eventCodes", len(lists.AllowedEventCodes))
			}
		case now := <-ticker.C:
			for _, oc := range p.Validator.Flush(now) {
				p.publish(oc, p.Manager.ActiveSource(), now)
			}
		case frame, ok := <-p.Manager.Output():
			if !ok {
				return
			}
			p.recordHistory(frame)
			p.Decoder.ProcessSamples(frame.Samples)
			p.drainCandidates(frame.Source)
		}
	}
}

func (p *Pipeline) recordHistory(frame audio.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, historyChunk{at: frame.CapturedAt, samples: frame.Samples, rate: frame.SampleRate})
	cutoff := time.Now().Add(-historyWindow)
	i := 0
	for i < len(p.history) && p.history[i].at.Before(cutoff) {
		i++
	}
	p.history = p.history[i:]
}

// sliceHistory concatenates every retained chunk overlapping
// [from, to], approximating the pinned sample-offset archive range
// with wall-clock timestamps (the core does not track a global sample
// counter across source switches).
func (p *Pipeline) sliceHistory(from, to time.Time) []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []float64
	for _, c := range p.history {
		if c.at.Before(from) || c.at.After(to) {
			continue
		}
		out = append(out, c.samples...)
	}
	return out
}

func (p *Pipeline) drainCandidates(source string) {
	for {
		select {
		case c := <-p.Decoder.Candidates():
			p.handleCandidate(c, source)
		default:
			return
		}
	}
}

func (p *Pipeline) handleCandidate(c same.Candidate, source string) {
	if c.IsEOM {
		if p.log != nil {
			p.log.Info("EOM detected", "source", source)
		}
		return
	}

	oc, ok := p.Validator.Submit(c, c.DetectedAt)
	if !ok {
		return
	}
	p.publish(oc, source, c.DetectedAt)
}

func (p *Pipeline) publish(oc same.Outcome, source string, detectedAt time.Time) {
	if !oc.Emit || p.Archive == nil {
		p.Emitter.Submit(oc, source, detectedAt)
		return
	}

	from := detectedAt.Add(-1 * time.Second)
	to := detectedAt.Add(p.Validator.Window())
	samples := p.sliceHistory(from, to)
	if len(samples) == 0 {
		p.Emitter.Submit(oc, source, detectedAt)
		return
	}

	ev := alert.Event{ID: oc.Header.ID(), DetectedAt: detectedAt}
	if err := p.Archive.WriteClip(&ev, samples); err != nil {
		if p.log != nil {
			p.log.Warning("archive clip failed", "id", ev.ID, "error", err.Error())
		}
		p.Emitter.Submit(oc, source, detectedAt)
		return
	}
	p.Emitter.SubmitWithArchive(oc, source, detectedAt, ev.Archive)
}
