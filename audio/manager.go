/*
NAME
  manager.go

DESCRIPTION
  manager.go implements C2, the audio source manager: it owns every
  registered Source's ingest goroutine and ring buffer, runs the
  priority/failover selection policy with silence detection and
  recovery hysteresis, and publishes the selected source's samples as
  a single contiguous stream for the decoder.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/kr8mer/eas-station/config"
)

// managedSource bundles one registered Source with its ring buffer and
// the bookkeeping the selection policy needs.
type managedSource struct {
	desc    Descriptor
	src     Source
	ring    *Ring
	denoise *Denoiser

	mu           sync.Mutex
	silentSince  time.Time // zero means currently not silent
	healthySince time.Time // when this source most recently became selectable
	metrics      SourceMetrics
	seq          uint64

	running bool
	cancel  context.CancelFunc
	stopped chan struct{}
}

// Manager is C2. Register every Source before calling Start.
type Manager struct {
	cfg config.Config
	log logging.Logger

	mu      sync.Mutex
	sources map[string]*managedSource
	active  string
	lastSwitch time.Time
	ctx        context.Context // set by Start; lets StartSource bind sources added later

	out      chan Frame
	onSwitch func(from, to string)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager constructs a Manager. onSwitch, if non-nil, is invoked
// synchronously from the scheduler goroutine whenever the active
// source changes, so the caller can reset decoder bit-level state
// (spec section 4.2) without racing the output stream.
func NewManager(cfg config.Config, onSwitch func(from, to string)) *Manager {
	return &Manager{
		cfg:      cfg,
		log:      cfg.Log,
		sources:  make(map[string]*managedSource),
		out:      make(chan Frame, 64),
		onSwitch: onSwitch,
	}
}

// Register adds a configured Source under desc.Name. It must be called
// before Start.
func (m *Manager) Register(desc Descriptor, src Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[desc.Name]; ok {
		return ErrDuplicateName
	}
	if desc.TargetSampleRate == 0 {
		return ErrConfigInvalid
	}
	ms := &managedSource{
		desc: desc,
		ring: NewRing(desc.TargetSampleRate, m.cfg.RingBufferSeconds),
		src:  src,
	}
	if m.cfg.DenoiseEnabled {
		d, err := NewDenoiser(desc.TargetSampleRate)
		if err != nil {
			return fmt.Errorf("audio: register %s: %w", desc.Name, err)
		}
		ms.denoise = d
	}
	m.sources[desc.Name] = ms
	return nil
}

// Output returns the channel of Frames drawn from whichever source is
// currently selected. There is exactly one reader in normal operation:
// the pipeline stage driving the decoder.
func (m *Manager) Output() <-chan Frame { return m.out }

// Start launches one ingest goroutine per registered source plus the
// selection scheduler, all bound to ctx.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.mu.Lock()
	m.ctx = ctx
	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		if err := m.StartSource(name); err != nil {
			return err
		}
	}

	m.wg.Add(1)
	go m.schedule(ctx)
	return nil
}

// Stop cancels every ingest goroutine and the scheduler and stops each
// registered Source.
func (m *Manager) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs MultiError
	for _, ms := range m.sources {
		if err := ms.src.Stop(); err != nil {
			errs = append(errs, err)
		}
		ms.ring.Close()
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// StartSource configures and starts a previously registered source
// that is not currently running (spec section 4.2: start_source). It
// is a no-op if the source is already running. Start must have been
// called at least once so the manager has a base context to bind the
// source's goroutine to.
func (m *Manager) StartSource(name string) error {
	m.mu.Lock()
	ms, ok := m.sources[name]
	ctx := m.ctx
	m.mu.Unlock()
	if !ok {
		return ErrUnknownName
	}
	if ctx == nil {
		return ErrConfigInvalid
	}

	ms.mu.Lock()
	if ms.running {
		ms.mu.Unlock()
		return nil
	}
	sctx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	ms.cancel = cancel
	ms.stopped = stopped
	ms.running = true
	ms.mu.Unlock()

	if err := ms.src.Set(m.cfg, ms.desc); err != nil {
		ms.mu.Lock()
		ms.running = false
		ms.mu.Unlock()
		return ErrConfigInvalid
	}
	if err := ms.src.Start(sctx); err != nil {
		ms.mu.Lock()
		ms.running = false
		ms.mu.Unlock()
		return err
	}
	m.wg.Add(1)
	go m.ingest(sctx, ms, stopped)
	return nil
}

// StopSource cancels the ingest goroutine for name and stops its
// Source, leaving it registered so StartSource can resume it later
// (spec section 4.2: stop_source). It is a no-op if the source is not
// currently running. If name is the active source, the next
// scheduling tick picks a replacement.
func (m *Manager) StopSource(name string) error {
	m.mu.Lock()
	ms, ok := m.sources[name]
	m.mu.Unlock()
	if !ok {
		return ErrUnknownName
	}

	ms.mu.Lock()
	if !ms.running {
		ms.mu.Unlock()
		return nil
	}
	cancel := ms.cancel
	stopped := ms.stopped
	ms.running = false
	ms.mu.Unlock()

	cancel()
	<-stopped
	return ms.src.Stop()
}

// RemoveSource stops name if running and permanently deregisters it
// (spec section 4.2: remove_source). A removed source's name may be
// reused by a later Register call.
func (m *Manager) RemoveSource(name string) error {
	m.mu.Lock()
	_, ok := m.sources[name]
	m.mu.Unlock()
	if !ok {
		return ErrUnknownName
	}
	if err := m.StopSource(name); err != nil {
		return err
	}

	m.mu.Lock()
	ms := m.sources[name]
	delete(m.sources, name)
	if m.active == name {
		m.active = ""
	}
	m.mu.Unlock()
	ms.ring.Close()
	return nil
}

// ingest pulls Frames from one Source and writes them into its ring
// buffer until ctx is cancelled.
func (m *Manager) ingest(ctx context.Context, ms *managedSource, stopped chan struct{}) {
	defer close(stopped)
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := ms.src.Read(ringChunkSamples)
		if err != nil {
			if err == ErrUnderrun {
				continue
			}
			if m.log != nil {
				m.log.Warning("source read failed", "source", ms.desc.Name, "error", err.Error())
			}
			continue
		}

		ms.mu.Lock()
		ms.metrics = ms.src.Metrics()
		rms := ms.metrics.RMSDBFS
		if rms < m.cfg.SilenceFloorDBFS {
			if ms.silentSince.IsZero() {
				ms.silentSince = time.Now()
			}
		} else {
			ms.silentSince = time.Time{}
		}
		ms.mu.Unlock()

		samples := frame.Samples
		if ms.denoise != nil {
			filtered, err := ms.denoise.Apply(samples)
			if err != nil {
				if m.log != nil {
					m.log.Warning("denoise failed, using raw samples", "source", ms.desc.Name, "error", err.Error())
				}
			} else {
				samples = filtered
			}
		}

		if err := ms.ring.Write(samples); err != nil && m.log != nil {
			m.log.Debug("ring overrun", "source", ms.desc.Name)
		}
	}
}

// schedule periodically re-evaluates which source should be active and
// forwards its samples to Output.
func (m *Manager) schedule(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.SchedulingTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(m.out)
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Manager) tick() {
	m.mu.Lock()
	best := m.selectBest()
	prev := m.active
	if best != "" && best != prev {
		m.active = best
		m.lastSwitch = time.Now()
	}
	active := m.active
	var ms *managedSource
	if active != "" {
		ms = m.sources[active]
	}
	m.mu.Unlock()

	if active != prev && m.onSwitch != nil {
		m.onSwitch(prev, active)
	}
	if ms == nil {
		return
	}

	samples, err := ms.ring.Next(20 * time.Millisecond)
	if err != nil || len(samples) == 0 {
		return
	}
	ms.mu.Lock()
	ms.seq++
	seq := ms.seq
	ms.mu.Unlock()

	select {
	case m.out <- Frame{Samples: samples, SampleRate: ms.desc.TargetSampleRate, CapturedAt: time.Now(), Seq: seq, Source: active}:
	default:
		if m.log != nil {
			m.log.Warning("manager output channel full, dropping frame", "source", active)
		}
	}
}

// selectBest picks the lowest-Priority (highest precedence) registered
// source that is not currently judged silent, applying recovery
// hysteresis: a source that is healthier than the active one must have
// been continuously healthy for RecoveryWindow before it preempts.
// Must be called with m.mu held.
func (m *Manager) selectBest() string {
	now := time.Now()
	var candidates []*managedSource
	for _, ms := range m.sources {
		candidates = append(candidates, ms)
	}
	// Stable-ish selection: lowest priority number wins, ties broken by
	// name for determinism.
	var winner *managedSource
	for _, ms := range candidates {
		ms.mu.Lock()
		running := ms.running
		silent := !ms.silentSince.IsZero() && now.Sub(ms.silentSince) >= m.cfg.SilenceWindow
		if !silent && ms.healthySince.IsZero() {
			ms.healthySince = now
		}
		if silent {
			ms.healthySince = time.Time{}
		}
		ms.mu.Unlock()
		if silent || !running {
			continue
		}
		if winner == nil || ms.desc.Priority < winner.desc.Priority ||
			(ms.desc.Priority == winner.desc.Priority && ms.desc.Name < winner.desc.Name) {
			winner = ms
		}
	}
	if winner == nil {
		return ""
	}

	if m.active != "" && m.active != winner.desc.Name {
		active, ok := m.sources[m.active]
		if ok {
			active.mu.Lock()
			activeSilent := !active.silentSince.IsZero() && now.Sub(active.silentSince) >= m.cfg.SilenceWindow
			active.mu.Unlock()
			// Only preempt a healthy, lower-priority-number active source
			// once the winner has been healthy continuously for the
			// recovery window; never block a failover away from a source
			// that has actually gone silent.
			if !activeSilent && winner.desc.Priority < active.desc.Priority {
				winner.mu.Lock()
				healthyFor := now.Sub(winner.healthySince)
				winner.mu.Unlock()
				if healthyFor < m.cfg.RecoveryWindow {
					return m.active
				}
			}
		}
	}
	return winner.desc.Name
}

// SourceNames returns the names of every registered source.
func (m *Manager) SourceNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	return names
}

// ActiveSource returns the name of the currently selected source, or
// "" if none is active yet.
func (m *Manager) ActiveSource() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// SourceMetricsFor returns the last observed metrics for name.
func (m *Manager) SourceMetricsFor(name string) (SourceMetrics, bool) {
	m.mu.Lock()
	ms, ok := m.sources[name]
	m.mu.Unlock()
	if !ok {
		return SourceMetrics{}, false
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.metrics, true
}
