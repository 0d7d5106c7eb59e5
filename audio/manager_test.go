package audio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kr8mer/eas-station/config"
)

// fakeSource is a minimal Source used to drive the manager's selection
// policy directly, without a real adapter.
type fakeSource struct {
	mu    sync.Mutex
	name  string
	rate  uint
	rms   float64
	state State
	seq   int
}

func (s *fakeSource) Name() string { return s.name }
func (s *fakeSource) Set(_ config.Config, desc Descriptor) error {
	s.rate = desc.TargetSampleRate
	return nil
}
func (s *fakeSource) Start(context.Context) error { s.state = StateRunning; return nil }
func (s *fakeSource) Stop() error                 { s.state = StateStopped; return nil }
func (s *fakeSource) Read(maxSamples int) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	samples := make([]float64, maxSamples)
	for i := range samples {
		samples[i] = 0.1
	}
	return Frame{Samples: samples, SampleRate: s.rate, CapturedAt: time.Now(), Seq: uint64(s.seq), Source: s.name}, nil
}
func (s *fakeSource) Metrics() SourceMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SourceMetrics{RMSDBFS: s.rms}
}
func (s *fakeSource) State() State { return s.state }

func (s *fakeSource) setRMS(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rms = v
}

func testConfig() config.Config {
	cfg := config.Default(nil)
	cfg.DenoiseEnabled = false // keep fake samples unfiltered for deterministic ring content
	cfg.SchedulingTick = 10 * time.Millisecond
	cfg.SilenceWindow = 30 * time.Millisecond
	cfg.RecoveryWindow = 60 * time.Millisecond
	return cfg
}

func TestRegisterRejectsDuplicateAndInvalidRate(t *testing.T) {
	m := NewManager(testConfig(), nil)
	desc := Descriptor{Name: "a", TargetSampleRate: 22050}
	if err := m.Register(desc, &fakeSource{name: "a"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(desc, &fakeSource{name: "a"}); err != ErrDuplicateName {
		t.Fatalf("got %v, want ErrDuplicateName", err)
	}
	if err := m.Register(Descriptor{Name: "b"}, &fakeSource{name: "b"}); err != ErrConfigInvalid {
		t.Fatalf("got %v, want ErrConfigInvalid (zero sample rate)", err)
	}
}

func TestManagerPrefersHighestPriorityHealthySource(t *testing.T) {
	cfg := testConfig()
	var switches [][2]string
	var mu sync.Mutex
	m := NewManager(cfg, func(from, to string) {
		mu.Lock()
		switches = append(switches, [2]string{from, to})
		mu.Unlock()
	})

	primary := &fakeSource{name: "primary"}
	backup := &fakeSource{name: "backup"}
	if err := m.Register(Descriptor{Name: "primary", Priority: 0, TargetSampleRate: 22050}, primary); err != nil {
		t.Fatalf("Register primary: %v", err)
	}
	if err := m.Register(Descriptor{Name: "backup", Priority: 1, TargetSampleRate: 22050}, backup); err != nil {
		t.Fatalf("Register backup: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	waitForActive(t, m, "primary")

	// Silence the primary; the manager should fail over to backup once
	// SilenceWindow has elapsed.
	primary.setRMS(cfg.SilenceFloorDBFS - 10)
	waitForActive(t, m, "backup")

	// Bring the primary back; it must not preempt backup until it has
	// been healthy for RecoveryWindow.
	primary.setRMS(0)
	time.Sleep(cfg.RecoveryWindow / 2)
	if got := m.ActiveSource(); got != "backup" {
		t.Fatalf("recovered primary preempted too early: active=%q", got)
	}
	waitForActive(t, m, "primary")

	mu.Lock()
	defer mu.Unlock()
	if len(switches) < 2 {
		t.Fatalf("got %d onSwitch calls, want at least 2: %v", len(switches), switches)
	}
}

func TestManagerEmitsFramesOnOutput(t *testing.T) {
	cfg := testConfig()
	m := NewManager(cfg, nil)
	src := &fakeSource{name: "only"}
	if err := m.Register(Descriptor{Name: "only", Priority: 0, TargetSampleRate: 22050}, src); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	select {
	case frame := <-m.Output():
		if frame.Source != "only" {
			t.Fatalf("got source %q, want %q", frame.Source, "only")
		}
		if len(frame.Samples) == 0 {
			t.Fatal("got empty frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}
}

func TestPerSourceLifecycleOps(t *testing.T) {
	cfg := testConfig()
	m := NewManager(cfg, nil)

	if err := m.StartSource("missing"); err != ErrUnknownName {
		t.Fatalf("StartSource(missing) = %v, want ErrUnknownName", err)
	}
	if err := m.StopSource("missing"); err != ErrUnknownName {
		t.Fatalf("StopSource(missing) = %v, want ErrUnknownName", err)
	}
	if err := m.RemoveSource("missing"); err != ErrUnknownName {
		t.Fatalf("RemoveSource(missing) = %v, want ErrUnknownName", err)
	}

	primary := &fakeSource{name: "primary"}
	backup := &fakeSource{name: "backup"}
	if err := m.Register(Descriptor{Name: "primary", Priority: 0, TargetSampleRate: 22050}, primary); err != nil {
		t.Fatalf("Register primary: %v", err)
	}
	if err := m.Register(Descriptor{Name: "backup", Priority: 1, TargetSampleRate: 22050}, backup); err != nil {
		t.Fatalf("Register backup: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	waitForActive(t, m, "primary")

	if err := m.StopSource("primary"); err != nil {
		t.Fatalf("StopSource(primary): %v", err)
	}
	if primary.State() != StateStopped {
		t.Fatalf("primary.State() = %v, want StateStopped", primary.State())
	}
	waitForActive(t, m, "backup")

	if err := m.StartSource("primary"); err != nil {
		t.Fatalf("StartSource(primary): %v", err)
	}
	waitForActive(t, m, "primary")

	if err := m.RemoveSource("backup"); err != nil {
		t.Fatalf("RemoveSource(backup): %v", err)
	}
	names := m.SourceNames()
	for _, n := range names {
		if n == "backup" {
			t.Fatalf("RemoveSource did not deregister backup: %v", names)
		}
	}
	if err := m.StartSource("backup"); err != ErrUnknownName {
		t.Fatalf("StartSource(backup) after removal = %v, want ErrUnknownName", err)
	}
}

func waitForActive(t *testing.T, m *Manager, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if m.ActiveSource() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for active source %q, got %q", want, m.ActiveSource())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
