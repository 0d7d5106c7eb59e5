package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/kr8mer/eas-station/alert"
	"github.com/kr8mer/eas-station/audio"
	"github.com/kr8mer/eas-station/config"
	"github.com/kr8mer/eas-station/encoder"
	"github.com/kr8mer/eas-station/same"
)

// fakeSource replays a fixed PCM buffer once, then reports ErrEOF.
type fakeSource struct {
	mu      sync.Mutex
	samples []float64
	offset  int
	rate    uint
	state   audio.State
}

func (s *fakeSource) Name() string { return "fake" }
func (s *fakeSource) Set(_ config.Config, desc audio.Descriptor) error {
	s.rate = desc.TargetSampleRate
	return nil
}
func (s *fakeSource) Start(context.Context) error { s.state = audio.StateRunning; return nil }
func (s *fakeSource) Stop() error                 { s.state = audio.StateStopped; return nil }
func (s *fakeSource) Read(maxSamples int) (audio.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offset >= len(s.samples) {
		time.Sleep(10 * time.Millisecond)
		return audio.Frame{}, audio.ErrUnderrun
	}
	end := s.offset + maxSamples
	if end > len(s.samples) {
		end = len(s.samples)
	}
	chunk := s.samples[s.offset:end]
	s.offset = end
	return audio.Frame{Samples: chunk, SampleRate: s.rate, CapturedAt: time.Now(), Source: s.Name()}, nil
}
func (s *fakeSource) Metrics() audio.SourceMetrics { return audio.SourceMetrics{RMSDBFS: 0} }
func (s *fakeSource) State() audio.State           { return s.state }

type capturingSink struct {
	mu     sync.Mutex
	events []alert.Event
}

func (c *capturingSink) Publish(e alert.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

const pipelineTestFS uint = 22050
const pipelineTestHeader = "ZCZC-EAS-RWT-039107+0030-2121800-KR8MER  -"

func TestPipelineEmitsAlertFromSyntheticBurst(t *testing.T) {
	enc := encoder.NewEncoder(pipelineTestFS)
	samples, err := enc.EncodeHeader(pipelineTestHeader)
	if err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}

	log := logging.New(int8(logging.Fatal), nil, false)
	cfg := config.Default(log)
	cfg.SampleRate = pipelineTestFS
	cfg.SchedulingTick = 10 * time.Millisecond
	cfg.MinConfidenceEmit = 0.0

	sink := &capturingSink{}
	emitter := alert.NewEmitter(sink, log)
	validator := same.NewValidator(same.ValidatorConfig{MinConfidence: 0, Window: 100 * time.Millisecond})

	var p *Pipeline
	mgr := audio.NewManager(cfg, func(from, to string) {
		if p != nil {
			p.OnSourceSwitch(from, to)
		}
	})
	p = New(cfg, mgr, validator, emitter, nil)

	src := &fakeSource{samples: samples}
	if err := mgr.Register(audio.Descriptor{Name: "fake", Priority: 0, TargetSampleRate: pipelineTestFS}, src); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	deadline := time.After(3 * time.Second)
	for {
		sink.mu.Lock()
		n := len(sink.events)
		sink.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for alert event")
		case <-time.After(20 * time.Millisecond):
		}
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.events[0].RawText != pipelineTestHeader {
		t.Fatalf("got header %q, want %q", sink.events[0].RawText, pipelineTestHeader)
	}
}
