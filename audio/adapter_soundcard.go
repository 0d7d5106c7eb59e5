/*
NAME
  adapter_soundcard.go

DESCRIPTION
  adapter_soundcard.go implements the sound-card Source kind,
  generalizing this repository's ALSA device: the same card/device
  discovery, channel/rate/format negotiation, and reopen-on-failure
  background read loop, feeding a fixed-capacity buffer rather than
  this package's own pool.Buffer (ring.go already provides that via
  the Manager).

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	yalsa "github.com/yobert/alsa"

	"github.com/kr8mer/eas-station/config"
	"github.com/kr8mer/eas-station/pcm"
)

// SoundCardConfig configures a SoundCardSource.
type SoundCardConfig struct {
	// CardTitle selects a specific card by title; empty uses the first
	// recording-capable device found.
	CardTitle string
}

// Reopen backoff bounds (spec section 4.1): doubling from 1s up to a
// 30s cap, and a run of erroredThreshold disconnects within
// erroredWindow demotes the adapter to StateErrored.
const (
	reopenBackoffMin = 1 * time.Second
	reopenBackoffMax = 30 * time.Second
	erroredWindow    = 30 * time.Second
	erroredThreshold = 3
)

// SoundCardSource captures from an ALSA recording device.
type SoundCardSource struct {
	mu sync.Mutex

	title      string
	targetRate uint

	dev     *yalsa.Device
	format  pcm.SampleFormat
	running bool
	metrics SourceMetrics

	errored         bool
	consecutiveErrs int
	windowStart     time.Time

	frames chan []float64
	errCh  chan error
	stop   chan struct{}
}

// NewSoundCardSource returns an unconfigured SoundCardSource.
func NewSoundCardSource() *SoundCardSource {
	return &SoundCardSource{frames: make(chan []float64, 32), errCh: make(chan error, 1)}
}

func (s *SoundCardSource) Name() string { return "sound-card" }

func (s *SoundCardSource) Set(_ config.Config, desc Descriptor) error {
	cc, _ := desc.Config.(SoundCardConfig)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = cc.CardTitle
	s.targetRate = desc.TargetSampleRate
	return nil
}

func (s *SoundCardSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	dev, format, err := openALSACaptureDevice(s.title, s.targetRate)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.dev = dev
	s.format = format
	s.running = true
	s.stop = make(chan struct{})
	s.mu.Unlock()

	go s.capture(ctx)
	return nil
}

// openALSACaptureDevice negotiates channels, rate and format exactly
// as device/alsa/alsa.go's open does, returning the prepared device.
func openALSACaptureDevice(title string, wantRate uint) (*yalsa.Device, pcm.SampleFormat, error) {
	cards, err := yalsa.OpenCards()
	if err != nil {
		return nil, pcm.Unknown, fmt.Errorf("audio: open cards: %w", err)
	}
	defer yalsa.CloseCards(cards)

	var dev *yalsa.Device
	for _, card := range cards {
		devices, err := card.Devices()
		if err != nil {
			continue
		}
		for _, d := range devices {
			if d.Type != yalsa.PCM || !d.Record {
				continue
			}
			if d.Title == title || title == "" {
				dev = d
				break
			}
		}
	}
	if dev == nil {
		return nil, pcm.Unknown, errors.New("audio: no ALSA recording device found")
	}
	if err := dev.Open(); err != nil {
		return nil, pcm.Unknown, fmt.Errorf("audio: open device: %w", err)
	}

	if _, err := dev.NegotiateChannels(1); err != nil {
		return nil, pcm.Unknown, fmt.Errorf("audio: negotiate channels: %w", err)
	}

	rate := int(wantRate)
	if rate <= 0 {
		rate = config.DefaultSampleRate
	}
	negRate, err := dev.NegotiateRate(rate)
	if err != nil {
		return nil, pcm.Unknown, fmt.Errorf("audio: negotiate rate: %w", err)
	}
	if uint(negRate) != wantRate && wantRate != 0 {
		dev.Close()
		return nil, pcm.Unknown, fmt.Errorf("audio: device could not negotiate requested rate %d, got %d", wantRate, negRate)
	}

	devFmt, err := dev.NegotiateFormat(yalsa.S16_LE)
	if err != nil {
		devFmt, err = dev.NegotiateFormat(yalsa.S32_LE)
		if err != nil {
			dev.Close()
			return nil, pcm.Unknown, fmt.Errorf("audio: negotiate format: %w", err)
		}
	}
	var format pcm.SampleFormat
	switch devFmt {
	case yalsa.S16_LE:
		format = pcm.S16LE
	case yalsa.S32_LE:
		format = pcm.S32LE
	default:
		dev.Close()
		return nil, pcm.Unknown, fmt.Errorf("audio: unsupported negotiated format %v", devFmt)
	}

	const wantPeriod = 0.05
	bytesPerSecond := negRate * (bitsFor(format) / 8)
	periodSize, err := dev.NegotiatePeriodSize(int(float64(bytesPerSecond) * wantPeriod))
	if err != nil {
		return nil, pcm.Unknown, fmt.Errorf("audio: negotiate period size: %w", err)
	}
	if _, err := dev.NegotiateBufferSize(periodSize * 4); err != nil {
		return nil, pcm.Unknown, fmt.Errorf("audio: negotiate buffer size: %w", err)
	}
	if err := dev.Prepare(); err != nil {
		return nil, pcm.Unknown, fmt.Errorf("audio: prepare device: %w", err)
	}
	return dev, format, nil
}

func bitsFor(f pcm.SampleFormat) int {
	if f == pcm.S32LE {
		return 32
	}
	return 16
}

// capture continuously reads from the ALSA device, reopening on
// failure, until ctx is cancelled or Stop is called.
func (s *SoundCardSource) capture(ctx context.Context) {
	buf := s.dev.NewBufferDuration(200 * time.Millisecond)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		default:
		}

		if err := s.dev.Read(buf.Data); err != nil {
			select {
			case s.errCh <- err:
			default:
			}

			s.mu.Lock()
			now := time.Now()
			if s.windowStart.IsZero() || now.Sub(s.windowStart) > erroredWindow {
				s.windowStart = now
				s.consecutiveErrs = 0
			}
			s.consecutiveErrs++
			if s.consecutiveErrs >= erroredThreshold {
				s.errored = true
			}
			s.mu.Unlock()

			if !s.reopen(ctx) {
				return
			}
			continue
		}

		floats, err := pcm.BytesToFloat64(buf.Data, s.format)
		if err != nil {
			continue
		}
		select {
		case s.frames <- floats:
		default:
			// Consumer fell behind; drop this period's audio rather than
			// block the capture goroutine.
			select {
			case <-s.frames:
			default:
			}
			s.frames <- floats
		}
	}
}

// reopen retries opening the capture device with exponential backoff
// (reopenBackoffMin doubling up to reopenBackoffMax) between attempts,
// blocking until it succeeds or ctx is cancelled or Stop is called.
// Returns false if cancelled before a reopen succeeded.
func (s *SoundCardSource) reopen(ctx context.Context) bool {
	backoff := reopenBackoffMin
	for {
		s.mu.Lock()
		dev, format, err := openALSACaptureDevice(s.title, s.targetRate)
		if err == nil {
			if s.dev != nil {
				s.dev.Close()
			}
			s.dev = dev
			s.format = format
			s.errored = false
		}
		s.mu.Unlock()
		if err == nil {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-s.stop:
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reopenBackoffMax {
			backoff = reopenBackoffMax
		}
	}
}

func (s *SoundCardSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	close(s.stop)
	s.running = false
	if s.dev != nil {
		s.dev.Close()
		s.dev = nil
	}
	return nil
}

func (s *SoundCardSource) Read(maxSamples int) (Frame, error) {
	select {
	case floats := <-s.frames:
		if len(floats) > maxSamples {
			floats = floats[:maxSamples]
		}
		s.mu.Lock()
		s.metrics.RMSDBFS = RMSDBFS(floats)
		s.metrics.PeakDBFS = PeakDBFS(floats)
		s.metrics.SampleRate = s.targetRate
		s.mu.Unlock()
		return Frame{Samples: floats, SampleRate: s.targetRate, CapturedAt: time.Now(), Source: s.Name()}, nil
	case err := <-s.errCh:
		s.mu.Lock()
		s.metrics.ErrorCount++
		s.metrics.LastError = err
		s.mu.Unlock()
		return Frame{}, ErrUnderrun
	case <-time.After(ReadTimeout * time.Second):
		return Frame{}, ErrUnderrun
	}
}

func (s *SoundCardSource) Metrics() SourceMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *SoundCardSource) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return StateStopped
	}
	if s.errored {
		return StateErrored
	}
	return StateRunning
}
