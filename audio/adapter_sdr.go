/*
NAME
  adapter_sdr.go

DESCRIPTION
  adapter_sdr.go implements the sdr Source kind: an rtl_tcp client that
  pulls raw interleaved uint8 I/Q samples, FM-discriminates them to
  baseband audio, and decimates to the pipeline's target sample rate.
  The wire protocol (12-byte dongle info header, 5-byte big-endian
  tuner commands) follows the rtl_tcp client conventions used by the
  rtlamr-style SDR tools in this pack.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/kr8mer/eas-station/config"
	"github.com/kr8mer/eas-station/pcm"
)

// rtl_tcp tuner command bytes.
const (
	cmdSetFrequency  byte = 0x01
	cmdSetSampleRate byte = 0x02
	cmdSetGainMode   byte = 0x03
)

// SDRConfig configures an SDRSource against an rtl_tcp instance.
type SDRConfig struct {
	Addr       string // host:port of the rtl_tcp server
	CenterFreq uint32 // Hz
	IQRate     uint32 // Hz, the raw I/Q sample rate requested from the dongle; must be an integer multiple of the pipeline's target rate
}

// SDRSource demodulates narrowband FM from an SDR dongle's raw I/Q
// stream into the pipeline's normalized mono audio.
type SDRSource struct {
	mu sync.Mutex

	cfg        SDRConfig
	targetRate uint
	conn       net.Conn
	running    bool
	metrics    SourceMetrics

	prevI, prevQ float64
	havePrev     bool
}

// NewSDRSource returns an unconfigured SDRSource.
func NewSDRSource() *SDRSource { return &SDRSource{} }

func (s *SDRSource) Name() string { return "sdr" }

func (s *SDRSource) Set(_ config.Config, desc Descriptor) error {
	sc, ok := desc.Config.(SDRConfig)
	if !ok {
		return fmt.Errorf("audio: sdr source requires SDRConfig")
	}
	if sc.IQRate == 0 || desc.TargetSampleRate == 0 || sc.IQRate%uint32(desc.TargetSampleRate) != 0 {
		return fmt.Errorf("audio: sdr IQRate %d must be an integer multiple of target rate %d", sc.IQRate, desc.TargetSampleRate)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = sc
	s.targetRate = desc.TargetSampleRate
	return nil
}

func (s *SDRSource) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	conn, err := net.DialTimeout("tcp", s.cfg.Addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("audio: dial rtl_tcp at %s: %w", s.cfg.Addr, err)
	}

	header := make([]byte, 12)
	if _, err := io.ReadFull(conn, header); err != nil {
		conn.Close()
		return fmt.Errorf("audio: read rtl_tcp dongle info: %w", err)
	}

	if err := sendTunerCommand(conn, cmdSetSampleRate, s.cfg.IQRate); err != nil {
		conn.Close()
		return err
	}
	if s.cfg.CenterFreq != 0 {
		if err := sendTunerCommand(conn, cmdSetFrequency, s.cfg.CenterFreq); err != nil {
			conn.Close()
			return err
		}
	}
	if err := sendTunerCommand(conn, cmdSetGainMode, 0); err != nil {
		conn.Close()
		return err
	}

	s.conn = conn
	s.running = true
	s.havePrev = false
	return nil
}

func sendTunerCommand(w io.Writer, cmd byte, param uint32) error {
	buf := make([]byte, 5)
	buf[0] = cmd
	binary.BigEndian.PutUint32(buf[1:], param)
	_, err := w.Write(buf)
	return err
}

func (s *SDRSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Read pulls one raw I/Q block, FM-discriminates it, and decimates to
// the target sample rate.
func (s *SDRSource) Read(maxSamples int) (Frame, error) {
	s.mu.Lock()
	conn := s.conn
	ratio := int(s.cfg.IQRate / uint32(s.targetRate))
	s.mu.Unlock()
	if conn == nil {
		return Frame{}, ErrEOF
	}

	iqPairs := maxSamples * ratio
	raw := make([]byte, iqPairs*2)
	conn.SetReadDeadline(time.Now().Add(ReadTimeout * time.Second))
	n, err := io.ReadFull(conn, raw)
	if err != nil && n == 0 {
		s.mu.Lock()
		s.metrics.ErrorCount++
		s.metrics.LastError = err
		s.mu.Unlock()
		if errors.Is(err, net.ErrClosed) {
			return Frame{}, ErrEOF
		}
		return Frame{}, ErrUnderrun
	}
	raw = raw[:n-(n%2)]

	s.mu.Lock()
	discriminated := make([]float64, 0, len(raw)/2)
	var magSum float64
	for i := 0; i+1 < len(raw); i += 2 {
		iv := (float64(raw[i]) - 127.5) / 127.5
		qv := (float64(raw[i+1]) - 127.5) / 127.5
		magSum += math.Hypot(iv, qv)
		if s.havePrev {
			// Polar discriminator: angle of the product of the current
			// sample with the conjugate of the previous one.
			re := iv*s.prevI + qv*s.prevQ
			im := qv*s.prevI - iv*s.prevQ
			discriminated = append(discriminated, math.Atan2(im, re)/math.Pi)
		}
		s.prevI, s.prevQ = iv, qv
		s.havePrev = true
	}
	avgMag := 0.0
	if len(raw) > 0 {
		avgMag = magSum / float64(len(raw)/2)
	}
	s.mu.Unlock()

	decimated, err := pcm.Resample(discriminated, uint(ratio), 1)
	if err != nil {
		decimated = discriminated
	}

	s.mu.Lock()
	s.metrics.RMSDBFS = RMSDBFS(decimated)
	s.metrics.PeakDBFS = PeakDBFS(decimated)
	s.metrics.SampleRate = s.targetRate
	s.metrics.SignalDBm = SignalDBm(avgMag)
	s.mu.Unlock()

	return Frame{
		Samples:    decimated,
		SampleRate: s.targetRate,
		CapturedAt: time.Now(),
		Source:     s.Name(),
	}, nil
}

func (s *SDRSource) Metrics() SourceMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *SDRSource) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return StateStopped
	}
	return StateRunning
}
