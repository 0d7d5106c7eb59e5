/*
NAME
  adapter_file.go

DESCRIPTION
  adapter_file.go implements the file Source kind: a WAV file read
  start to finish, optionally looping, generalizing this repository's
  AVFile device (open/seek-on-loop/mutex-guarded os.File) to produce
  normalized mono float64 Frames instead of raw bytes.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/kr8mer/eas-station/config"
	"github.com/kr8mer/eas-station/pcm"
)

// FileConfig configures a FileSource.
type FileConfig struct {
	Path string
	Loop bool
}

// FileSource reads PCM frames from a WAV file.
type FileSource struct {
	mu sync.Mutex

	path string
	loop bool

	f       *os.File
	dec     *wav.Decoder
	running bool

	targetRate uint
	metrics    SourceMetrics
}

// NewFileSource returns an unconfigured FileSource.
func NewFileSource() *FileSource { return &FileSource{} }

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Set(_ config.Config, desc Descriptor) error {
	fc, ok := desc.Config.(FileConfig)
	if !ok {
		return fmt.Errorf("audio: file source requires FileConfig")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = fc.Path
	s.loop = fc.Loop
	s.targetRate = desc.TargetSampleRate
	return nil
}

func (s *FileSource) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if s.path == "" {
		return errors.New("audio: file source not configured")
	}
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("audio: could not open %s: %w", s.path, err)
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return fmt.Errorf("audio: %s is not a valid WAV file", s.path)
	}
	s.f = f
	s.dec = dec
	s.running = true
	return nil
}

func (s *FileSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	s.dec = nil
	return err
}

func (s *FileSource) Read(maxSamples int) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.dec == nil {
		return Frame{}, ErrEOF
	}

	channels := int(s.dec.NumChans)
	if channels < 1 {
		channels = 1
	}
	buf := &goaudio.IntBuffer{
		Data:           make([]int, maxSamples*channels),
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: int(s.dec.SampleRate)},
		SourceBitDepth: int(s.dec.BitDepth),
	}
	n, err := s.dec.PCMBuffer(buf)
	if err != nil && err != io.EOF {
		s.metrics.ErrorCount++
		s.metrics.LastError = err
		return Frame{}, fmt.Errorf("audio: wav read: %w", err)
	}
	if n == 0 {
		if s.loop {
			if _, seekErr := s.f.Seek(0, io.SeekStart); seekErr != nil {
				return Frame{}, fmt.Errorf("audio: loop seek: %w", seekErr)
			}
			s.dec = wav.NewDecoder(s.f)
			return Frame{}, ErrUnderrun
		}
		return Frame{}, ErrEOF
	}

	ints := buf.Data[:n]
	floats := make([]float64, len(ints))
	scale := float64(int(1) << uint(buf.SourceBitDepth-1))
	for i, v := range ints {
		floats[i] = float64(v) / scale
	}
	if buf.Format.NumChannels > 1 {
		floats = pcm.DownmixToMono(floats, buf.Format.NumChannels)
	}
	if uint(buf.Format.SampleRate) != s.targetRate && s.targetRate != 0 {
		resampled, err := pcm.Resample(floats, uint(buf.Format.SampleRate), s.targetRate)
		if err != nil {
			if errors.Is(err, pcm.ErrUnsupportedRatio) {
				return Frame{}, ErrResamplerUnavailable
			}
			return Frame{}, fmt.Errorf("audio: resample: %w", err)
		}
		floats = resampled
	}

	s.metrics.RMSDBFS = RMSDBFS(floats)
	s.metrics.PeakDBFS = PeakDBFS(floats)
	s.metrics.SampleRate = s.targetRate

	return Frame{
		Samples:    floats,
		SampleRate: s.targetRate,
		CapturedAt: time.Now(),
		Source:     s.Name(),
	}, nil
}

func (s *FileSource) Metrics() SourceMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *FileSource) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return StateStopped
	}
	return StateRunning
}
