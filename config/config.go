/*
NAME
  config.go

DESCRIPTION
  config.go defines the configuration surface for an EAS station core
  pipeline: sample rate, source-selection policy, ring buffer bounds,
  dedup/confidence thresholds and encoder defaults.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

// Package config holds the configuration surface for the EAS station
// core pipeline (audio source manager, SAME decoder/validator, and
// encoder) and the defaulting/validation conventions shared by them.
package config

import (
	"fmt"
	"time"

	"github.com/ausocean/utils/logging"
)

// Defaults for the configuration surface described in spec section 6.
const (
	DefaultSampleRate        = 22050
	DefaultSilenceFloorDBFS  = -60.0
	DefaultSilenceWindow     = 5 * time.Second
	DefaultRecoveryWindow    = 10 * time.Second
	DefaultRingBufferSeconds = 12
	DefaultDedupWindow       = 10 * time.Minute
	DefaultMinConfidenceEmit = 0.5
	DefaultAttentionSeconds  = 8.0
	DefaultInterBurstSilence = 1.0 * time.Second
	DefaultSchedulingTick    = 100 * time.Millisecond
	DefaultDedupCacheSize    = 512
	DefaultCandidateQueueLen = 16
)

// Config holds every tunable named in spec section 6. All fields have
// safe defaults applied by Default and validated by Validate; an
// invalid field is defaulted rather than rejected outright, following
// the accumulate-and-default convention used elsewhere in this
// codebase (see audio.MultiError).
type Config struct {
	// SampleRate is the PCM rate for the whole pipeline; every source
	// adapter must resample to this rate before entering the manager.
	SampleRate uint

	// SilenceFloorDBFS is the RMS level below which a source is
	// considered silent for selection purposes.
	SilenceFloorDBFS float64

	// SilenceWindow is the duration a source's RMS must be observed
	// over before it is judged silent or not.
	SilenceWindow time.Duration

	// RecoveryWindow is the hysteresis period a higher-priority source
	// must stay healthy for before reclaiming selection from a
	// lower-priority source that took over.
	RecoveryWindow time.Duration

	// RingBufferSeconds bounds every per-source PCM ring buffer.
	RingBufferSeconds uint

	// DedupWindow suppresses re-emission of the same alert identifier.
	DedupWindow time.Duration

	// MinConfidenceEmit is the floor below which a validated candidate
	// is logged but not emitted as an alert event.
	MinConfidenceEmit float64

	// AttentionSeconds is the encoder's attention-signal duration.
	AttentionSeconds float64

	// InterBurstSilence is the silence between encoder bursts; must be
	// >= 1.0s per FCC convention.
	InterBurstSilence time.Duration

	// AllowedOriginators whitelists SAME ORG codes enforced by the
	// triplet validator. Empty means the built-in table (EAS, CIV,
	// WXR, PEP) is used.
	AllowedOriginators []string

	// AllowedEventCodes whitelists SAME EEE codes enforced by the
	// triplet validator. Empty means the built-in registered table is
	// used.
	AllowedEventCodes []string

	// SchedulingTick bounds how often the manager re-evaluates source
	// selection (spec section 4.2: "<= 100ms").
	SchedulingTick time.Duration

	// CandidateQueueLen bounds the queue of candidate headers between
	// C3 and C4.
	CandidateQueueLen int

	// DedupCacheSize bounds the LRU dedup cache owned by C4.
	DedupCacheSize int

	// DenoiseEnabled band-limits every source's samples to the SAME
	// tone range before they reach the decoder.
	DenoiseEnabled bool

	// Log is used by every component that owns a goroutine. It must
	// not be nil after Default/Validate has run.
	Log logging.Logger
}

// Default returns a Config with every field set to its documented
// default.
func Default(l logging.Logger) Config {
	return Config{
		SampleRate:         DefaultSampleRate,
		SilenceFloorDBFS:   DefaultSilenceFloorDBFS,
		SilenceWindow:      DefaultSilenceWindow,
		RecoveryWindow:     DefaultRecoveryWindow,
		RingBufferSeconds:  DefaultRingBufferSeconds,
		DedupWindow:        DefaultDedupWindow,
		MinConfidenceEmit:  DefaultMinConfidenceEmit,
		AttentionSeconds:   DefaultAttentionSeconds,
		InterBurstSilence:  DefaultInterBurstSilence,
		SchedulingTick:     DefaultSchedulingTick,
		CandidateQueueLen:  DefaultCandidateQueueLen,
		DedupCacheSize:     DefaultDedupCacheSize,
		DenoiseEnabled:     true,
		Log:                l,
	}
}

// MultiError collects independent, non-fatal configuration defaulting
// errors the way device adapters in this repository accumulate
// per-field warnings (each invalid field is defaulted, not rejected).
type MultiError []error

func (m MultiError) Error() string {
	if len(m) == 0 {
		return "no errors"
	}
	s := fmt.Sprintf("%d configuration field(s) defaulted:", len(m))
	for _, e := range m {
		s += " " + e.Error() + ";"
	}
	return s
}

// Validate checks c's fields, defaulting anything invalid in place and
// returning a non-nil MultiError describing what was defaulted. A
// non-nil return is advisory, not fatal: the returned Config is always
// safe to use.
func (c *Config) Validate() error {
	var errs MultiError
	if c.SampleRate < 8000 {
		errs = append(errs, fmt.Errorf("sample rate %d below 8kHz minimum, defaulting", c.SampleRate))
		c.SampleRate = DefaultSampleRate
	}
	if c.SilenceWindow <= 0 {
		errs = append(errs, fmt.Errorf("invalid silence window, defaulting"))
		c.SilenceWindow = DefaultSilenceWindow
	}
	if c.RecoveryWindow <= 0 {
		errs = append(errs, fmt.Errorf("invalid recovery window, defaulting"))
		c.RecoveryWindow = DefaultRecoveryWindow
	}
	if c.RingBufferSeconds == 0 {
		errs = append(errs, fmt.Errorf("invalid ring buffer duration, defaulting"))
		c.RingBufferSeconds = DefaultRingBufferSeconds
	}
	if c.DedupWindow <= 0 {
		errs = append(errs, fmt.Errorf("invalid dedup window, defaulting"))
		c.DedupWindow = DefaultDedupWindow
	}
	if c.MinConfidenceEmit < 0 || c.MinConfidenceEmit > 1 {
		errs = append(errs, fmt.Errorf("min confidence emit out of [0,1], defaulting"))
		c.MinConfidenceEmit = DefaultMinConfidenceEmit
	}
	if c.AttentionSeconds <= 0 {
		errs = append(errs, fmt.Errorf("invalid attention duration, defaulting"))
		c.AttentionSeconds = DefaultAttentionSeconds
	}
	if c.InterBurstSilence < time.Second {
		errs = append(errs, fmt.Errorf("inter-burst silence below 1.0s floor, defaulting"))
		c.InterBurstSilence = DefaultInterBurstSilence
	}
	if c.SchedulingTick <= 0 || c.SchedulingTick > 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("invalid scheduling tick, defaulting"))
		c.SchedulingTick = DefaultSchedulingTick
	}
	if c.CandidateQueueLen <= 0 {
		errs = append(errs, fmt.Errorf("invalid candidate queue length, defaulting"))
		c.CandidateQueueLen = DefaultCandidateQueueLen
	}
	if c.DedupCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid dedup cache size, defaulting"))
		c.DedupCacheSize = DefaultDedupCacheSize
	}
	if c.Log == nil {
		errs = append(errs, fmt.Errorf("no logger provided, defaulting to discard logger"))
		c.Log = logging.New(int8(logging.Fatal), nil, false)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// LogInvalidField logs at Warning that a field was invalid and has
// been defaulted. It does nothing when c.Log is nil.
func (c *Config) LogInvalidField(name string, defaultVal interface{}) {
	if c.Log == nil {
		return
	}
	c.Log.Warning("invalid config field, defaulting", "field", name, "default", defaultVal)
}
