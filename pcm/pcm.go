/*
NAME
  pcm.go

DESCRIPTION
  pcm.go provides the byte<->float conversions, channel downmixing and
  resampling that every source adapter (C1) needs to present a uniform
  mono, normalized-float stream to the audio source manager (C2).
  Adapted from this repository's integer-PCM codec package: the same
  sample-format switch and decimation-ratio approach, generalized to
  the normalized-float representation the SAME decoder consumes.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

// Package pcm provides conversion, downmixing and resampling helpers
// for normalized mono float64 PCM audio.
package pcm

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// SampleFormat is the wire format of raw integer PCM bytes before
// conversion to normalized float64.
type SampleFormat int

const (
	Unknown SampleFormat = -1
)

const (
	S16LE SampleFormat = iota
	S32LE
)

func (f SampleFormat) String() string {
	switch f {
	case S16LE:
		return "S16_LE"
	case S32LE:
		return "S32_LE"
	default:
		return "Unknown"
	}
}

// SFFromString parses a sample format name such as those ALSA reports.
func SFFromString(s string) (SampleFormat, error) {
	switch s {
	case "S16_LE":
		return S16LE, nil
	case "S32_LE":
		return S32LE, nil
	default:
		return Unknown, errors.Errorf("unknown sample format (%s)", s)
	}
}

// BytesToFloat64 converts raw little-endian integer PCM bytes to
// normalized float64 samples in [-1.0, 1.0].
func BytesToFloat64(b []byte, f SampleFormat) ([]float64, error) {
	switch f {
	case S16LE:
		if len(b)%2 != 0 {
			return nil, errors.New("odd byte count for S16_LE samples")
		}
		out := make([]float64, len(b)/2)
		for i := range out {
			v := int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
			out[i] = float64(v) / 32768.0
		}
		return out, nil
	case S32LE:
		if len(b)%4 != 0 {
			return nil, errors.New("odd byte count for S32_LE samples")
		}
		out := make([]float64, len(b)/4)
		for i := range out {
			v := int32(binary.LittleEndian.Uint32(b[i*4 : i*4+4]))
			out[i] = float64(v) / 2147483648.0
		}
		return out, nil
	default:
		return nil, errors.Errorf("unhandled sample format: %v", f)
	}
}

// Float64ToBytes is the inverse of BytesToFloat64, clipping to
// [-1.0, 1.0] before quantizing.
func Float64ToBytes(samples []float64, f SampleFormat) ([]byte, error) {
	switch f {
	case S16LE:
		out := make([]byte, len(samples)*2)
		for i, s := range samples {
			binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(int16(clip(s)*32767)))
		}
		return out, nil
	case S32LE:
		out := make([]byte, len(samples)*4)
		for i, s := range samples {
			binary.LittleEndian.PutUint32(out[i*4:i*4+4], uint32(int32(clip(s)*2147483647)))
		}
		return out, nil
	default:
		return nil, errors.Errorf("unhandled sample format: %v", f)
	}
}

func clip(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// StereoToMono downmixes interleaved stereo samples to mono by
// arithmetic mean (spec section 4.1: "downmixed to mono by arithmetic
// mean before emission").
func StereoToMono(stereo []float64) []float64 {
	mono := make([]float64, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[2*i] + stereo[2*i+1]) / 2
	}
	return mono
}

// DownmixToMono downmixes n-channel interleaved samples to mono by
// arithmetic mean across channels.
func DownmixToMono(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	mono := make([]float64, len(interleaved)/channels)
	for i := range mono {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// Resample performs integer decimation from inRate to outRate, where
// inRate must be an integer multiple of outRate (a linear-phase
// polyphase resampler is the production target; this decimating
// averager is the degenerate case used when the ratio is an exact
// integer, matching the teacher codec's documented limitation).
// ErrUnsupportedRatio is returned for any non-integer ratio. Adapters
// do not check the ratio at start: the file and stream adapters return
// it from Read as audio.ErrResamplerUnavailable, and the SDR adapter
// passes its audio through undecimated.
func Resample(in []float64, inRate, outRate uint) ([]float64, error) {
	if inRate == outRate {
		return in, nil
	}
	if inRate == 0 || outRate == 0 {
		return nil, errors.New("invalid sample rate")
	}
	if inRate < outRate {
		return nil, ErrUnsupportedRatio
	}
	g := gcd(inRate, outRate)
	ratioFrom := inRate / g
	ratioTo := outRate / g
	if ratioTo != 1 {
		return nil, ErrUnsupportedRatio
	}
	n := len(in) / int(ratioFrom)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < int(ratioFrom); j++ {
			sum += in[i*int(ratioFrom)+j]
		}
		out[i] = sum / float64(ratioFrom)
	}
	return out, nil
}

// ErrUnsupportedRatio is returned by Resample when inRate is not an
// integer multiple of outRate.
var ErrUnsupportedRatio = errors.New("pcm: unsupported resample ratio, high-quality resampler required")

func gcd(a, b uint) uint {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// RemoveDCOffset subtracts the mean from samples in place, returning
// the removed offset.
func RemoveDCOffset(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))
	for i := range samples {
		samples[i] -= mean
	}
	return mean
}

// SanitizeNaN replaces any NaN/Inf sample with 0.0 and returns the
// count replaced, mirroring the de-Inf policy observed in this
// repository's UI layer and required by spec section 4.3.7.
func SanitizeNaN(samples []float64) int {
	n := 0
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			samples[i] = 0
			n++
		}
	}
	return n
}
