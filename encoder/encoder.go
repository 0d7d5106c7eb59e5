/*
NAME
  encoder.go

DESCRIPTION
  encoder.go implements C6, the SAME burst encoder: header/EOM FSK
  modulation, the dual-tone attention signal, and assembly of a
  complete alert message (three header repeats, attention tone, the
  caller-supplied audio announcement, and three EOM repeats) with the
  required inter-component silence gaps.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

// Package encoder implements the SAME FSK burst encoder, the
// counterpart to the same package's streaming decoder.
package encoder

import (
	"fmt"
	"time"

	"github.com/kr8mer/eas-station/same"
)

// Attention tone frequencies mandated by 47 CFR 11.31 for the EAS
// two-tone attention signal.
const (
	AttentionMarkFreq  = 853.0
	AttentionSpaceFreq = 960.0
)

// BurstRepeats is the number of times a header or EOM is transmitted
// per FCC convention.
const BurstRepeats = 3

// Encoder renders SAME headers, EOM markers, and the attention signal
// to PCM at a fixed sample rate.
type Encoder struct {
	fs uint
}

// NewEncoder returns an Encoder rendering at sample rate fs.
func NewEncoder(fs uint) *Encoder {
	return &Encoder{fs: fs}
}

// EncodeBytes renders the preamble followed by the LSB-first FSK
// modulation of data at the Baud symbol rate. Sample rates that do not
// divide Baud evenly (e.g. 22050 Hz) carry the fractional remainder of
// samplesPerSymbol forward across symbols, so the long-run average
// symbol length matches 1/Baud exactly instead of drifting low.
func (e *Encoder) EncodeBytes(data []byte) []float64 {
	osc := newOscillator(e.fs)
	samplesPerSymbol := float64(e.fs) / same.Baud

	var out []float64
	var carry float64
	emitBit := func(bit int) {
		if bit == 1 {
			osc.setFreq(same.MarkFreq)
		} else {
			osc.setFreq(same.SpaceFreq)
		}
		want := samplesPerSymbol + carry
		n := int(want)
		carry = want - float64(n)
		for i := 0; i < n; i++ {
			out = append(out, osc.next())
		}
	}
	emitByte := func(b byte) {
		for i := 0; i < 8; i++ {
			emitBit(int((b >> uint(i)) & 1))
		}
	}

	for i := 0; i < same.PreambleCount; i++ {
		emitByte(same.Preamble)
	}
	for _, b := range data {
		emitByte(b)
	}
	return out
}

// EncodeHeader validates header against the wire format and renders
// it as a preamble-prefixed FSK burst.
func (e *Encoder) EncodeHeader(header string) ([]float64, error) {
	if _, _, ok := same.ParseHeader(header, nil, nil); !ok {
		return nil, fmt.Errorf("header %q does not tokenize as a valid SAME header", header)
	}
	return e.EncodeBytes([]byte(header)), nil
}

// EncodeEOM renders the EOM marker burst.
func (e *Encoder) EncodeEOM() []float64 {
	return e.EncodeBytes([]byte(same.EOMText))
}

// EncodeAttention renders the dual-tone attention signal for duration
// seconds, summing the two tones and scaling to avoid clipping.
func (e *Encoder) EncodeAttention(duration float64) []float64 {
	n := int(duration * float64(e.fs))
	out := make([]float64, n)
	mark := newOscillator(e.fs)
	space := newOscillator(e.fs)
	mark.setFreq(AttentionMarkFreq)
	space.setFreq(AttentionSpaceFreq)
	for i := range out {
		out[i] = 0.5 * (mark.next() + space.next())
	}
	return out
}

// silence renders d of digital silence.
func (e *Encoder) silence(d time.Duration) []float64 {
	return make([]float64, int(d.Seconds()*float64(e.fs)))
}

// Message is a fully-assembled SAME alert message, ready for playout,
// together with the component boundaries useful for testing and for
// archival metadata.
type Message struct {
	PCM []float64

	HeaderSamples    int
	AttentionSamples int
	AudioSamples     int
	EOMSamples       int
}

// AssembleMessage builds a complete alert message: the header repeated
// BurstRepeats times, a silence gap, the attention signal, the
// caller-supplied announcement audio, a silence gap, then the EOM
// repeated BurstRepeats times. interGap must be at least 1 second per
// FCC convention; callers should have already clamped it via
// config.Config.InterBurstSilence.
func (e *Encoder) AssembleMessage(header string, announcement []float64, attentionSeconds float64, interGap time.Duration) (Message, error) {
	if interGap < time.Second {
		return Message{}, fmt.Errorf("inter-burst silence %v below 1s floor", interGap)
	}

	headerBurst, err := e.EncodeHeader(header)
	if err != nil {
		return Message{}, err
	}
	eomBurst := e.EncodeEOM()
	attention := e.EncodeAttention(attentionSeconds)
	gap := e.silence(interGap)

	var msg Message
	for i := 0; i < BurstRepeats; i++ {
		msg.PCM = append(msg.PCM, headerBurst...)
		msg.PCM = append(msg.PCM, gap...)
	}
	msg.HeaderSamples = len(headerBurst)*BurstRepeats + len(gap)*BurstRepeats

	msg.PCM = append(msg.PCM, attention...)
	msg.AttentionSamples = len(attention)

	msg.PCM = append(msg.PCM, announcement...)
	msg.AudioSamples = len(announcement)

	msg.PCM = append(msg.PCM, gap...)
	for i := 0; i < BurstRepeats; i++ {
		msg.PCM = append(msg.PCM, eomBurst...)
		if i < BurstRepeats-1 {
			msg.PCM = append(msg.PCM, gap...)
		}
	}
	msg.EOMSamples = len(eomBurst)*BurstRepeats + len(gap)*BurstRepeats // includes the leading gap

	return msg, nil
}
