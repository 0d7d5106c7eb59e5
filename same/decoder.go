/*
NAME
  decoder.go

DESCRIPTION
  decoder.go implements the streaming SAME FSK decoder (C3): a
  stateful, single-threaded, per-sample demodulator that accepts PCM
  chunks of arbitrary size and emits candidate headers and EOM
  detections as they complete, with no buffering or file-based
  intermediate stage.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

// Package same implements the SAME FSK streaming decoder and header
// triplet validator at the heart of the EAS station core; the SAME
// encoder lives in package encoder.
package same

import (
	"sync/atomic"
	"time"
)

var processStart = time.Now()

// State enumerates the header-collection state machine's states (spec
// section 4.3.5).
type State int

const (
	StateIdle State = iota
	StateCollecting
)

func (s State) String() string {
	if s == StateCollecting {
		return "collecting"
	}
	return "idle"
}

// maxNonPrintableInFirst8 aborts a collection back to IDLE if exceeded
// (spec section 4.3.5).
const maxNonPrintableInFirst8 = 3

// dcdLossAbortBits aborts a collection back to IDLE once more than
// this many consecutive bit-times pass without DCD present.
const dcdLossAbortBits = 3

// preambleLockWindowBits is the maximum bit-time gap allowed between
// the two consecutive preamble byte detections that declare lock.
const preambleLockWindowBits = 10

// minPreambleByteGapBits is the minimum bit-time gap between two
// preamble byte matches to be considered a fresh byte (as opposed to
// an overlapping sliding-window rematch of the same byte).
const minPreambleByteGapBits = 6

// Candidate is a completed header or EOM detection emitted by the
// decoder before triplet validation.
type Candidate struct {
	Text         string
	IsEOM        bool
	ByteErrors   int
	ByteStrength []float64 // DCD integrator score recorded at each byte boundary
	DetectedAt   time.Time
	MonotonicNS  int64
	Source       string
}

// Stats is the read-only snapshot returned by Decoder.Snapshot. It is
// safe to call from any goroutine; it never mutates decoder state.
type Stats struct {
	State            State
	SamplesProcessed uint64
	SanitizeCount    uint64
	ByteErrorCount   uint64
	DCDPresent       bool
	DCDScore         int
}

// Decoder is the streaming SAME demodulator. It is bound to exactly
// one sample rate for its lifetime (spec section 3 invariant 1); a
// rate change requires constructing a new Decoder. It is
// single-threaded and cooperative: ProcessSamples must be called
// serially from one driving goroutine. Snapshot may be called from any
// other goroutine.
type Decoder struct {
	fs     uint
	t      *tables
	corr   *correlator
	bsync  *bitSync
	source string

	state State

	// Bit-level framing.
	shiftReg uint8
	bitCount uint8
	bitIndex uint64

	// Preamble lock search (IDLE only).
	lastPreambleBit   int64
	consecutiveLocks  int

	// Post-lock preamble flush.
	preambleBytesSeen int

	// Header/EOM collection.
	buf          []byte
	byteStrength []float64
	dashCount    int
	byteErrors   int
	nonPrintable int
	dcdLostBits  int
	collectStart time.Time

	candidates chan Candidate

	// Atomics, readable from Snapshot without locking.
	samplesProcessed uint64
	sanitizeCount    uint64
	byteErrorTotal   uint64
	dcdPresent       uint32
	dcdScore         int64
	stateAtomic      int32
}

// NewDecoder constructs a Decoder bound to sample rate fs, tagging
// emitted candidates with the given source name. candidateQueueLen
// bounds the internal candidate channel (spec section 5 resource
// bounds: candidate header queue, default 16 entries); if a consumer
// falls behind, the oldest unread candidate is dropped per the
// resource-overrun policy in spec section 7.
func NewDecoder(fs uint, source string, candidateQueueLen int) *Decoder {
	if candidateQueueLen <= 0 {
		candidateQueueLen = 16
	}
	t := newTables(fs)
	return &Decoder{
		fs:         fs,
		t:          t,
		corr:       newCorrelator(t),
		bsync:      newBitSync(fs),
		source:     source,
		candidates: make(chan Candidate, candidateQueueLen),
	}
}

// Candidates returns the channel candidate headers and EOM detections
// are published on.
func (d *Decoder) Candidates() <-chan Candidate { return d.candidates }

// SampleRate returns the sample rate this decoder is bound to.
func (d *Decoder) SampleRate() uint { return d.fs }

// ProcessSamples feeds samples into the decoder. It must be called
// serially by exactly one goroutine; it never blocks except on the
// (non-blocking-by-default) internal publish of a completed candidate,
// and runs in O(len(samples)) time with no suspension points, per spec
// section 4.3.6.
func (d *Decoder) ProcessSamples(samples []float64) {
	for _, s := range samples {
		d.processSample(s)
	}
	atomic.AddUint64(&d.samplesProcessed, uint64(len(samples)))
}

func (d *Decoder) processSample(s float64) {
	if isBad(s) {
		s = 0
		atomic.AddUint64(&d.sanitizeCount, 1)
	}
	_, _, decision, dcd := d.corr.step(s)
	if dcd {
		atomic.StoreUint32(&d.dcdPresent, 1)
	} else {
		atomic.StoreUint32(&d.dcdPresent, 0)
	}
	atomic.StoreInt64(&d.dcdScore, int64(d.corr.dcdScore))

	bit, ok := d.bsync.advance(decision)
	if !ok {
		return
	}
	d.onBit(bit, dcd)
}

func isBad(s float64) bool {
	return s != s || s > 1e300 || s < -1e300
}

// onBit handles one recovered bit, advancing byte framing and the
// header collection state machine.
func (d *Decoder) onBit(bit int8, dcd bool) {
	d.bitIndex++

	bitVal := uint8(0)
	if bit > 0 {
		bitVal = 1
	}
	d.shiftReg = (d.shiftReg >> 1) | (bitVal << 7)
	d.bitCount++

	switch d.state {
	case StateIdle:
		d.searchPreamble()
	case StateCollecting:
		if !dcd {
			d.dcdLostBits++
			if d.dcdLostBits > dcdLossAbortBits {
				d.abortToIdle()
				return
			}
		} else {
			d.dcdLostBits = 0
		}
		if d.bitCount == 8 {
			d.bitCount = 0
			d.onByte(d.shiftReg)
		}
	}
}

// searchPreamble checks, after every bit, whether the continuously
// shifting byte register equals the preamble byte, declaring lock on
// the second such match within the allowed bit-time window.
func (d *Decoder) searchPreamble() {
	if d.shiftReg != Preamble {
		return
	}
	idx := int64(d.bitIndex)
	gap := idx - d.lastPreambleBit
	if d.consecutiveLocks > 0 && gap >= minPreambleByteGapBits && gap <= preambleLockWindowBits {
		d.consecutiveLocks++
	} else {
		d.consecutiveLocks = 1
	}
	d.lastPreambleBit = idx

	if d.consecutiveLocks >= 2 {
		d.enterCollecting()
	}
}

func (d *Decoder) enterCollecting() {
	d.state = StateCollecting
	atomic.StoreInt32(&d.stateAtomic, int32(StateCollecting))
	d.bitCount = 0
	d.preambleBytesSeen = 2 // the two matches that declared lock
	d.buf = d.buf[:0]
	d.byteStrength = d.byteStrength[:0]
	d.dashCount = 0
	d.byteErrors = 0
	d.nonPrintable = 0
	d.dcdLostBits = 0
	d.collectStart = time.Now()
}

func (d *Decoder) abortToIdle() {
	d.state = StateIdle
	atomic.StoreInt32(&d.stateAtomic, int32(StateIdle))
	d.bitCount = 0
	d.consecutiveLocks = 0
	d.lastPreambleBit = 0
}

// onByte handles one byte-aligned completed byte while COLLECTING:
// flushing the remainder of the 16-byte preamble, detecting EOM in the
// first four content bytes, and otherwise appending to the header
// buffer until the terminator or max length is reached.
func (d *Decoder) onByte(b byte) {
	if d.preambleBytesSeen < PreambleCount {
		d.preambleBytesSeen++
		return
	}

	if !isPrintable(b) {
		if len(d.buf) < 8 {
			d.nonPrintable++
		}
		d.byteErrors++
	}
	d.buf = append(d.buf, b)
	d.byteStrength = append(d.byteStrength, float64(d.corr.dcdScore))

	if len(d.buf) <= 8 && d.nonPrintable > maxNonPrintableInFirst8 {
		d.abortToIdle()
		return
	}

	if len(d.buf) == 4 && string(d.buf) == EOMText {
		d.emit(Candidate{
			Text:        string(d.buf),
			IsEOM:       true,
			ByteErrors:  d.byteErrors,
			DetectedAt:  time.Now(),
			MonotonicNS: time.Since(processStart).Nanoseconds(),
			Source:      d.source,
		})
		d.abortToIdle()
		return
	}

	if b == '-' {
		d.dashCount++
		// ZCZC-ORG-EEE-PSSCCC[+PSSCCC]*+TTTT-JJJHHMM-LLLLLLLL- has
		// exactly six dashes; the sixth is the terminator.
		if d.dashCount == 6 {
			d.emitHeader()
			return
		}
	}

	if len(d.buf) >= MaxHeaderLen {
		d.emitHeader()
	}
}

func (d *Decoder) emitHeader() {
	strength := make([]float64, len(d.byteStrength))
	copy(strength, d.byteStrength)
	atomic.AddUint64(&d.byteErrorTotal, uint64(d.byteErrors))
	d.emit(Candidate{
		Text:         string(d.buf),
		ByteErrors:   d.byteErrors,
		ByteStrength: strength,
		DetectedAt:   time.Now(),
		MonotonicNS:  time.Since(processStart).Nanoseconds(),
		Source:       d.source,
	})
	d.abortToIdle()
}

// emit publishes a candidate, dropping the oldest queued candidate
// rather than blocking if the consumer has fallen behind (spec
// section 7, resource overruns).
func (d *Decoder) emit(c Candidate) {
	select {
	case d.candidates <- c:
	default:
		select {
		case <-d.candidates:
		default:
		}
		select {
		case d.candidates <- c:
		default:
		}
	}
}

func isPrintable(b byte) bool { return b >= 0x20 && b <= 0x7E }

// Reset returns the decoder to IDLE, discarding any partial
// collection. Used by the manager when a source switch occurs (spec
// section 4.2: "Switching sources resets the decoder's bit-level state
// but not its deduplication cache").
func (d *Decoder) Reset() {
	d.corr.reset()
	d.bsync.reset()
	d.state = StateIdle
	atomic.StoreInt32(&d.stateAtomic, int32(StateIdle))
	d.shiftReg = 0
	d.bitCount = 0
	d.consecutiveLocks = 0
	d.lastPreambleBit = 0
	d.preambleBytesSeen = 0
	d.buf = d.buf[:0]
	d.byteStrength = d.byteStrength[:0]
	d.dashCount = 0
	d.byteErrors = 0
	d.nonPrintable = 0
	d.dcdLostBits = 0
}

// Snapshot returns a copy-out statistics snapshot. Safe to call
// concurrently with ProcessSamples; it never mutates decoder state.
func (d *Decoder) Snapshot() Stats {
	return Stats{
		State:            State(atomic.LoadInt32(&d.stateAtomic)),
		SamplesProcessed: atomic.LoadUint64(&d.samplesProcessed),
		SanitizeCount:    atomic.LoadUint64(&d.sanitizeCount),
		ByteErrorCount:   atomic.LoadUint64(&d.byteErrorTotal),
		DCDPresent:       atomic.LoadUint32(&d.dcdPresent) == 1,
		DCDScore:         int(atomic.LoadInt64(&d.dcdScore)),
	}
}
