/*
NAME
  filedecoder.go

DESCRIPTION
  filedecoder.go offers an in-process convenience wrapper for decoding
  a complete, already-captured PCM file in one call, rather than
  wiring a full audio source manager: useful for offline analysis of
  recordings and for this package's own tests. It drives the same
  streaming Decoder chunk by chunk, exactly as the audio manager would.

LICENSE
  Copyright (C) 2026 the authors of this repository. All Rights Reserved.
*/

package same

import (
	"errors"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/kr8mer/eas-station/pcm"
)

// DecodeWAVChunkSamples bounds how many samples DecodeWAV feeds the
// Decoder per ProcessSamples call; any size works, this just keeps
// memory bounded for long recordings.
const DecodeWAVChunkSamples = 4096

// DecodeCandidateQueueLen sizes the Decoder constructed by DecodeWAV;
// offline decoding drains the channel after every chunk so overflow
// should never occur in practice.
const DecodeCandidateQueueLen = 16

// DecodeWAV decodes every SAME header and EOM candidate found in a
// mono or multi-channel WAV stream, downmixing and resampling to fs if
// necessary, and returns them in detection order. It consumes r fully
// or until a decode error.
func DecodeWAV(r io.ReadSeeker, fs uint) ([]Candidate, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("same: not a valid WAV file")
	}

	d := NewDecoder(fs, "file", DecodeCandidateQueueLen)
	var got []Candidate
	drain := func() {
		for {
			select {
			case c := <-d.Candidates():
				got = append(got, c)
			default:
				return
			}
		}
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		channels = 1
	}

	for {
		buf := &goaudio.IntBuffer{
			Data:           make([]int, DecodeWAVChunkSamples*channels),
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: int(dec.SampleRate)},
			SourceBitDepth: int(dec.BitDepth),
		}
		n, err := dec.PCMBuffer(buf)
		if n > 0 {
			ints := buf.Data[:n]
			floats := make([]float64, len(ints))
			scale := float64(int(1) << uint(buf.SourceBitDepth-1))
			for i, v := range ints {
				floats[i] = float64(v) / scale
			}
			if channels > 1 {
				floats = pcm.DownmixToMono(floats, channels)
			}
			if uint(dec.SampleRate) != fs {
				resampled, rerr := pcm.Resample(floats, uint(dec.SampleRate), fs)
				if rerr != nil {
					return got, rerr
				}
				floats = resampled
			}
			d.ProcessSamples(floats)
			drain()
		}
		if err == io.EOF || n == 0 {
			break
		}
		if err != nil {
			return got, err
		}
	}
	return got, nil
}
