// Package pcm adapts a PCM/WAV audio file into the normalized mono
// float64 sample stream the core pipeline consumes. It is the "PCM/WAV
// container reader" collaborator named out of scope for the core signal
// processing in spec.md §1, built on github.com/go-audio/wav.
package pcm

import (
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// Source reads one channel of a WAV file as a stream of normalized
// samples in [-1.0, 1.0], applying the bit-depth scaling of spec.md §6.1
// in floating point throughout (Open Question 2).
type Source struct {
	dec        *wav.Decoder
	scale      float64
	midpoint   float64
	numChans   int
	channel    int
	frameIndex int

	buf     *audio.IntBuffer
	pending []int
}

// SampleRateHz, NumChannels, BitDepth describe the underlying stream.
func (s *Source) SampleRateHz() float64 { return float64(s.dec.SampleRate) }
func (s *Source) NumChannels() int      { return s.numChans }
func (s *Source) BitDepth() int         { return int(s.dec.BitDepth) }

// Open opens a WAV file for decoding and validates it is a PCM-coded
// file with a supported bit depth (8, 16, 24, or 32).
func Open(r io.Reader, channel int) (*Source, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("pcm: not a valid PCM WAV file")
	}
	dec.ReadInfo()

	numChans := int(dec.NumChans)
	if channel < 0 || channel >= numChans {
		return nil, errors.Errorf("pcm: channel %d out of range for %d-channel file", channel, numChans)
	}

	bits := int(dec.BitDepth)
	scale, err := scaleFor(bits)
	if err != nil {
		return nil, err
	}

	const framesPerRead = 4096
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: numChans, SampleRate: int(dec.SampleRate)},
		Data:   make([]int, framesPerRead*numChans),
	}

	midpoint := 0.0
	if bits == 8 {
		// WAV stores 8-bit PCM as unsigned bytes; every other depth is
		// already signed, so only 8-bit needs the bipolar-midpoint shift.
		midpoint = 128
	}

	return &Source{
		dec:      dec,
		scale:    scale,
		midpoint: midpoint,
		numChans: numChans,
		channel:  channel,
		buf:      buf,
	}, nil
}

func scaleFor(bits int) (float64, error) {
	switch bits {
	case 8, 16, 24, 32:
		return float64(int64(1) << uint(bits-1)), nil
	default:
		return 0, errors.Errorf("pcm: unsupported bit depth %d", bits)
	}
}

// Next pulls the next sample for the configured target channel,
// discarding the other N-1 channels' samples in each frame per the
// channel-extraction rule of spec.md §6.1. It returns ok == false once
// the stream is exhausted.
func (s *Source) Next() (sample float64, index int, ok bool) {
	if len(s.pending) == 0 {
		n, err := s.dec.PCMBuffer(s.buf)
		if err != nil || n == 0 {
			return 0, 0, false
		}
		s.pending = s.buf.Data[:n]
	}

	if len(s.pending) < s.numChans {
		s.pending = nil
		return 0, 0, false
	}

	frame := s.pending[:s.numChans]
	s.pending = s.pending[s.numChans:]

	raw := frame[s.channel]
	idx := s.frameIndex
	s.frameIndex++

	return (float64(raw) - s.midpoint) / s.scale, idx, true
}
