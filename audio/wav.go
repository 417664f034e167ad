package audio

import (
	"context"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSink plays buffers into a wav file instead of a sound card.
type WAVSink struct {
	enc        *wav.Encoder
	pool       *BufferPool
	sampleRate int
	ints       []int
	written    int
}

// NewWAVSink encodes 16-bit mono at sampleRate into w.
func NewWAVSink(w io.WriteSeeker, sampleRate int, pool *BufferPool) *WAVSink {
	return &WAVSink{
		enc:        wav.NewEncoder(w, sampleRate, 16, 1, 1),
		pool:       pool,
		sampleRate: sampleRate,
	}
}

// Run consumes released buffers until at least samples have been written
// or ctx is done.
func (s *WAVSink) Run(ctx context.Context, samples int) error {
	for s.written < samples {
		b, err := s.pool.Consume(ctx)
		if err != nil {
			return err
		}
		err = s.write(b.Samples)
		s.pool.Recycle(b)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *WAVSink) write(samples []int16) error {
	if cap(s.ints) < len(samples) {
		s.ints = make([]int, len(samples))
	}
	ints := s.ints[:len(samples)]
	for i, v := range samples {
		ints[i] = int(v)
	}
	buf := &goaudio.IntBuffer{
		Data:           ints,
		Format:         &goaudio.Format{SampleRate: s.sampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}
	if err := s.enc.Write(buf); err != nil {
		return err
	}
	s.written += len(samples)
	return nil
}

// Written returns the number of samples encoded so far.
func (s *WAVSink) Written() int { return s.written }

// Close finalizes the wav header.
func (s *WAVSink) Close() error {
	return s.enc.Close()
}
