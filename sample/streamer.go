// Package sample loops the recorded clips.
//
// The bank is fixed for the life of a Streamer unless replaced wholesale
// with SetBank. Render runs on the render loop while Advance is called from
// input handlers; both take the streamer's mutex, held for at most one
// buffer.
package sample

import (
	"sync"

	"go-stompbox/debug"
)

// SampleRate is the rate every clip is recorded at.
const SampleRate = 16000

// Streamer plays the selected clip on loop.
type Streamer struct {
	mu     sync.Mutex
	bank   *Bank
	index  int
	offset int
}

// NewStreamer starts on clip 0 of bank.
func NewStreamer(bank *Bank) *Streamer {
	return &Streamer{bank: bank}
}

// Render fills buf from the current clip, wrapping to the clip start as
// often as needed.
func (s *Streamer) Render(buf []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clip := s.bank.clips[s.index].Samples
	for i := range buf {
		buf[i] = clip[s.offset]
		s.offset++
		if s.offset >= len(clip) {
			s.offset = 0
		}
	}
}

// Advance moves to the next clip, wrapping, and restarts it.
func (s *Streamer) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index++
	if s.index >= s.bank.Len() {
		s.index = 0
	}
	s.offset = 0
	debug.Log("sample", "recording_i=%d (%s)", s.index, s.bank.clips[s.index].Name)
}

// SetIndex selects a clip; out of range values wrap.
func (s *Streamer) SetIndex(i uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index = int(i) % s.bank.Len()
	s.offset = 0
}

// Index returns the current clip index.
func (s *Streamer) Index() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint8(s.index)
}

// Offset returns the playback position within the current clip.
func (s *Streamer) Offset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Current returns the name of the current clip.
func (s *Streamer) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bank.clips[s.index].Name
}

// Len returns the number of clips in the bank.
func (s *Streamer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bank.Len()
}

// SetBank swaps in a new bank. The current index is kept when the new bank
// still has it; otherwise playback falls back to clip 0.
func (s *Streamer) SetBank(b *Bank) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bank = b
	if s.index >= b.Len() {
		s.index = 0
		s.offset = 0
	}
	if s.offset >= len(b.clips[s.index].Samples) {
		s.offset = 0
	}
	debug.Log("sample", "bank replaced: %d clips", b.Len())
}
