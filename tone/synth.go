// Package tone synthesizes the tone patterns: four pitches, each either held
// or plucked at a tempo set by the potentiometer.
//
// Even tone indices hold a continuous tone. Odd indices pluck the pitch of
// the preceding even index: a short attack ramp, a linear decay whose length
// follows the pot, then a silent rest so notes repeat at the chosen speed.
// The rest is a state, not a wait: Render emits nothing audible during it
// and IdleFor tells the caller how long to hold off.
//
// Render runs on the render loop while Advance and SetSpeed are called from
// input handlers, so all state sits behind one mutex that is held for at
// most one buffer.
package tone

import (
	"fmt"
	"sync"
	"time"

	"go-stompbox/debug"
)

const (
	SampleRate = 16000

	// NumTones is the number of tone indices: 4 pitches x 2 articulations.
	NumTones = 8

	// Volume is the tone level, matched to the sample bank.
	Volume = 0.4
	// RampStep is the per-sample volume increase during the attack.
	RampStep = 0.01

	// PluckTime is how long every plucked note plays before it decays.
	PluckTime = 70 * time.Millisecond
	// MaxNoteTime is the note period at full pot.
	MaxNoteTime = 3000 * time.Millisecond
	// NoteLengthPercent of the note period is filled with decaying tone.
	NoteLengthPercent = 0.8

	// MaxPot is the full-scale reading of the 12-bit ADC.
	MaxPot = 4095
)

// Frequencies are the four pitches in Hz, indexed by tone index / 2.
var Frequencies = [NumTones / 2]float64{262, 392, 523, 1047}

// Stage is where a plucked note is in its envelope.
type Stage int

const (
	StageHold Stage = iota
	StageAttack
	StageDecay
	StageRest
)

func (s Stage) String() string {
	switch s {
	case StageHold:
		return "hold"
	case StageAttack:
		return "attack"
	case StageDecay:
		return "decay"
	case StageRest:
		return "rest"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Clock supplies the time for the rest between plucked notes.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Synth renders the current tone pattern.
type Synth struct {
	mu         sync.Mutex
	table      *Table
	clock      Clock
	sampleRate int

	index uint8
	freq  float64
	step  float64 // table entries per sample
	phase float64

	pot          uint16
	scaledSpeed  int // ms between note starts
	scaledLength int // ms of decay
	decay        float64

	stage      Stage
	vol        float64
	attackLeft int
	restUntil  time.Time
}

// New creates a synth on tone index 0 with the pot at mid travel.
func New(sampleRate int, clock Clock) *Synth {
	if clock == nil {
		clock = SystemClock
	}
	s := &Synth{
		table:      DefaultTable,
		clock:      clock,
		sampleRate: sampleRate,
	}
	s.setSpeed(MaxPot / 2)
	s.setIndex(0)
	return s
}

// Render fills buf completely. A plucked note that finishes its decay inside
// buf fills the remainder with silence.
func (s *Synth) Render(buf []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index%2 == 0 {
		for i := range buf {
			buf[i] = s.next(Volume)
		}
		return
	}
	s.renderPluck(buf)
}

func (s *Synth) renderPluck(buf []int16) {
	i := 0
	for i < len(buf) {
		switch s.stage {
		case StageRest:
			if s.clock.Now().Before(s.restUntil) {
				for ; i < len(buf); i++ {
					buf[i] = 0
				}
				return
			}
			s.pluck()

		case StageAttack:
			if s.attackLeft <= 0 {
				s.stage = StageDecay
				continue
			}
			if s.vol < Volume {
				s.vol = min(s.vol+RampStep, Volume)
			}
			buf[i] = s.next(s.vol)
			s.attackLeft--
			i++

		case StageDecay:
			if s.vol <= 0 {
				s.rest()
				continue
			}
			buf[i] = s.next(s.vol)
			s.vol -= s.decay
			i++

		default:
			s.pluck()
		}
	}
}

// next emits one sample at vol and advances the phase accumulator. The step
// is always below TableLen so one subtraction wraps it.
func (s *Synth) next(vol float64) int16 {
	v := int16(vol * float64(s.table[int(s.phase)]))
	s.phase += s.step
	if s.phase >= TableLen {
		s.phase -= TableLen
	}
	return v
}

func (s *Synth) pluck() {
	s.stage = StageAttack
	s.vol = 0
	s.attackLeft = max(int(PluckTime/time.Millisecond)*s.sampleRate/1000, 1)
}

func (s *Synth) rest() {
	s.stage = StageRest
	s.restUntil = s.clock.Now()
	if s.scaledSpeed > s.scaledLength {
		s.restUntil = s.restUntil.Add(time.Duration(s.scaledSpeed-s.scaledLength) * time.Millisecond)
	}
}

// Clock returns the time source the rest phase is measured against.
func (s *Synth) Clock() Clock { return s.clock }

// IdleFor reports how long from now a plucked note stays silent. The render
// loop waits this out instead of pushing silent buffers.
func (s *Synth) IdleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index%2 == 0 || s.stage != StageRest || !now.Before(s.restUntil) {
		return 0
	}
	return s.restUntil.Sub(now)
}

// SetSpeed maps a pot reading to the note period and decay rate.
func (s *Synth) SetSpeed(pot uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setSpeed(pot)
	debug.Log("tone", "speed pot=%d period=%dms length=%dms", pot, s.scaledSpeed, s.scaledLength)
}

func (s *Synth) setSpeed(pot uint16) {
	if pot > MaxPot {
		pot = MaxPot
	}
	s.pot = pot
	s.scaledSpeed = int(float64(pot) / MaxPot * float64(MaxNoteTime/time.Millisecond))
	s.scaledLength = int(NoteLengthPercent * float64(s.scaledSpeed))
	if s.scaledLength == 0 {
		s.decay = Volume
		return
	}
	samplesPerMs := float64(s.sampleRate) / 1000
	s.decay = Volume / (samplesPerMs * float64(s.scaledLength))
}

// Tempo returns the note period and the decay length.
func (s *Synth) Tempo() (period, length time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.scaledSpeed) * time.Millisecond, time.Duration(s.scaledLength) * time.Millisecond
}

// DecayPerSample is the volume lost per sample while a pluck decays.
func (s *Synth) DecayPerSample() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decay
}

// Advance moves to the next tone index, wrapping after NumTones.
func (s *Synth) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setIndex((s.index + 1) % NumTones)
	debug.Log("tone", "tone_i=%d", s.index)
}

// SetIndex selects a tone index; out of range values wrap.
func (s *Synth) SetIndex(i uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setIndex(i % NumTones)
}

func (s *Synth) setIndex(i uint8) {
	s.index = i
	s.freq = Frequencies[i/2]
	s.step = s.freq / float64(s.sampleRate) * TableLen
	if i%2 == 0 {
		s.stage = StageHold
		return
	}
	s.pluck()
}

// Index returns the current tone index.
func (s *Synth) Index() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Frequency returns the current pitch in Hz.
func (s *Synth) Frequency() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freq
}

// Phase returns the phase accumulator, in table entries.
func (s *Synth) Phase() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Envelope returns the current stage and volume.
func (s *Synth) Envelope() (Stage, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage == StageHold {
		return StageHold, Volume
	}
	return s.stage, s.vol
}
