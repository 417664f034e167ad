package device

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a pending one-shot callback.
type Timer interface {
	// Stop cancels the callback. It reports false if the callback already
	// ran or could not be cancelled.
	Stop() bool
}

// Scheduler runs fn once after d, on its own goroutine (the alarm
// interrupt on hardware).
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (Timer, error)
}

// AnalogInput is the speed potentiometer.
type AnalogInput interface {
	ReadAnalog() uint16
}

// Indicators drives the two mode LEDs.
type Indicators interface {
	SetIndicators(sample, tone bool)
}

// Platform bundles what the controller needs from the board.
type Platform struct {
	Scheduler  Scheduler
	Pot        AnalogInput
	Indicators Indicators
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, fn func()) (Timer, error) {
	return time.AfterFunc(d, fn), nil
}

// SystemScheduler schedules with time.AfterFunc.
var SystemScheduler Scheduler = systemScheduler{}

// FixedPot is an AnalogInput that always reads the same value.
type FixedPot uint16

func (p FixedPot) ReadAnalog() uint16 { return uint16(p) }

// Knob is a pot that other goroutines move, such as a MIDI CC or the
// front-panel keys.
type Knob struct {
	v atomic.Uint32
}

// NewKnob starts the knob at v.
func NewKnob(v uint16) *Knob {
	k := &Knob{}
	k.Set(v)
	return k
}

func (k *Knob) Set(v uint16) { k.v.Store(uint32(v)) }

// Nudge moves the knob by delta, clamped to [0, limit].
func (k *Knob) Nudge(delta int, limit uint16) uint16 {
	for {
		old := k.v.Load()
		v := min(max(int(old)+delta, 0), int(limit))
		if k.v.CompareAndSwap(old, uint32(v)) {
			return uint16(v)
		}
	}
}

func (k *Knob) ReadAnalog() uint16 { return uint16(k.v.Load()) }

// LEDs remembers the indicator state for display.
type LEDs struct {
	mu           sync.Mutex
	sample, tone bool
}

func (l *LEDs) SetIndicators(sample, tone bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sample, l.tone = sample, tone
}

func (l *LEDs) Get() (sample, tone bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sample, l.tone
}

// IndicatorGroup drives several indicator outputs together.
type IndicatorGroup []Indicators

func (g IndicatorGroup) SetIndicators(sample, tone bool) {
	for _, i := range g {
		i.SetIndicators(sample, tone)
	}
}

type noIndicators struct{}

func (noIndicators) SetIndicators(bool, bool) {}
