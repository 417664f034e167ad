// Package device ties the stompbox together: two buttons, one pot, two LEDs,
// the settings store and the two sound sources.
//
// Button edges and the deferred-save timer arrive on their own goroutines,
// standing in for GPIO and alarm interrupts. The controller's mutex covers
// the mode, the pending save and its generation; the synth and streamer
// guard their own indices.
//
// When the save timer expires the record is written only if it differs from
// the last one persisted; an unchanged record costs no flash wear.
package device

import (
	"fmt"
	"sync"
	"time"

	"go-stompbox/debug"
	"go-stompbox/settings"
)

// DefaultSaveDelay is how long the controls must sit still before the
// settings are written.
const DefaultSaveDelay = 4000 * time.Millisecond

// Button is one of the two footswitches.
type Button int

const (
	ButtonSample Button = iota
	ButtonTone
)

func (b Button) String() string {
	switch b {
	case ButtonSample:
		return "sample"
	case ButtonTone:
		return "tone"
	default:
		return fmt.Sprintf("button(%d)", int(b))
	}
}

// Edge is a button transition. Pressed is the falling edge of the
// pulled-up input.
type Edge struct {
	Button  Button
	Pressed bool
}

// Sequencer is a sound source whose pattern the buttons step through.
type Sequencer interface {
	Advance()
	Index() uint8
}

// Tempo is a source whose speed follows the pot.
type Tempo interface {
	SetSpeed(pot uint16)
}

// Writer persists settings.
type Writer interface {
	Write(settings.Settings) error
}

// Controller turns button edges and pot readings into mode and pattern
// changes, and writes the result to flash once the controls settle.
type Controller struct {
	store   Writer
	samples Sequencer
	tones   Sequencer
	tempo   Tempo
	plat    Platform

	// SaveDelay is the quiet period before a save.
	SaveDelay time.Duration
	// OnFatal receives store failures from the save callback. The default
	// panics: a device that cannot save has no safe way to continue.
	OnFatal func(error)

	mu      sync.Mutex
	mode    settings.Mode
	pending Timer
	gen     uint64

	// saveMu serializes writes so last matches the flash.
	saveMu    sync.Mutex
	last      settings.Settings
	lastKnown bool

	pot PotFilter
}

// NewController creates a controller in sample mode. Nil platform members
// fall back to the system scheduler, a centred pot and no LEDs.
func NewController(store Writer, samples, tones Sequencer, tempo Tempo, plat Platform) *Controller {
	if plat.Scheduler == nil {
		plat.Scheduler = SystemScheduler
	}
	if plat.Pot == nil {
		plat.Pot = FixedPot(2048)
	}
	if plat.Indicators == nil {
		plat.Indicators = noIndicators{}
	}
	return &Controller{
		store:     store,
		samples:   samples,
		tones:     tones,
		tempo:     tempo,
		plat:      plat,
		SaveDelay: DefaultSaveDelay,
		OnFatal:   func(err error) { panic(err) },
		pot:       PotFilter{Threshold: DefaultPotThreshold},
	}
}

// Restore seeds the mode and the record last seen in flash, without saving.
func (c *Controller) Restore(mode settings.Mode, persisted settings.Settings) {
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()

	c.saveMu.Lock()
	c.last = persisted
	c.lastKnown = true
	c.saveMu.Unlock()

	c.showMode(mode)
}

// Mode returns the active mode.
func (c *Controller) Mode() settings.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetPotThreshold changes the jitter threshold.
func (c *Controller) SetPotThreshold(t uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pot.Threshold = t
}

// HandleEdge reacts to a button transition. Only presses count. Pressing the
// button of the active mode steps its pattern; pressing the other one
// switches mode. Either way the pending save is pushed back.
func (c *Controller) HandleEdge(b Button, pressed bool) {
	if !pressed {
		return
	}

	var target settings.Mode
	var src Sequencer
	switch b {
	case ButtonSample:
		target, src = settings.ModeSample, c.samples
	case ButtonTone:
		target, src = settings.ModeTone, c.tones
	default:
		debug.Log("device", "ignoring edge from %v", b)
		return
	}

	c.mu.Lock()
	if c.mode == target {
		src.Advance()
	} else {
		c.mode = target
		debug.Log("device", "mode=%v", target)
	}
	c.mu.Unlock()

	c.showMode(target)
	c.rearm()
}

func (c *Controller) showMode(m settings.Mode) {
	c.plat.Indicators.SetIndicators(m == settings.ModeSample, m == settings.ModeTone)
}

// rearm cancels any pending save and schedules a new one.
func (c *Controller) rearm() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		if !c.pending.Stop() {
			debug.Log("device", "pending save could not be cancelled")
		}
		c.pending = nil
	}

	c.gen++
	gen := c.gen
	t, err := c.plat.Scheduler.AfterFunc(c.SaveDelay, func() { c.fire(gen) })
	if err != nil {
		debug.Log("device", "schedule save: %v", err)
		return
	}
	c.pending = t
}

// Pending reports whether a save is scheduled.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		debug.Log("device", "stale save %d discarded (current %d)", gen, c.gen)
		return
	}
	c.pending = nil
	c.mu.Unlock()

	if err := c.persist(); err != nil {
		c.OnFatal(err)
	}
}

// Flush writes a pending save now instead of waiting for the timer.
func (c *Controller) Flush() error {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return nil
	}
	c.pending.Stop()
	c.pending = nil
	c.gen++
	c.mu.Unlock()

	return c.persist()
}

// Snapshot is the state a save would write.
func (c *Controller) Snapshot() settings.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return settings.Settings{
		Mode:        c.mode,
		SampleIndex: c.samples.Index(),
		ToneIndex:   c.tones.Index(),
	}
}

func (c *Controller) persist() error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	rec := c.Snapshot()
	if c.lastKnown && rec == c.last {
		debug.Log("device", "settings unchanged, skipping write: %v", rec)
		return nil
	}
	if err := c.store.Write(rec); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	c.last = rec
	c.lastKnown = true
	debug.Log("device", "saved %v", rec)
	return nil
}

// PollPot reads the pot and, in tone mode, passes readings that clear the
// jitter threshold to the tempo. It reports whether the tempo changed.
func (c *Controller) PollPot() bool {
	if c.Mode() != settings.ModeTone {
		return false
	}
	v := c.plat.Pot.ReadAnalog()
	if !c.acceptPot(v) {
		return false
	}
	c.tempo.SetSpeed(v)
	return true
}

func (c *Controller) acceptPot(v uint16) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pot.Accept(v)
}

// Pot returns the last reading applied to the tempo.
func (c *Controller) Pot() (uint16, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pot.Last()
}
