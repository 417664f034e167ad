package midi

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-stompbox/debug"
)

// Surface is one connected controller.
type Surface struct {
	id       string
	mapping  Mapping
	send     func(msg gomidi.Message) error
	stopFunc func()

	events chan Event

	mu        sync.Mutex
	leds      [2]bool
	ledsKnown bool
	closed    bool
}

// NewSurface listens on inPort and, when outPort is non-nil, mirrors the
// mode LEDs on it.
func NewSurface(id string, m Mapping, inPort drivers.In, outPort drivers.Out) (*Surface, error) {
	s := &Surface{
		id:      id,
		mapping: m,
		events:  make(chan Event, 32),
	}

	if outPort != nil {
		send, err := gomidi.SendTo(outPort)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		s.send = send
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			s.handle(msg)
		})
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		s.stopFunc = stop
	}

	return s, nil
}

func (s *Surface) handle(msg gomidi.Message) {
	ev, ok := s.mapping.Translate(msg)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		debug.Log("midi", "%s: event dropped, queue full", s.id)
	}
}

func (s *Surface) ID() string { return s.id }

// Events delivers translated controller input. It is closed by Close.
func (s *Surface) Events() <-chan Event { return s.events }

// SetIndicators lights the sample and tone pads. Unchanged states are not
// resent.
func (s *Surface) SetIndicators(sample, tone bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.send == nil || s.closed || (s.ledsKnown && s.leds == [2]bool{sample, tone}) {
		return
	}
	s.leds = [2]bool{sample, tone}
	s.ledsKnown = true

	ch := uint8(0)
	if s.mapping.Channel != OmniChannel {
		ch = uint8(s.mapping.Channel)
	}
	s.sendLED(ch, s.mapping.SampleNote, sample, s.mapping.SampleColor)
	s.sendLED(ch, s.mapping.ToneNote, tone, s.mapping.ToneColor)
}

func (s *Surface) sendLED(ch, note uint8, on bool, rgb [3]uint8) {
	var vel uint8
	if on {
		vel = PaletteIndex(rgb)
	}
	if err := s.send(gomidi.NoteOn(ch, note, vel)); err != nil {
		debug.Log("midi", "%s: led %d: %v", s.id, note, err)
	}
}

func (s *Surface) Close() error {
	s.SetIndicators(false, false)
	if s.stopFunc != nil {
		s.stopFunc()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// padPalette holds approximate colours of common grid-controller velocity
// palette entries as {velocity, R, G, B}.
var padPalette = [][4]uint8{
	{0, 0, 0, 0},         // off
	{5, 255, 0, 0},       // red
	{9, 255, 100, 0},     // orange
	{13, 255, 200, 0},    // yellow
	{17, 0, 180, 0},      // green
	{19, 0, 100, 0},      // dim green
	{21, 0, 255, 0},      // bright green
	{37, 0, 200, 200},    // cyan
	{45, 0, 100, 255},    // blue
	{49, 150, 0, 200},    // purple
	{53, 255, 80, 180},   // pink
	{119, 255, 255, 255}, // white
}

// PaletteIndex finds the nearest palette velocity for an RGB colour.
func PaletteIndex(rgb [3]uint8) uint8 {
	best := uint8(0)
	bestDist := 1 << 30

	r, g, b := int(rgb[0]), int(rgb[1]), int(rgb[2])
	for _, p := range padPalette {
		dr, dg, db := r-int(p[1]), g-int(p[2]), b-int(p[3])
		if dist := dr*dr + dg*dg + db*db; dist < bestDist {
			bestDist = dist
			best = p[0]
		}
	}
	return best
}
