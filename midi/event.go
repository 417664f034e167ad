// Package midi lets a MIDI controller stand in for the footswitches and the
// speed pot: two notes act as the buttons, one CC as the pot, and the same
// notes light up to mirror the mode LEDs.
package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-stompbox/device"
	"go-stompbox/tone"
)

// OmniChannel accepts messages on every channel.
const OmniChannel = -1

// Mapping assigns controller messages to the stompbox controls.
type Mapping struct {
	Channel    int // OmniChannel or 0-15
	SampleNote uint8
	ToneNote   uint8
	PotCC      uint8

	// LED colours, matched to the nearest pad palette entry
	SampleColor [3]uint8
	ToneColor   [3]uint8
}

// DefaultMapping uses the bottom-left pads of a Launchpad-style grid and the
// mod wheel.
func DefaultMapping() Mapping {
	return Mapping{
		Channel:     OmniChannel,
		SampleNote:  11,
		ToneNote:    12,
		PotCC:       1,
		SampleColor: [3]uint8{0, 255, 0},
		ToneColor:   [3]uint8{255, 100, 0},
	}
}

// EventKind tells a button edge from a pot move.
type EventKind int

const (
	EventEdge EventKind = iota
	EventPot
)

// Event is one translated controller message.
type Event struct {
	Kind EventKind
	Edge device.Edge
	Pot  uint16
}

// Translate maps msg to a control event. Note-on with velocity is a press;
// note-off or a zero-velocity note-on is a release. CC values 0-127 are
// scaled to the full ADC range.
func (m Mapping) Translate(msg gomidi.Message) (Event, bool) {
	var ch, key, vel, cc, val uint8

	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		return m.edge(ch, key, vel > 0)
	case msg.GetNoteOff(&ch, &key, &vel):
		return m.edge(ch, key, false)
	case msg.GetControlChange(&ch, &cc, &val):
		if !m.listens(ch) || cc != m.PotCC {
			return Event{}, false
		}
		return Event{Kind: EventPot, Pot: ScaleCC(val)}, true
	}
	return Event{}, false
}

func (m Mapping) edge(ch, key uint8, pressed bool) (Event, bool) {
	if !m.listens(ch) {
		return Event{}, false
	}
	var b device.Button
	switch key {
	case m.SampleNote:
		b = device.ButtonSample
	case m.ToneNote:
		b = device.ButtonTone
	default:
		return Event{}, false
	}
	return Event{Kind: EventEdge, Edge: device.Edge{Button: b, Pressed: pressed}}, true
}

func (m Mapping) listens(ch uint8) bool {
	return m.Channel == OmniChannel || int(ch) == m.Channel
}

// ScaleCC maps a 7-bit controller value onto the pot range.
func ScaleCC(v uint8) uint16 {
	if v > 127 {
		v = 127
	}
	return uint16(uint32(v) * tone.MaxPot / 127)
}
