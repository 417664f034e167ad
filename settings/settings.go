package settings

import (
	"errors"
	"fmt"

	"go-stompbox/flash"
)

// RecordSize is the width of one persisted record: mode, sample, tone.
const RecordSize = 3

var ErrReservedValue = errors.New("settings: field uses the erased value")

// Mode selects what the device plays.
type Mode uint8

const (
	ModeSample Mode = 0
	ModeTone   Mode = 1
)

func (m Mode) String() string {
	switch m {
	case ModeSample:
		return "sample"
	case ModeTone:
		return "tone"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Valid reports whether m is one of the two playback modes.
func (m Mode) Valid() bool {
	return m == ModeSample || m == ModeTone
}

// Settings is what survives a power cycle. The zero value is the
// never-saved default.
type Settings struct {
	Mode        Mode
	SampleIndex uint8
	ToneIndex   uint8
}

func (s Settings) String() string {
	return fmt.Sprintf("mode=%s sample=%d tone=%d", s.Mode, s.SampleIndex, s.ToneIndex)
}

// Validate rejects records that would store the erased value, which the
// store uses to find the end of its log.
func (s Settings) Validate() error {
	if byte(s.Mode) == flash.Erased || s.SampleIndex == flash.Erased || s.ToneIndex == flash.Erased {
		return fmt.Errorf("%v: %w", s, ErrReservedValue)
	}
	return nil
}

func (s Settings) encode() [RecordSize]byte {
	return [RecordSize]byte{byte(s.Mode), s.SampleIndex, s.ToneIndex}
}

func decode(b []byte) Settings {
	return Settings{
		Mode:        Mode(b[0]),
		SampleIndex: b[1],
		ToneIndex:   b[2],
	}
}
