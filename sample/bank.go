package sample

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// MaxClips keeps every clip index below the flash erased value.
const MaxClips = 255

var (
	ErrEmptyBank = errors.New("sample: bank has no clips")
	ErrEmptyClip = errors.New("sample: clip has no samples")
	ErrBankSize  = errors.New("sample: too many clips")
)

// Clip is one mono 16-bit recording.
type Clip struct {
	Name    string
	Samples []int16
}

// Bank is an immutable, ordered set of clips.
type Bank struct {
	clips []Clip
}

// NewBank validates clips and returns them as a bank. Order is preserved:
// clip i is what sample index i plays.
func NewBank(clips []Clip) (*Bank, error) {
	if len(clips) == 0 {
		return nil, ErrEmptyBank
	}
	if len(clips) > MaxClips {
		return nil, fmt.Errorf("%d clips: %w", len(clips), ErrBankSize)
	}
	for _, c := range clips {
		if len(c.Samples) == 0 {
			return nil, fmt.Errorf("clip %q: %w", c.Name, ErrEmptyClip)
		}
	}
	return &Bank{clips: append([]Clip(nil), clips...)}, nil
}

func (b *Bank) Len() int { return len(b.clips) }

func (b *Bank) Clip(i int) Clip { return b.clips[i] }

// Names lists the clip names in index order.
func (b *Bank) Names() []string {
	names := make([]string, len(b.clips))
	for i, c := range b.clips {
		names[i] = c.Name
	}
	return names
}

// Builtin clip level, matched to the tone volume.
const builtinLevel = 0.4 * math.MaxInt16

var builtin *Bank

func init() {
	b, err := NewBank([]Clip{
		{Name: "kick", Samples: render(0.5, kick)},
		{Name: "snare", Samples: render(0.25, noiseHit(1, 18))},
		{Name: "hat", Samples: render(0.125, noiseHit(2, 60))},
		{Name: "rim", Samples: render(0.0625, rim)},
		{Name: "bell", Samples: render(1.0, bell)},
		{Name: "blip", Samples: render(0.01, blip)},
	})
	if err != nil {
		panic(err)
	}
	builtin = b
}

// BuiltinBank returns the clips compiled into the firmware.
func BuiltinBank() *Bank {
	return builtin
}

// render evaluates voice over seconds of audio at the device rate. voice
// gets t in [0,1) and the absolute time in seconds, and returns [-1,1].
func render(seconds float64, voice func(t, sec float64) float64) []int16 {
	n := int(seconds * SampleRate)
	out := make([]int16, n)
	for i := range out {
		v := voice(float64(i)/float64(n), float64(i)/SampleRate)
		out[i] = int16(max(-1, min(1, v)) * builtinLevel)
	}
	return out
}

// kick is a decaying sine with a downward pitch bend.
func kick(t, sec float64) float64 {
	freq := 150 - 100*t
	return math.Sin(2*math.Pi*freq*sec) * math.Exp(-5*t)
}

// noiseHit is seeded noise with an exponential decay.
func noiseHit(seed uint64, decay float64) func(t, sec float64) float64 {
	r := rand.New(rand.NewPCG(seed, seed*7919))
	return func(t, _ float64) float64 {
		return (r.Float64()*2 - 1) * math.Exp(-decay*t)
	}
}

func rim(t, sec float64) float64 {
	return math.Sin(2*math.Pi*1700*sec) * math.Exp(-9*t)
}

func bell(t, sec float64) float64 {
	v := math.Sin(2*math.Pi*880*sec) + 0.5*math.Sin(2*math.Pi*2217*sec) + 0.25*math.Sin(2*math.Pi*3520*sec)
	return v / 1.75 * math.Exp(-4*t)
}

// blip is shorter than one output buffer and loops within it.
func blip(_, sec float64) float64 {
	return math.Sin(2 * math.Pi * 1000 * sec)
}
