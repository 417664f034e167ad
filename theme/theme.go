// Package theme maps front-panel roles onto a palette.
package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	LEDOn  rune // ● lit indicator
	LEDOff rune // ○ dark indicator

	KnobFill  rune // █ pot travel
	KnobEmpty rune // ░ remaining travel
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			LEDOn:     '●',
			LEDOff:    '○',
			KnobFill:  '█',
			KnobEmpty: '░',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.3
	RoleFG      = 0.45
	RoleAccent  = 0.55
	RoleWarning = 0.7
	RoleTone    = 0.72 // tone LED
	RoleError   = 0.86
	RoleSample  = 1.0 // sample LED
)

func (t *Theme) FG() lipgloss.Color      { return rgbToLipgloss(t.Palette.Lookup(RoleFG)) }
func (t *Theme) Muted() lipgloss.Color   { return rgbToLipgloss(t.Palette.Lookup(RoleMuted)) }
func (t *Theme) Accent() lipgloss.Color  { return rgbToLipgloss(t.Palette.Lookup(RoleAccent)) }
func (t *Theme) Warning() lipgloss.Color { return rgbToLipgloss(t.Palette.Lookup(RoleWarning)) }
func (t *Theme) Error() lipgloss.Color   { return rgbToLipgloss(t.Palette.Lookup(RoleError)) }

// RGB returns the raw colour of a role, for controller LEDs.
func (t *Theme) RGB(role float64) RGB {
	return t.Palette.Lookup(role)
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
