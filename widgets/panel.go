// Package widgets renders front-panel parts for the terminal.
package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderLED renders one indicator, lit in color or dark in off.
func RenderLED(on bool, color, off [3]uint8, onSym, offSym rune) string {
	if on {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color))).Render(string(onSym))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(off))).Render(string(offSym))
}

// Bar draws value/total as width cells of fill followed by empty.
func Bar(value, total float64, width int, fill, empty rune) string {
	if width <= 0 {
		return ""
	}
	n := 0
	if total > 0 {
		n = max(0, min(width, int(value/total*float64(width))))
	}
	return strings.Repeat(string(fill), n) + strings.Repeat(string(empty), width-n)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
