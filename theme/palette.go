package theme

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

type RGB [3]uint8

// Palette is an ordered colour ramp, as stored in a GIMP .gpl file.
type Palette struct {
	Name   string
	Colors []RGB
}

// Default is the built-in ramp used when no palette file is configured:
// dark pedal enamel through amber to LED green.
func Default() *Palette {
	return &Palette{
		Name: "stompbox",
		Colors: []RGB{
			{18, 18, 22},
			{44, 44, 52},
			{96, 96, 110},
			{200, 200, 190},
			{255, 176, 0},
			{255, 100, 0},
			{220, 40, 40},
			{40, 220, 90},
		},
	}
}

// LoadGPL reads a palette file.
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseGPL(f, path)
}

// ParseGPL reads GIMP palette text. name labels errors.
func ParseGPL(r io.Reader, name string) (*Palette, error) {
	p := &Palette{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "Name:"):
			p.Name = strings.TrimSpace(line[len("Name:"):])
		case line == "", strings.HasPrefix(line, "#"),
			strings.HasPrefix(line, "GIMP"), strings.HasPrefix(line, "Columns"):
		default:
			if c, ok := parseSwatch(line); ok {
				p.Colors = append(p.Colors, c)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read palette %s: %w", name, err)
	}
	if len(p.Colors) == 0 {
		return nil, fmt.Errorf("palette %s has no colours", name)
	}
	return p, nil
}

// parseSwatch reads "R G B [label]".
func parseSwatch(line string) (RGB, bool) {
	var c RGB
	f := strings.Fields(line)
	if len(f) < len(c) {
		return c, false
	}
	for i := range c {
		v, err := strconv.ParseUint(f[i], 10, 8)
		if err != nil {
			return c, false
		}
		c[i] = uint8(v)
	}
	return c, true
}

// Lookup samples the ramp at t in [0, 1], blending neighbouring swatches.
func (p *Palette) Lookup(t float64) RGB {
	last := len(p.Colors) - 1
	switch {
	case t <= 0 || last == 0:
		return p.Colors[0]
	case t >= 1:
		return p.Colors[last]
	}
	pos := t * float64(last)
	i := int(pos)
	return p.Colors[i].mix(p.Colors[i+1], pos-float64(i))
}

// mix blends c toward o by t.
func (c RGB) mix(o RGB, t float64) RGB {
	var out RGB
	for i := range out {
		out[i] = uint8(float64(c[i]) + (float64(o[i])-float64(c[i]))*t)
	}
	return out
}
