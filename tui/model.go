package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-stompbox/config"
	"go-stompbox/device"
	"go-stompbox/midi"
	"go-stompbox/theme"
	"go-stompbox/tone"
	"go-stompbox/widgets"
)

const refreshRate = 50 * time.Millisecond

// Model is the terminal front panel: it presses the buttons, turns the pot
// and shows what the device is doing.
type Model struct {
	Device  *device.Device
	LEDs    *device.LEDs
	Knob    *device.Knob
	Edges   chan<- device.Edge
	MIDI    *midi.Manager // may be nil
	Theme   *theme.Theme
	Keys    config.KeyBindings
	PotStep int

	status   string
	quitting bool
}

type tickMsg time.Time

type DeviceEventMsg midi.DeviceEvent

func NewModel(dev *device.Device, leds *device.LEDs, knob *device.Knob, edges chan<- device.Edge, th *theme.Theme, controls config.ControlsConfig) Model {
	return Model{
		Device:  dev,
		LEDs:    leds,
		Knob:    knob,
		Edges:   edges,
		Theme:   th,
		Keys:    controls.Keys,
		PotStep: controls.PotStep,
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func ListenForDevices(deviceMgr *midi.Manager) tea.Cmd {
	return func() tea.Msg {
		return DeviceEventMsg(<-deviceMgr.Events())
	}
}

func (m Model) Init() tea.Cmd {
	if m.MIDI == nil {
		return tick()
	}
	return tea.Batch(tick(), ListenForDevices(m.MIDI))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case m.Keys.Quit, "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case m.Keys.Sample:
			m.press(device.ButtonSample)
		case m.Keys.Tone:
			m.press(device.ButtonTone)
		case m.Keys.PotUp, "=", "up":
			m.Knob.Nudge(m.PotStep, tone.MaxPot)
		case m.Keys.PotDown, "_", "down":
			m.Knob.Nudge(-m.PotStep, tone.MaxPot)
		}

	case tickMsg:
		return m, tick()

	case DeviceEventMsg:
		m.status = fmt.Sprintf("%s %s", msg.ID, msg.Type)
		return m, ListenForDevices(m.MIDI)
	}

	return m, nil
}

// press sends a full press and release, as a footswitch would.
func (m *Model) press(b device.Button) {
	for _, pressed := range []bool{true, false} {
		select {
		case m.Edges <- device.Edge{Button: b, Pressed: pressed}:
		default:
			m.status = "input queue full"
			return
		}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	th := m.Theme
	sym := th.Symbols
	headerStyle := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(th.FG())
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	off := th.RGB(theme.RoleMuted)

	dev := m.Device
	rec := dev.Controller.Snapshot()
	sampleLED, toneLED := m.LEDs.Get()

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(fmt.Sprintf("go-stompbox  %s", strings.ToUpper(rec.Mode.String()))))
	out.WriteString("\n\n")

	fmt.Fprintf(&out, "  %s SAMPLE   %s TONE\n\n",
		widgets.RenderLED(sampleLED, th.RGB(theme.RoleSample), off, sym.LEDOn, sym.LEDOff),
		widgets.RenderLED(toneLED, th.RGB(theme.RoleTone), off, sym.LEDOn, sym.LEDOff))

	out.WriteString(labelStyle.Render(fmt.Sprintf("  clip  %d/%d %-8s", int(rec.SampleIndex)+1, dev.Streamer.Len(), dev.Streamer.Current())))
	out.WriteString("\n")

	stage, vol := dev.Synth.Envelope()
	period, _ := dev.Synth.Tempo()
	out.WriteString(labelStyle.Render(fmt.Sprintf("  tone  %d/%d %4.0fHz %-6s %s",
		int(rec.ToneIndex)+1, tone.NumTones, dev.Synth.Frequency(), stage,
		widgets.Bar(vol, tone.Volume, 10, sym.KnobFill, sym.KnobEmpty))))
	out.WriteString("\n")

	pot := m.Knob.ReadAnalog()
	out.WriteString(labelStyle.Render(fmt.Sprintf("  speed %s %4d %5dms",
		widgets.Bar(float64(pot), tone.MaxPot, 20, sym.KnobFill, sym.KnobEmpty), pot, period.Milliseconds())))
	out.WriteString("\n\n")

	used, capacity := dev.Store.Usage()
	wear := lipgloss.NewStyle().Foreground(th.FG())
	if used*10 >= capacity*9 {
		wear = wear.Foreground(th.Warning())
	}
	out.WriteString(wear.Render(fmt.Sprintf("  flash %s %d/%d records", widgets.Bar(float64(used), float64(capacity), 20, sym.KnobFill, sym.KnobEmpty), used, capacity)))
	if dev.Controller.Pending() {
		out.WriteString(dimStyle.Render("  (save pending)"))
	}
	out.WriteString("\n")

	if m.MIDI != nil {
		ports := m.MIDI.Connected()
		if len(ports) == 0 {
			out.WriteString(dimStyle.Render("  midi  no controller"))
		} else {
			out.WriteString(dimStyle.Render("  midi  " + strings.Join(ports, ", ")))
		}
		out.WriteString("\n")
	}
	if m.status != "" {
		out.WriteString(dimStyle.Render("  " + m.status))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render(fmt.Sprintf("%s:sample  %s:tone  %s/%s:speed  %s:quit",
		m.Keys.Sample, m.Keys.Tone, m.Keys.PotUp, m.Keys.PotDown, m.Keys.Quit)))

	return out.String()
}
