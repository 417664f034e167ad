package midi

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-stompbox/debug"
	"go-stompbox/device"
)

// DeviceEvent is emitted when a controller connects or disconnects.
type DeviceEvent struct {
	Type DeviceEventType
	ID   string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

func (t DeviceEventType) String() string {
	if t == DeviceConnected {
		return "connected"
	}
	return "disconnected"
}

// PotSetter receives pot moves.
type PotSetter interface {
	Set(v uint16)
}

// Manager connects matching MIDI ports as they appear, feeds their input to
// the device and mirrors the mode LEDs on all of them.
type Manager struct {
	mapping  Mapping
	match    string
	edges    chan<- device.Edge
	pot      PotSetter
	pollRate time.Duration

	mu       sync.RWMutex
	surfaces map[string]*Surface
	leds     [2]bool
	events   chan DeviceEvent
}

// NewManager watches for input ports whose name contains match (any port
// when match is empty). Button edges go to edges, pot moves to pot.
func NewManager(m Mapping, match string, edges chan<- device.Edge, pot PotSetter) *Manager {
	return &Manager{
		mapping:  m,
		match:    strings.ToLower(match),
		edges:    edges,
		pot:      pot,
		pollRate: time.Second,
		surfaces: make(map[string]*Surface),
		leds:     [2]bool{true, false},
		events:   make(chan DeviceEvent, 16),
	}
}

// Events reports connects and disconnects. Events are dropped when nobody
// keeps up.
func (dm *Manager) Events() <-chan DeviceEvent {
	return dm.events
}

// Connected lists the ids of the connected controllers.
func (dm *Manager) Connected() []string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	ids := make([]string, 0, len(dm.surfaces))
	for id := range dm.surfaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetIndicators mirrors the mode LEDs on every connected controller and
// remembers them for controllers that connect later.
func (dm *Manager) SetIndicators(sample, tone bool) {
	dm.mu.Lock()
	dm.leds = [2]bool{sample, tone}
	surfaces := make([]*Surface, 0, len(dm.surfaces))
	for _, s := range dm.surfaces {
		surfaces = append(surfaces, s)
	}
	dm.mu.Unlock()

	for _, s := range surfaces {
		s.SetIndicators(sample, tone)
	}
}

// Run polls for controllers until ctx is done.
func (dm *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			return nil
		case <-ticker.C:
			dm.scan(ctx)
		}
	}
}

func (dm *Manager) matches(name string) bool {
	name = strings.ToLower(name)
	if strings.Contains(name, "through") {
		return false
	}
	return dm.match == "" || strings.Contains(name, dm.match)
}

func (dm *Manager) scan(ctx context.Context) {
	// port enumeration can hang on some hosts
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}
	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	var ports portsResult
	select {
	case ports = <-ch:
	case <-time.After(3 * time.Second):
		debug.Log("midi", "port scan timed out")
		return
	}

	seen := make(map[string]bool)
	for _, in := range ports.inPorts {
		id := in.String()
		if !dm.matches(id) {
			continue
		}
		seen[id] = true

		dm.mu.RLock()
		_, exists := dm.surfaces[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		var out drivers.Out
		for _, op := range ports.outPorts {
			if strings.EqualFold(op.String(), id) {
				out = op
				break
			}
		}

		s, err := NewSurface(id, dm.mapping, in, out)
		if err != nil {
			debug.Log("midi", "connect %s: %v", id, err)
			continue
		}
		dm.attach(ctx, s)
	}

	dm.mu.Lock()
	var gone []*Surface
	for id, s := range dm.surfaces {
		if !seen[id] {
			gone = append(gone, s)
			delete(dm.surfaces, id)
		}
	}
	dm.mu.Unlock()

	for _, s := range gone {
		s.Close()
		debug.Log("midi", "disconnected %s", s.ID())
		dm.notify(DeviceEvent{Type: DeviceDisconnected, ID: s.ID()})
	}
}

func (dm *Manager) attach(ctx context.Context, s *Surface) {
	dm.mu.Lock()
	dm.surfaces[s.ID()] = s
	leds := dm.leds
	dm.mu.Unlock()

	s.SetIndicators(leds[0], leds[1])
	go dm.forward(ctx, s)

	debug.Log("midi", "connected %s", s.ID())
	dm.notify(DeviceEvent{Type: DeviceConnected, ID: s.ID()})
}

// forward drains one surface until it is closed.
func (dm *Manager) forward(ctx context.Context, s *Surface) {
	for ev := range s.Events() {
		switch ev.Kind {
		case EventEdge:
			select {
			case dm.edges <- ev.Edge:
			case <-ctx.Done():
				return
			}
		case EventPot:
			dm.pot.Set(ev.Pot)
		}
	}
}

func (dm *Manager) notify(ev DeviceEvent) {
	select {
	case dm.events <- ev:
	default:
	}
}

func (dm *Manager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for id, s := range dm.surfaces {
		s.Close()
		delete(dm.surfaces, id)
	}
}
