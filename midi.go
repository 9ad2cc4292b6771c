package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// -------------------- Decoded events --------------------

type EventKind int

const (
	EventNoteOn EventKind = iota
	EventNoteOff
	EventControlChange
)

// Event is one decoded MIDI message. Channel is carried but the engine
// listens omni, so it is informational only.
type Event struct {
	Kind       EventKind
	Channel    uint8
	Note       uint8
	Velocity   uint8
	Controller uint8
	Value      uint8
}

// parseEvent decodes the messages the engine cares about. ok is false for
// anything else (sysex, clock, aftertouch, ...).
func parseEvent(msg midi.Message) (Event, bool) {
	var ch, key, vel uint8
	if msg.GetNoteStart(&ch, &key, &vel) {
		return Event{Kind: EventNoteOn, Channel: ch, Note: key, Velocity: vel}, true
	}
	if msg.GetNoteEnd(&ch, &key) {
		return Event{Kind: EventNoteOff, Channel: ch, Note: key}, true
	}
	var ctrl, val uint8
	if msg.GetControlChange(&ch, &ctrl, &val) {
		return Event{Kind: EventControlChange, Channel: ch, Controller: ctrl, Value: val}, true
	}
	return Event{}, false
}

const midiRescanInterval = 1000 * time.Millisecond

// eventQueueCap bounds the listener-to-loop queue. A full queue drops the
// event rather than ever blocking the listener goroutine.
const eventQueueCap = 256

// -------------------- MIDIWatcher --------------------

// MIDIWatcher monitors available MIDI inputs and maintains a connection to
// the preferred device. It handles hot-plug (new device appears) and
// hot-unplug (device disappears) transparently.
//
// Decoded events are delivered on Events() and must be drained by the
// control loop; onDisconnect is called (from a goroutine) when the active
// device is lost, so the caller can black the strip immediately.
type MIDIWatcher struct {
	mu           sync.Mutex
	drv          *rtmididrv.Driver
	inPort       drivers.In
	stopFn       func()
	connected    bool
	selectedName string
	lastRescanAt time.Time

	preferred []string
	excluded  []string

	events       chan Event
	onDisconnect func()
}

// NewMIDIWatcher creates a watcher and initialises the underlying rtmidi
// driver. Call Close() when done.
func NewMIDIWatcher(preferred, excluded []string, onDisconnect func()) (*MIDIWatcher, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	return &MIDIWatcher{
		drv:          drv,
		preferred:    preferred,
		excluded:     excluded,
		events:       make(chan Event, eventQueueCap),
		onDisconnect: onDisconnect,
	}, nil
}

// Events is the decoded-event queue the control loop drains each iteration.
func (m *MIDIWatcher) Events() <-chan Event { return m.events }

// Close shuts down the active MIDI connection and the rtmidi driver.
func (m *MIDIWatcher) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeConn()
	m.drv.Close()
}

// Tick is the watcher's housekeeping slot in the control loop. It rescans at
// most once per midiRescanInterval, auto-connects to a preferred device, and
// detects disappearances. Cheap when nothing changed.
func (m *MIDIWatcher) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if !m.lastRescanAt.IsZero() && now.Sub(m.lastRescanAt) < midiRescanInterval {
		return
	}
	m.lastRescanAt = now

	inputs := m.listInputs()

	if m.connected {
		// Verify the selected device is still present.
		for _, n := range inputs {
			if n == m.selectedName {
				return // still there, nothing to do
			}
		}
		// Device disappeared.
		logger.Warn("midi: device disappeared", "device", m.selectedName)
		m.closeConn()
		m.lastRescanAt = time.Time{} // rescan immediately next tick
		if m.onDisconnect != nil {
			go m.onDisconnect()
		}
		return
	}

	// Not connected - try to connect.
	if len(inputs) == 0 {
		return
	}
	cand, ok := m.pickPreferred(inputs)
	if !ok {
		return
	}
	if err := m.openByName(cand); err != nil {
		logger.Error("midi: connect failed", "device", cand, "err", err)
	}
}

// -------------------- internal --------------------

func (m *MIDIWatcher) listInputs() []string {
	ins, err := m.drv.Ins()
	if err != nil {
		logger.Error("midi: list inputs failed", "err", err)
		return nil
	}
	var names []string
	for _, in := range ins {
		name := in.String()
		excluded := false
		for _, pat := range m.excluded {
			if containsCI(name, pat) {
				excluded = true
				break
			}
		}
		if excluded {
			logger.Debug("midi: input excluded", "device", name)
		} else {
			names = append(names, name)
		}
	}
	logger.Debug("midi: inputs found", "count", len(names), "devices", strings.Join(names, ", "))
	return names
}

func (m *MIDIWatcher) pickPreferred(inputs []string) (string, bool) {
	for _, pat := range m.preferred {
		for _, name := range inputs {
			if containsCI(name, pat) {
				return name, true
			}
		}
	}
	if len(inputs) == 1 {
		return inputs[0], true
	}
	return "", false
}

func (m *MIDIWatcher) closeConn() {
	if m.stopFn != nil {
		m.stopFn()
		m.stopFn = nil
	}
	if m.inPort != nil {
		_ = m.inPort.Close()
		m.inPort = nil
	}
	m.connected = false
	m.selectedName = ""
}

// enqueue hands one decoded event to the control loop without ever blocking
// the listener goroutine.
func (m *MIDIWatcher) enqueue(ev Event) {
	select {
	case m.events <- ev:
	default:
		logger.Warn("midi: event queue full, dropping event", "kind", ev.Kind)
	}
}

func (m *MIDIWatcher) openByName(name string) error {
	ins, err := m.drv.Ins()
	if err != nil {
		return err
	}
	var found drivers.In
	for _, in := range ins {
		if in.String() == name {
			found = in
			break
		}
	}
	if found == nil {
		return fmt.Errorf("input %q not found", name)
	}
	if err := found.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}

	stop, err := midi.ListenTo(found, func(msg midi.Message, _ int32) {
		ev, ok := parseEvent(msg)
		if !ok {
			logger.Debug("midi: unhandled message", "msg", msg.String())
			return
		}
		switch ev.Kind {
		case EventNoteOn:
			logger.Debug("midi: note on", "ch", ev.Channel, "note", ev.Note, "vel", ev.Velocity)
		case EventNoteOff:
			logger.Debug("midi: note off", "ch", ev.Channel, "note", ev.Note)
		case EventControlChange:
			logger.Debug("midi: control change", "ch", ev.Channel, "cc", ev.Controller, "val", ev.Value)
		}
		m.enqueue(ev)
	}, midi.HandleError(func(listenErr error) {
		logger.Warn("midi: listener error", "device", name, "err", listenErr)
		// Must not call closeConn from within the listener goroutine, so
		// we dispatch to a new goroutine and re-acquire the mutex.
		go func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.connected && m.selectedName == name {
				m.closeConn()
				m.lastRescanAt = time.Time{} // trigger immediate rescan
				if m.onDisconnect != nil {
					go m.onDisconnect()
				}
			}
		}()
	}))
	if err != nil {
		_ = found.Close()
		return fmt.Errorf("listen %q: %w", name, err)
	}

	m.inPort = found
	m.stopFn = stop
	m.connected = true
	m.selectedName = name
	logger.Info("midi: connected", "device", name)
	return nil
}

// listMidiPorts prints the available inputs, for the -list flag.
func listMidiPorts() {
	fmt.Println("Available MIDI input ports:")
	for i, in := range midi.GetInPorts() {
		fmt.Printf("  [%d] %s\n", i, in)
	}
}

// -------------------- utility --------------------

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
