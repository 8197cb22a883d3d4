package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/hangouts/internal/bus"
)

// State is the readiness of the socket channel.
type State string

const (
	Connecting State = "CONNECTING"
	Open       State = "OPEN"
	Closing    State = "CLOSING"
	Closed     State = "CLOSED"
)

// validTransitions follows the transport lifecycle. CLOSED -> CONNECTING is
// only taken when a new dial starts.
var validTransitions = map[State][]State{
	Closed:     {Connecting},
	Connecting: {Open, Closing, Closed},
	Open:       {Closing, Closed},
	Closing:    {Closed},
}

// Machine tracks socket readiness and rejects transitions the transport cannot produce.
type Machine struct {
	mu      sync.RWMutex
	current State
	opens   uint64
	opened  chan struct{}
	bus     *bus.Bus
}

// NewMachine creates a machine in the Closed state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Closed, opened: make(chan struct{}, 1), bus: b}
}

// Current returns the current readiness.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsOpen reports whether frames can be written right now.
func (m *Machine) IsOpen() bool {
	return m.Current() == Open
}

// OpenGeneration counts transitions into OPEN since the machine was created.
func (m *Machine) OpenGeneration() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opens
}

// Opened signals after a transition into OPEN. Signals coalesce: a receiver
// that falls behind sees one pending signal and reads OpenGeneration for the
// rest. Meant for a single consumer.
func (m *Machine) Opened() <-chan struct{} {
	return m.opened
}

// Transition moves to a new readiness and publishes the change.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid readiness transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if to == Open {
		m.opens++
		select {
		case m.opened <- struct{}{}:
		default:
		}
	}
	m.bus.Publish(bus.NewEvent(bus.KindReadinessChanged, Change{From: from, To: to}))
	return nil
}

// Change is the payload of readiness events.
type Change struct {
	From State `json:"from"`
	To   State `json:"to"`
}
