package state

import (
	"sync"

	"github.com/matheus3301/hangouts/internal/bus"
)

// Store holds the current state and serializes dispatches.
type Store struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewStore creates a store holding Initial().
func NewStore(b *bus.Bus) *Store {
	return &Store{current: Initial(), bus: b}
}

// Dispatch applies a and returns the resulting state.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	s.current = Reduce(s.current, a)
	next := s.current
	s.mu.Unlock()

	s.bus.Publish(bus.NewEvent(bus.KindStateChanged, Name(a)))
	return next
}

// Current returns the latest state.
func (s *Store) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Focused returns the username of the selected hangout, or "".
func (s *Store) Focused() string {
	cur := s.Current()
	if cur.Hangout == nil {
		return ""
	}
	return cur.Hangout.Username
}
