package unread

import (
	"fmt"

	"github.com/matheus3301/hangouts/internal/bus"
	"github.com/matheus3301/hangouts/internal/hangout"
	"github.com/matheus3301/hangouts/internal/state"
	"github.com/matheus3301/hangouts/internal/store"
)

// Tracker maintains the persisted index of hangouts the user has not viewed
// and mirrors it into the reducer state.
type Tracker struct {
	repo  *store.Repository
	state *state.Store
	bus   *bus.Bus
}

// NewTracker creates a tracker over the user's repository.
func NewTracker(repo *store.Repository, st *state.Store, b *bus.Bus) *Tracker {
	return &Tracker{repo: repo, state: st, bus: b}
}

// Record marks h as unread. Repeated records for the same peer collapse into
// one entry carrying the latest transition.
func (t *Tracker) Record(h hangout.Hangout) error {
	if err := t.repo.UpsertUnread(h.Unread()); err != nil {
		return fmt.Errorf("record unread %q: %w", h.Username, err)
	}
	return t.refresh()
}

// Clear drops peer from the unread index.
func (t *Tracker) Clear(peer string) error {
	if err := t.repo.RemoveUnread(peer); err != nil {
		return fmt.Errorf("clear unread %q: %w", peer, err)
	}
	return t.refresh()
}

// List returns the unread index.
func (t *Tracker) List() ([]hangout.UnreadHangout, error) {
	return t.repo.UnreadHangouts()
}

// Load pushes the stored index into the reducer without changing it.
func (t *Tracker) Load() error {
	all, err := t.repo.UnreadHangouts()
	if err != nil {
		return err
	}
	t.state.Dispatch(state.UnreadHangoutsUpdated{Unread: all})
	return nil
}

func (t *Tracker) refresh() error {
	if err := t.Load(); err != nil {
		return err
	}
	t.bus.Publish(bus.NewEvent(bus.KindUnreadChanged, nil))
	return nil
}
