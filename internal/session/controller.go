package session

import (
	"fmt"

	"github.com/matheus3301/hangouts/internal/hangout"
	"github.com/matheus3301/hangouts/internal/state"
	"github.com/matheus3301/hangouts/internal/status"
	"github.com/matheus3301/hangouts/internal/store"
	"github.com/matheus3301/hangouts/internal/sync"
	"github.com/matheus3301/hangouts/internal/unread"
	"go.uber.org/zap"
)

// Controller carries the local user's view actions: which hangout is in
// focus, the composer text and the search input.
type Controller struct {
	repo       *store.Repository
	state      *state.Store
	unread     *unread.Tracker
	reconciler *sync.Reconciler
	machine    *status.Machine
	logger     *zap.Logger
}

// NewController creates a session controller.
func NewController(repo *store.Repository, st *state.Store, tracker *unread.Tracker, rec *sync.Reconciler, machine *status.Machine, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		repo:       repo,
		state:      st,
		unread:     tracker,
		reconciler: rec,
		machine:    machine,
		logger:     logger,
	}
}

// Load rebuilds the working state from the store and mirrors the current
// socket readiness.
func (c *Controller) Load() error {
	if err := c.reconciler.Rehydrate(); err != nil {
		return err
	}
	c.state.Dispatch(state.ReadyStateChanged{ReadyState: c.machine.Current()})
	return nil
}

// Select focuses the hangout with peer, marks it and its messages read and
// drops it from the unread index. Peers that only exist in search results
// are selected without touching the store.
func (c *Controller) Select(peer string) (hangout.Hangout, error) {
	h, err := c.lookup(peer)
	if err != nil {
		return hangout.Hangout{}, err
	}

	c.state.Dispatch(state.HangoutSelected{Hangout: h})

	if err := c.repo.MarkHangoutRead(peer); err != nil {
		return hangout.Hangout{}, fmt.Errorf("mark hangout read: %w", err)
	}
	if err := c.repo.MarkMessagesRead(peer); err != nil {
		return hangout.Hangout{}, fmt.Errorf("mark messages read: %w", err)
	}
	if err := c.unread.Clear(peer); err != nil {
		return hangout.Hangout{}, err
	}

	if stored, err := c.repo.Hangout(peer); err != nil {
		return hangout.Hangout{}, fmt.Errorf("load hangout: %w", err)
	} else if stored != nil {
		h = *stored
		c.state.Dispatch(state.HangoutUpdated{Hangout: h})
	}

	msgs, err := c.repo.Messages(peer)
	if err != nil {
		return hangout.Hangout{}, fmt.Errorf("load messages: %w", err)
	}
	c.state.Dispatch(state.MessagesUpdated{Messages: msgs})

	c.logger.Debug("hangout selected", zap.String("peer", peer), zap.Int("messages", len(msgs)))
	return h, nil
}

// SetText updates the composer text.
func (c *Controller) SetText(text string) {
	c.state.Dispatch(state.MessageTextChanged{Text: text})
}

// SetSearch updates the search input.
func (c *Controller) SetSearch(search string) {
	c.state.Dispatch(state.SearchInputChanged{Search: search})
}

func (c *Controller) lookup(peer string) (hangout.Hangout, error) {
	stored, err := c.repo.Hangout(peer)
	if err != nil {
		return hangout.Hangout{}, fmt.Errorf("load hangout: %w", err)
	}
	if stored != nil {
		return *stored, nil
	}
	for _, h := range c.state.Current().Hangouts {
		if h.Username == peer {
			return h, nil
		}
	}
	return hangout.Hangout{Username: peer}, nil
}
