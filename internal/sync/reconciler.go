package sync

import (
	"fmt"

	"github.com/matheus3301/hangouts/internal/state"
	"github.com/matheus3301/hangouts/internal/store"
	"go.uber.org/zap"
)

// Reconciler rebuilds the reducer working copy from the store. It runs on
// every start, which is how state survives restarts and dropped sockets.
type Reconciler struct {
	repo   *store.Repository
	state  *state.Store
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(repo *store.Repository, st *state.Store, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{repo: repo, state: st, logger: logger}
}

// Rehydrate loads hangouts, the unread index and, when a hangout is focused,
// its message log.
func (r *Reconciler) Rehydrate() error {
	hangouts, err := r.repo.Hangouts()
	if err != nil {
		return fmt.Errorf("load hangouts: %w", err)
	}
	r.state.Dispatch(state.LoadHangouts{Hangouts: hangouts})

	unread, err := r.repo.UnreadHangouts()
	if err != nil {
		return fmt.Errorf("load unread: %w", err)
	}
	r.state.Dispatch(state.UnreadHangoutsUpdated{Unread: unread})

	if peer := r.state.Focused(); peer != "" {
		msgs, err := r.repo.Messages(peer)
		if err != nil {
			return fmt.Errorf("load messages: %w", err)
		}
		r.state.Dispatch(state.MessagesUpdated{Messages: msgs})
	}

	offline, err := r.repo.OfflineHangouts()
	if err != nil {
		return fmt.Errorf("load offline queue: %w", err)
	}
	r.logger.Info("state rehydrated",
		zap.Int("hangouts", len(hangouts)),
		zap.Int("unread", len(unread)),
		zap.Int("offline", len(offline)))
	return nil
}
