package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/hangouts/internal/bus"
	"github.com/matheus3301/hangouts/internal/hangout"
	"github.com/matheus3301/hangouts/internal/state"
	"github.com/matheus3301/hangouts/internal/store"
	"github.com/matheus3301/hangouts/internal/unread"
	"go.uber.org/zap"
)

// ErrUnhandledFrame is returned by Apply for frames outside the protocol:
// an unknown category, a type that does not belong to its category, or a
// missing hangout payload. Such frames are logged and skipped.
var ErrUnhandledFrame = errors.New("unhandled frame")

// Navigator receives the feature route after a confirmed local transition.
type Navigator interface {
	Navigate(route hangout.State)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route hangout.State)

// Navigate calls f(route).
func (f NavigatorFunc) Navigate(route hangout.State) { f(route) }

// Engine applies server frames to the store, the unread index and the
// reducer, one frame at a time in arrival order.
type Engine struct {
	repo   *store.Repository
	unread *unread.Tracker
	state  *state.Store
	nav    Navigator
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a dispatcher. nav may be nil.
func NewEngine(repo *store.Repository, tracker *unread.Tracker, st *state.Store, nav Navigator, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if nav == nil {
		nav = NavigatorFunc(func(hangout.State) {})
	}
	return &Engine{
		repo:   repo,
		unread: tracker,
		state:  st,
		nav:    nav,
		bus:    b,
		logger: logger,
	}
}

// Start consumes frames until ctx is done or frames is closed.
func (e *Engine) Start(ctx context.Context, frames <-chan hangout.Inbound) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		for {
			select {
			case f, ok := <-frames:
				if !ok {
					return
				}
				e.handle(f)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the consumer and waits for the frame in progress.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) handle(f hangout.Inbound) {
	err := e.Apply(f)
	switch {
	case err == nil:
		e.bus.Publish(bus.NewEvent(bus.KindFrameApplied, f))
	case errors.Is(err, ErrUnhandledFrame):
		e.logger.Warn("ignoring frame", zap.Error(err), zap.String("category", f.Category), zap.String("type", string(f.Type)))
		e.bus.Publish(bus.NewEvent(bus.KindFrameIgnored, err.Error()))
	default:
		e.logger.Error("failed to apply frame", zap.Error(err), zap.String("category", f.Category), zap.String("type", string(f.Type)))
	}
}

// Apply classifies one frame and runs its persistence and reducer updates.
func (e *Engine) Apply(f hangout.Inbound) error {
	cat, err := hangout.ParseCategory(f.Category)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhandledFrame, err)
	}

	switch cat {
	case hangout.Acknowledgement, hangout.OfflineAck:
		if f.Hangout == nil {
			return fmt.Errorf("%w: %s without hangout", ErrUnhandledFrame, cat)
		}
		s := labelOf(f.Type, f.Hangout)
		if !s.IsAck() {
			return fmt.Errorf("%w: %s is not an acknowledgement", ErrUnhandledFrame, s)
		}
		return e.acknowledge(s, *f.Hangout)

	case hangout.PeerHangout:
		if f.Hangout == nil {
			return fmt.Errorf("%w: %s without hangout", ErrUnhandledFrame, cat)
		}
		s := labelOf(f.Type, f.Hangout)
		if !s.IsPeer() {
			return fmt.Errorf("%w: %s is not a peer transition", ErrUnhandledFrame, s)
		}
		return e.peer(s, *f.Hangout, false)

	case hangout.UnreadHangouts:
		var errs []error
		for _, h := range f.Hangouts {
			if !h.State.IsPeer() {
				errs = append(errs, fmt.Errorf("%w: unread %q in state %s", ErrUnhandledFrame, h.Username, h.State))
				continue
			}
			if err := e.peer(h.State, h, true); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	return fmt.Errorf("%w: category %s", ErrUnhandledFrame, cat)
}

// acknowledge confirms a transition the local user initiated.
func (e *Engine) acknowledge(s hangout.State, h hangout.Hangout) error {
	peer := h.Username
	h.State = s
	h.Delivered = true
	h.Read = true

	stored, err := e.repo.UpsertHangout(h)
	if err != nil {
		return fmt.Errorf("store acknowledged hangout: %w", err)
	}

	msg := h.Message
	if msg == nil {
		// Bare acks echo only the hangout. A queued message shares its timestamp.
		queued, err := e.repo.OfflineMessages(peer)
		if err != nil {
			return fmt.Errorf("load offline messages: %w", err)
		}
		for i := range queued {
			if queued[i].Timestamp == h.Timestamp {
				msg = &queued[i]
				break
			}
		}
	}
	if msg != nil {
		m := *msg
		if m.Username == "" {
			m.Username = e.repo.User()
		}
		m.Delivered = true
		m.Read = true
		if err := e.repo.UpsertMessage(peer, m); err != nil {
			return fmt.Errorf("store acknowledged message: %w", err)
		}
		if err := e.repo.RemoveOfflineMessage(peer, m.Timestamp); err != nil {
			return fmt.Errorf("clear offline message: %w", err)
		}
	}

	if s == hangout.Blocked {
		notice := hangout.Message{
			Text:      hangout.BlockedNotice,
			Timestamp: h.Timestamp,
			Username:  e.repo.User(),
			Read:      true,
			Delivered: true,
			Type:      hangout.MessageTypeBlocked,
		}
		if err := e.repo.UpsertMessage(peer, notice); err != nil {
			return fmt.Errorf("store block notice: %w", err)
		}
	}

	if err := e.repo.RemoveOfflineHangout(h.Timestamp); err != nil {
		return fmt.Errorf("clear offline hangout: %w", err)
	}

	e.state.Dispatch(state.HangoutUpdated{Hangout: stored})
	if err := e.refreshMessages(peer); err != nil {
		return err
	}

	if s != hangout.Messaged {
		e.nav.Navigate(s)
	}
	return nil
}

// peer merges a transition the remote peer initiated.
func (e *Engine) peer(s hangout.State, h hangout.Hangout, forceUnread bool) error {
	peer := h.Username
	focused := e.state.Focused() == peer
	h.State = s
	h.Delivered = true
	h.Read = focused && !forceUnread

	stored, err := e.repo.UpsertHangout(h)
	if err != nil {
		return fmt.Errorf("store peer hangout: %w", err)
	}

	if h.Message != nil {
		m := *h.Message
		if m.Username == "" {
			m.Username = peer
		}
		m.Delivered = true
		m.Read = h.Read
		if err := e.repo.UpsertMessage(peer, m); err != nil {
			return fmt.Errorf("store peer message: %w", err)
		}
	}

	e.state.Dispatch(state.HangoutUpdated{Hangout: stored})
	if err := e.refreshMessages(peer); err != nil {
		return err
	}

	if s.Notable() && !h.Read {
		if err := e.unread.Record(stored); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) refreshMessages(peer string) error {
	if e.state.Focused() != peer {
		return nil
	}
	msgs, err := e.repo.Messages(peer)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	e.state.Dispatch(state.MessagesUpdated{Messages: msgs})
	return nil
}

// labelOf prefers the frame type and falls back to the hangout's own state.
func labelOf(t hangout.State, h *hangout.Hangout) hangout.State {
	if t != "" {
		return t
	}
	return h.State
}
