package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/hangouts/internal/bus"
	"github.com/matheus3301/hangouts/internal/hangout"
	"github.com/matheus3301/hangouts/internal/state"
	"github.com/matheus3301/hangouts/internal/status"
	"github.com/matheus3301/hangouts/internal/store"
	"go.uber.org/zap"
)

// Socket is the outbound side of the live channel.
type Socket interface {
	Send(ctx context.Context, frame hangout.Outbound) error
}

// Result reports what Submit did with an intent.
type Result struct {
	Hangout hangout.Hangout
	Queued  bool
}

// Sender pushes local intents to the server, or parks them in the offline
// queue until the channel opens again.
type Sender struct {
	repo    *store.Repository
	socket  Socket
	machine *status.Machine
	state   *state.Store
	bus     *bus.Bus
	logger  *zap.Logger
	now     func() time.Time
	poll    time.Duration

	flushMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSender creates a new outbox sender.
func NewSender(repo *store.Repository, socket Socket, machine *status.Machine, st *state.Store, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		repo:    repo,
		socket:  socket,
		machine: machine,
		state:   st,
		bus:     b,
		logger:  logger,
		now:     time.Now,
		poll:    2 * time.Second,
	}
}

// Submit sends the hangout built from in, or queues it when the channel is
// not open or the write fails.
func (s *Sender) Submit(ctx context.Context, in hangout.Intent) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	if in.Email == "" {
		known, err := s.repo.Hangout(in.Username)
		if err != nil {
			return Result{}, fmt.Errorf("load hangout: %w", err)
		}
		if known != nil {
			in.Email = known.Email
		}
	}
	h := in.Hangout(s.repo.User(), s.now())

	if !s.machine.IsOpen() {
		return s.queue(h, nil)
	}

	s.state.Dispatch(state.SendingHangoutStarted{Hangout: h})
	if h.Message != nil {
		if err := s.repo.UpsertMessage(h.Username, *h.Message); err != nil {
			s.state.Dispatch(state.SendingHangoutFulfilled{})
			return Result{}, fmt.Errorf("store outgoing message: %w", err)
		}
		s.refreshMessages(h.Username)
	}

	err := s.socket.Send(ctx, h.Frame(false))
	s.state.Dispatch(state.SendingHangoutFulfilled{})
	if err != nil {
		return s.queue(h, err)
	}

	s.logger.Info("hangout sent", zap.String("peer", h.Username), zap.String("command", string(h.State)), zap.Int64("timestamp", h.Timestamp))
	s.bus.Publish(bus.NewEvent(bus.KindHangoutSent, h))
	return Result{Hangout: h}, nil
}

func (s *Sender) queue(h hangout.Hangout, cause error) (Result, error) {
	if err := s.repo.AppendOfflineHangout(h); err != nil {
		return Result{}, fmt.Errorf("queue hangout: %w", err)
	}
	if h.Message != nil {
		if err := s.repo.AppendOfflineMessage(h.Username, *h.Message); err != nil {
			return Result{}, fmt.Errorf("queue message: %w", err)
		}
	}

	fields := []zap.Field{zap.String("peer", h.Username), zap.String("command", string(h.State)), zap.Int64("timestamp", h.Timestamp)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	s.logger.Info("hangout queued", fields...)
	s.bus.Publish(bus.NewEvent(bus.KindHangoutQueued, h))
	return Result{Hangout: h, Queued: true}, nil
}

// Start flushes the offline queue once per transition to OPEN. The loop
// follows the machine's open generation, so an OPEN that happens while a
// flush is still running is picked up when that flush returns.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		var flushed uint64
		for {
			select {
			case <-s.machine.Opened():
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
			gen := s.machine.OpenGeneration()
			if gen == flushed || !s.machine.IsOpen() {
				continue
			}
			flushed = gen
			if _, err := s.Flush(ctx); err != nil {
				s.logger.Error("offline flush failed", zap.Error(err), zap.Uint64("generation", gen))
			}
		}
	}()
}

// Stop stops the flush loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Flush sends every queued hangout once with offline set. Entries stay in
// the queue until their OFFLINE_ACKN arrives.
func (s *Sender) Flush(ctx context.Context) (int, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	queued, err := s.repo.OfflineHangouts()
	if err != nil {
		return 0, fmt.Errorf("read offline queue: %w", err)
	}

	sent := 0
	for _, h := range queued {
		if !s.machine.IsOpen() {
			break
		}
		if err := s.socket.Send(ctx, h.Frame(true)); err != nil {
			s.logger.Warn("offline send failed", zap.Error(err), zap.String("peer", h.Username), zap.Int64("timestamp", h.Timestamp))
			break
		}
		sent++
	}

	if len(queued) > 0 {
		s.logger.Info("offline queue flushed", zap.Int("sent", sent), zap.Int("queued", len(queued)))
		s.bus.Publish(bus.NewEvent(bus.KindOfflineFlushed, sent))
	}
	return sent, nil
}

func (s *Sender) refreshMessages(peer string) {
	if s.state.Focused() != peer {
		return
	}
	msgs, err := s.repo.Messages(peer)
	if err != nil {
		s.logger.Error("failed to load messages", zap.Error(err), zap.String("peer", peer))
		return
	}
	s.state.Dispatch(state.MessagesUpdated{Messages: msgs})
}
