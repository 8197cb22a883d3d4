package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/hangouts/internal/bus"
	"github.com/matheus3301/hangouts/internal/hangout"
	"github.com/matheus3301/hangouts/internal/outbox"
	"github.com/matheus3301/hangouts/internal/search"
	"github.com/matheus3301/hangouts/internal/session"
	"github.com/matheus3301/hangouts/internal/state"
	"github.com/matheus3301/hangouts/internal/status"
	"github.com/matheus3301/hangouts/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Control implements the hangouts.v1.Control service.
type Control struct {
	user       string
	startedAt  time.Time
	repo       *store.Repository
	state      *state.Store
	machine    *status.Machine
	sender     *outbox.Sender
	controller *session.Controller
	finder     *search.Finder
	bus        *bus.Bus
	logger     *zap.Logger
}

// NewControl creates the control service for one user.
func NewControl(repo *store.Repository, st *state.Store, machine *status.Machine, sender *outbox.Sender, controller *session.Controller, finder *search.Finder, b *bus.Bus, logger *zap.Logger) *Control {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Control{
		user:       repo.User(),
		startedAt:  time.Now(),
		repo:       repo,
		state:      st,
		machine:    machine,
		sender:     sender,
		controller: controller,
		finder:     finder,
		bus:        b,
		logger:     logger,
	}
}

func (c *Control) GetStatus(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	cur := c.state.Current()
	st := Status{
		User:          c.user,
		ReadyState:    string(c.machine.Current()),
		UptimeMs:      time.Since(c.startedAt).Milliseconds(),
		Hangouts:      len(cur.Hangouts),
		Unread:        len(cur.UnreadHangouts),
		Search:        cur.Search,
		Loading:       cur.Loading,
		NotFound:      cur.NotFound,
		DroppedEvents: c.bus.Dropped(),
	}
	if cur.Hangout != nil {
		st.Focused = cur.Hangout.Username
	}
	if cur.Error != nil {
		st.Error = cur.Error.Error()
	}
	if offline, err := c.repo.OfflineHangouts(); err == nil {
		st.Offline = len(offline)
	}
	return reply(st)
}

func (c *Control) ListHangouts(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	hs, err := c.repo.Hangouts()
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(HangoutsResponse{Hangouts: hs})
}

func (c *Control) ListMessages(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in PeerRequest
	if err := parse(req, &in); err != nil {
		return nil, err
	}
	if in.Peer == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "peer is required")
	}
	msgs, err := c.repo.Messages(in.Peer)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(MessagesResponse{Messages: msgs})
}

func (c *Control) ListUnread(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list, err := c.repo.UnreadHangouts()
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(UnreadResponse{Unread: list})
}

func (c *Control) ListOffline(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	hs, err := c.repo.OfflineHangouts()
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(HangoutsResponse{Hangouts: hs})
}

func (c *Control) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in SubmitRequest
	if err := parse(req, &in); err != nil {
		return nil, err
	}
	res, err := c.sender.Submit(ctx, hangout.Intent{
		Command:  in.Command,
		Username: in.Username,
		Email:    in.Email,
		Text:     in.Text,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(SubmitResponse{Hangout: res.Hangout, Queued: res.Queued})
}

func (c *Control) Select(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in PeerRequest
	if err := parse(req, &in); err != nil {
		return nil, err
	}
	if in.Peer == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "peer is required")
	}
	h, err := c.controller.Select(in.Peer)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(SelectResponse{Hangout: h, Messages: c.state.Current().Messages})
}

func (c *Control) Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in SearchRequest
	if err := parse(req, &in); err != nil {
		return nil, err
	}
	if in.Query == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "query is required")
	}
	hs, err := c.finder.Find(ctx, in.Query)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(HangoutsResponse{Hangouts: hs})
}

func (c *Control) SetText(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in TextRequest
	if err := parse(req, &in); err != nil {
		return nil, err
	}
	c.controller.SetText(in.Text)
	return &structpb.Struct{}, nil
}

// WatchEvents streams bus events whose kind starts with the requested
// prefix until the client goes away.
func (c *Control) WatchEvents(req *structpb.Struct, stream grpc.ServerStream) error {
	var in WatchRequest
	if err := parse(req, &in); err != nil {
		return err
	}
	ch, unsub := c.bus.Subscribe(in.Prefix, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			out, err := encode(Event{
				ID:               uuid.New().String(),
				User:             c.user,
				Kind:             evt.Kind,
				OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
				Payload:          payloadOf(evt.Payload),
			})
			if err != nil {
				c.logger.Warn("failed to encode event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.SendMsg(out); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

// payloadOf keeps payloads JSON-friendly; errors travel as their message.
func payloadOf(p any) any {
	if err, ok := p.(error); ok {
		return err.Error()
	}
	return p
}

func parse(req *structpb.Struct, v any) error {
	if err := decode(req, v); err != nil {
		return grpcstatus.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	return nil
}

func reply(v any) (*structpb.Struct, error) {
	out, err := encode(v)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "%v", err)
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, hangout.ErrInvalidIntent):
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, search.ErrNotFound):
		return grpcstatus.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.FromContextError(err).Err()
	default:
		return grpcstatus.Error(codes.Internal, err.Error())
	}
}
