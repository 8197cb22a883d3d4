package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/matheus3301/hangouts/internal/api"
	"github.com/matheus3301/hangouts/internal/hangout"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket.
func New(socketPath string, opts ...grpc.DialOption) (*Client, error) {
	return Dial("unix://"+socketPath, opts...)
}

// Dial connects to target. Without options the connection is insecure.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Status(ctx context.Context) (api.Status, error) {
	var out api.Status
	err := c.call(ctx, api.MethodGetStatus, nil, &out)
	return out, err
}

func (c *Client) Hangouts(ctx context.Context) ([]hangout.Hangout, error) {
	var out api.HangoutsResponse
	err := c.call(ctx, api.MethodListHangouts, nil, &out)
	return out.Hangouts, err
}

func (c *Client) Messages(ctx context.Context, peer string) ([]hangout.Message, error) {
	var out api.MessagesResponse
	err := c.call(ctx, api.MethodListMessages, api.PeerRequest{Peer: peer}, &out)
	return out.Messages, err
}

func (c *Client) Unread(ctx context.Context) ([]hangout.UnreadHangout, error) {
	var out api.UnreadResponse
	err := c.call(ctx, api.MethodListUnread, nil, &out)
	return out.Unread, err
}

func (c *Client) Offline(ctx context.Context) ([]hangout.Hangout, error) {
	var out api.HangoutsResponse
	err := c.call(ctx, api.MethodListOffline, nil, &out)
	return out.Hangouts, err
}

func (c *Client) Submit(ctx context.Context, in hangout.Intent) (api.SubmitResponse, error) {
	var out api.SubmitResponse
	err := c.call(ctx, api.MethodSubmit, api.SubmitRequest{
		Command:  in.Command,
		Username: in.Username,
		Email:    in.Email,
		Text:     in.Text,
	}, &out)
	return out, err
}

func (c *Client) Select(ctx context.Context, peer string) (api.SelectResponse, error) {
	var out api.SelectResponse
	err := c.call(ctx, api.MethodSelect, api.PeerRequest{Peer: peer}, &out)
	return out, err
}

func (c *Client) Search(ctx context.Context, query string) ([]hangout.Hangout, error) {
	var out api.HangoutsResponse
	err := c.call(ctx, api.MethodSearch, api.SearchRequest{Query: query}, &out)
	return out.Hangouts, err
}

func (c *Client) SetText(ctx context.Context, text string) error {
	return c.call(ctx, api.MethodSetText, api.TextRequest{Text: text}, nil)
}

// Watch streams daemon events with the given kind prefix ("" for all)
// and calls fn for each until ctx is done or fn returns an error.
func (c *Client) Watch(ctx context.Context, prefix string, fn func(api.Event) error) error {
	desc := &api.ServiceDesc.Streams[0]
	stream, err := c.conn.NewStream(ctx, desc, "/"+api.ServiceName+"/"+api.StreamWatchEvents)
	if err != nil {
		return err
	}
	req, err := toStruct(api.WatchRequest{Prefix: prefix})
	if err != nil {
		return err
	}
	if err := stream.SendMsg(req); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var evt api.Event
		if err := fromStruct(msg, &evt); err != nil {
			return err
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
}

func (c *Client) call(ctx context.Context, method string, in, out any) error {
	req := &structpb.Struct{}
	if in != nil {
		var err error
		if req, err = toStruct(in); err != nil {
			return err
		}
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+api.ServiceName+"/"+method, req, resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return fromStruct(resp, out)
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
