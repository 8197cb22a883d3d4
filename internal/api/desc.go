package api

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the control service.
const ServiceName = "hangouts.v1.Control"

const (
	MethodGetStatus    = "GetStatus"
	MethodListHangouts = "ListHangouts"
	MethodListMessages = "ListMessages"
	MethodListUnread   = "ListUnread"
	MethodListOffline  = "ListOffline"
	MethodSubmit       = "Submit"
	MethodSelect       = "Select"
	MethodSearch       = "Search"
	MethodSetText      = "SetText"
	StreamWatchEvents  = "WatchEvents"
)

// controlServer is the handler type checked by grpc.Server.RegisterService.
type controlServer interface {
	WatchEvents(req *structpb.Struct, stream grpc.ServerStream) error
}

type unaryCall func(c *Control, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// ServiceDesc describes the control service. Requests and responses are
// google.protobuf.Struct values carried by the default proto codec.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*controlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodGetStatus, (*Control).GetStatus),
		unary(MethodListHangouts, (*Control).ListHangouts),
		unary(MethodListMessages, (*Control).ListMessages),
		unary(MethodListUnread, (*Control).ListUnread),
		unary(MethodListOffline, (*Control).ListOffline),
		unary(MethodSubmit, (*Control).Submit),
		unary(MethodSelect, (*Control).Select),
		unary(MethodSearch, (*Control).Search),
		unary(MethodSetText, (*Control).SetText),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    StreamWatchEvents,
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				req := new(structpb.Struct)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(controlServer).WatchEvents(req, stream)
			},
		},
	},
	Metadata: "hangouts/v1/control.proto",
}

// Register adds the control service to s.
func Register(s *grpc.Server, c *Control) {
	s.RegisterService(&ServiceDesc, c)
}

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(structpb.Struct)
			if err := dec(req); err != nil {
				return nil, err
			}
			c := srv.(*Control)
			if interceptor == nil {
				return call(c, ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
				return call(c, ctx, req.(*structpb.Struct))
			})
		},
	}
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// encode converts any JSON-marshalable value into a Struct.
func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return out, nil
}

// decode fills v from a Struct.
func decode(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
