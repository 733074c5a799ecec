package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
)

const (
	ServiceName     = "hubfreelance.realtime.v1.Realtime"
	SubscribeMethod = "/" + ServiceName + "/SubscribeMessages"
)

// RealtimeServer is the server API of the realtime service.
type RealtimeServer interface {
	// SubscribeMessages streams every message inserted with the caller as
	// receiver until the client goes away.
	SubscribeMessages(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

func subscribeMessagesHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(RealtimeServer).SubscribeMessages(m, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// ServiceDesc describes the realtime service. It is written out by hand;
// the wire types are protobuf well-known types, so no generated code is
// needed.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RealtimeServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SubscribeMessages",
			Handler:       subscribeMessagesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "hubfreelance/realtime/v1/realtime.proto",
}

// RegisterRealtimeServer registers srv on s.
func RegisterRealtimeServer(s grpc.ServiceRegistrar, srv RealtimeServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// SubscribeMessages opens the message stream on cc. Authentication travels
// in the call context metadata.
func SubscribeMessages(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], SubscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	// io.EOF means the server already ended the stream; Recv reports why.
	if err := x.ClientStream.SendMsg(&emptypb.Empty{}); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// ToStruct encodes msg for the stream.
func ToStruct(msg data.Message) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"id":         msg.ID,
		"senderId":   msg.SenderID,
		"receiverId": msg.ReceiverID,
		"content":    msg.Content,
		"createdAt":  msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		"read":       msg.Read,
		"jobId":      nil,
	}
	if msg.JobID != nil {
		fields["jobId"] = *msg.JobID
	}
	return structpb.NewStruct(fields)
}

// FromStruct decodes a stream payload produced by ToStruct.
func FromStruct(s *structpb.Struct) (data.Message, error) {
	f := s.GetFields()
	msg := data.Message{
		ID:         int64(f["id"].GetNumberValue()),
		SenderID:   int64(f["senderId"].GetNumberValue()),
		ReceiverID: int64(f["receiverId"].GetNumberValue()),
		Content:    f["content"].GetStringValue(),
		Read:       f["read"].GetBoolValue(),
	}
	if msg.ID == 0 || msg.SenderID == 0 || msg.ReceiverID == 0 {
		return data.Message{}, fmt.Errorf("incomplete message event: %v", s.AsMap())
	}
	if v, ok := f["jobId"]; ok {
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); !isNull {
			id := int64(v.GetNumberValue())
			msg.JobID = &id
		}
	}
	if ts := f["createdAt"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return data.Message{}, fmt.Errorf("bad createdAt %q: %w", ts, err)
		}
		msg.CreatedAt = t
	}
	return msg, nil
}
