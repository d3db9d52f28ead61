package grpcexec

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName and the Dispatch stream's full method name, hand-authored in
// place of a protoc-generated *_grpc.pb.go — see pkg/transport/grpcexec's
// doc comment for why there is no .proto here.
const (
	serviceName        = "planexec.ExternalExec"
	dispatchMethodName = "/planexec.ExternalExec/Dispatch"
)

// ServiceDesc is the hand-built equivalent of a protoc-generated
// grpc.ServiceDesc: one bidirectional-streaming method, Dispatch, through
// which the executive (client) sends DispatchRequests and the external
// system (server) sends DispatchCallbacks.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ExternalExecServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Dispatch",
			Handler:       dispatchHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "pkg/transport/grpcexec/service.go",
}

// ExternalExecServer is implemented by the external-system side of the
// channel; Server in server.go is the concrete implementation backing it
// with any exec.ExternalInterface.
type ExternalExecServer interface {
	Dispatch(ExternalExec_DispatchServer) error
}

// ExternalExecClient is implemented by the executive side of the channel;
// Client in client.go is the concrete implementation.
type ExternalExecClient interface {
	Dispatch(ctx context.Context, opts ...grpc.CallOption) (ExternalExec_DispatchClient, error)
}

type ExternalExec_DispatchServer interface {
	Send(*DispatchCallback) error
	Recv() (*DispatchRequest, error)
	grpc.ServerStream
}

type ExternalExec_DispatchClient interface {
	Send(*DispatchRequest) error
	Recv() (*DispatchCallback, error)
	grpc.ClientStream
}

type externalExecDispatchServer struct{ grpc.ServerStream }

func (x *externalExecDispatchServer) Send(m *DispatchCallback) error {
	return x.ServerStream.SendMsg(m)
}

func (x *externalExecDispatchServer) Recv() (*DispatchRequest, error) {
	m := new(DispatchRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func dispatchHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ExternalExecServer).Dispatch(&externalExecDispatchServer{stream})
}

// RegisterExternalExecServer wires srv into s under ServiceDesc, the way
// a generated pb.go's RegisterXServer function would.
func RegisterExternalExecServer(s grpc.ServiceRegistrar, srv ExternalExecServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type externalExecClient struct {
	cc grpc.ClientConnInterface
}

// NewExternalExecClient wraps cc, the way a generated pb.go's
// NewXClient function would.
func NewExternalExecClient(cc grpc.ClientConnInterface) ExternalExecClient {
	return &externalExecClient{cc: cc}
}

func (c *externalExecClient) Dispatch(ctx context.Context, opts ...grpc.CallOption) (ExternalExec_DispatchClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], dispatchMethodName, opts...)
	if err != nil {
		return nil, err
	}
	return &externalExecDispatchClient{stream}, nil
}

type externalExecDispatchClient struct{ grpc.ClientStream }

func (x *externalExecDispatchClient) Send(m *DispatchRequest) error {
	return x.ClientStream.SendMsg(m)
}

func (x *externalExecDispatchClient) Recv() (*DispatchCallback, error) {
	m := new(DispatchCallback)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
