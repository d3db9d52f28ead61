// Package grpcexec implements exec.ExternalInterface over a single
// bidirectional gRPC stream, for driving an out-of-process command
// executor. There is deliberately no .proto file: the wire messages are
// the plain Go structs in messages.go, carrying exec.Value directly via
// its own MarshalJSON/UnmarshalJSON, encoded end to end with the
// jsonCodec registered in codec.go under content-subtype "json" instead
// of protoc's generated binary codec. service.go hand-builds the
// grpc.ServiceDesc and stream wrapper types a protoc-generated *_grpc.pb.go
// would normally provide.
//
// Client (client.go) is the executive side: every exec.ExternalInterface
// call sends one DispatchRequest on the stream, and a background goroutine
// drains DispatchCallbacks into a CallbackSink — typically the
// *exec.Executive itself, whose CommandHandleReturn/CommandReturn/
// CommandAbortAcknowledge methods satisfy CallbackSink structurally.
//
// Server (server.go) is the external-system side: it decodes inbound
// DispatchRequests into calls on a wrapped exec.ExternalInterface backend
// (for instance pkg/transport/sshexec's Client, run in a separate
// process), and re-encodes that backend's asynchronous results as
// DispatchCallbacks — Server also implements CallbackSink for this reason.
//
// # Usage (executive side)
//
//	executive := exec.NewExecutive(nil, arbiter, mutexes)
//	client, err := grpcexec.NewClient(ctx, "executor.internal:7070", executive, logger,
//	    grpc.WithTransportCredentials(insecure.NewCredentials()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//	executive.SetExternalInterface(client)
//
// # Usage (external-system side)
//
//	backend, err := sshexec.NewClient(sshConfig, sink, logger) // sink: a CallbackSink
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := grpc.NewServer()
//	grpcexec.RegisterExternalExecServer(srv, grpcexec.NewServer(backend, logger))
//	srv.Serve(listener)
package grpcexec
