package grpcexec

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/planexec/planexec/pkg/exec"
)

// Server adapts any exec.ExternalInterface into an ExternalExecServer: it
// decodes each inbound DispatchRequest into the matching backend call, and
// doubles as a CallbackSink the backend can report asynchronous command
// results through, re-encoding them as DispatchCallbacks on the same
// stream. This lets pkg/transport/sshexec's client run out-of-process,
// fronted by this server, with the executive on the other end of the wire
// as an ordinary Client.
type Server struct {
	backend exec.ExternalInterface
	logger  zerolog.Logger

	mu     sync.Mutex
	stream ExternalExec_DispatchServer
}

func NewServer(backend exec.ExternalInterface, logger zerolog.Logger) *Server {
	return &Server{backend: backend, logger: logger.With().Str("component", "grpcexec.server").Logger()}
}

func (s *Server) Dispatch(stream ExternalExec_DispatchServer) error {
	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()

	ctx := stream.Context()
	for {
		req, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		go s.handle(ctx, req)
	}
}

func (s *Server) handle(ctx context.Context, req *DispatchRequest) {
	var err error
	switch req.Kind {
	case requestCommand:
		err = s.backend.ExecuteCommand(ctx, *req.Command)
	case requestArbitrationFailure:
		err = s.backend.ReportCommandArbitrationFailure(ctx, *req.Command)
	case requestAbort:
		err = s.backend.InvokeAbort(ctx, *req.Command)
	case requestUpdate:
		err = s.backend.ExecuteUpdate(ctx, *req.Update)
	case requestAssignment:
		err = s.backend.ExecuteAssignment(ctx, req.Assignment.Dest, *req.Assignment.Value)
	case requestRetractAssignment:
		err = s.backend.RetractAssignment(ctx, req.Assignment.Dest)
	default:
		s.logger.Warn().Str("kind", string(req.Kind)).Msg("unrecognized dispatch request kind")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("kind", string(req.Kind)).Msg("backend dispatch failed")
	}
}

func (s *Server) CommandHandleReturn(nodeID string, status exec.CommandHandleStatus) {
	s.sendCallback(&DispatchCallback{Kind: callbackCommandHandle, NodeID: nodeID, HandleStatus: &status})
}

func (s *Server) CommandReturn(nodeID string, value exec.Value) {
	s.sendCallback(&DispatchCallback{Kind: callbackCommandReturn, NodeID: nodeID, ReturnValue: &value})
}

func (s *Server) CommandAbortAcknowledge(nodeID string, ok bool) {
	s.sendCallback(&DispatchCallback{Kind: callbackAbortAck, NodeID: nodeID, AbortAcked: ok})
}

func (s *Server) sendCallback(cb *DispatchCallback) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		s.logger.Warn().Str("node_id", cb.NodeID).Msg("no active dispatch stream for callback")
		return
	}
	if err := stream.Send(cb); err != nil {
		s.logger.Error().Err(err).Str("node_id", cb.NodeID).Msg("failed to send dispatch callback")
	}
}

var (
	_ ExternalExecServer = (*Server)(nil)
	_ CallbackSink       = (*Server)(nil)
)
