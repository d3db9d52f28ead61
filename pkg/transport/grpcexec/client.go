package grpcexec

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/planexec/planexec/pkg/exec"
)

// CallbackSink receives the asynchronous results the external system
// reports back over the Dispatch stream. *exec.Executive satisfies this
// interface structurally (CommandHandleReturn/CommandReturn/
// CommandAbortAcknowledge), so it can be passed directly as the sink.
type CallbackSink interface {
	CommandHandleReturn(nodeID string, status exec.CommandHandleStatus)
	CommandReturn(nodeID string, value exec.Value)
	CommandAbortAcknowledge(nodeID string, ok bool)
}

// Client implements exec.ExternalInterface over a single long-lived
// Dispatch stream: every ExecuteX/InvokeX call sends one DispatchRequest,
// and a background goroutine drains DispatchCallbacks into sink for as
// long as the stream is open.
type Client struct {
	conn   *grpc.ClientConn
	sink   CallbackSink
	logger zerolog.Logger

	mu     sync.Mutex
	stream ExternalExec_DispatchClient
	done   chan struct{}
}

// NewClient dials target and opens the Dispatch stream, spawning the
// callback-drain goroutine. The caller owns ctx's lifetime for the stream;
// cancelling it (or calling Close) ends the drain loop.
func NewClient(ctx context.Context, target string, sink CallbackSink, logger zerolog.Logger, dialOpts ...grpc.DialOption) (*Client, error) {
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpcexec: dial %s: %w", target, err)
	}

	stream, err := NewExternalExecClient(conn).Dispatch(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("grpcexec: open dispatch stream: %w", err)
	}

	c := &Client{
		conn:   conn,
		sink:   sink,
		logger: logger.With().Str("component", "grpcexec.client").Logger(),
		stream: stream,
		done:   make(chan struct{}),
	}
	go c.recvLoop()
	return c, nil
}

func (c *Client) recvLoop() {
	defer close(c.done)
	for {
		cb, err := c.stream.Recv()
		if err != nil {
			c.logger.Debug().Err(err).Msg("dispatch stream closed")
			return
		}
		c.deliver(cb)
	}
}

func (c *Client) deliver(cb *DispatchCallback) {
	switch cb.Kind {
	case callbackCommandHandle:
		if cb.HandleStatus != nil {
			c.sink.CommandHandleReturn(cb.NodeID, *cb.HandleStatus)
		}
	case callbackCommandReturn:
		if cb.ReturnValue != nil {
			c.sink.CommandReturn(cb.NodeID, *cb.ReturnValue)
		}
	case callbackAbortAck:
		c.sink.CommandAbortAcknowledge(cb.NodeID, cb.AbortAcked)
	default:
		c.logger.Warn().Str("kind", string(cb.Kind)).Msg("unrecognized dispatch callback kind")
	}
}

func (c *Client) send(req *DispatchRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.Send(req)
}

func (c *Client) ExecuteCommand(_ context.Context, cmd exec.Command) error {
	return c.send(&DispatchRequest{Kind: requestCommand, Command: &cmd})
}

func (c *Client) ReportCommandArbitrationFailure(_ context.Context, cmd exec.Command) error {
	return c.send(&DispatchRequest{Kind: requestArbitrationFailure, Command: &cmd})
}

func (c *Client) InvokeAbort(_ context.Context, cmd exec.Command) error {
	return c.send(&DispatchRequest{Kind: requestAbort, Command: &cmd})
}

func (c *Client) ExecuteUpdate(_ context.Context, upd exec.Update) error {
	return c.send(&DispatchRequest{Kind: requestUpdate, Update: &upd})
}

func (c *Client) ExecuteAssignment(_ context.Context, dest string, value exec.Value) error {
	return c.send(&DispatchRequest{Kind: requestAssignment, Assignment: &AssignmentPayload{Dest: dest, Value: &value}})
}

func (c *Client) RetractAssignment(_ context.Context, dest string) error {
	return c.send(&DispatchRequest{Kind: requestRetractAssignment, Assignment: &AssignmentPayload{Dest: dest}})
}

// Close ends the Dispatch stream and the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	closeSendErr := c.stream.CloseSend()
	c.mu.Unlock()
	<-c.done
	if err := c.conn.Close(); err != nil {
		return err
	}
	return closeSendErr
}

var _ exec.ExternalInterface = (*Client)(nil)
