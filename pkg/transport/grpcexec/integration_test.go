package grpcexec

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/planexec/planexec/pkg/exec"
)

type fakeBackend struct {
	mu       sync.Mutex
	commands []exec.Command
}

func (b *fakeBackend) ExecuteCommand(_ context.Context, cmd exec.Command) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, cmd)
	return nil
}
func (b *fakeBackend) ReportCommandArbitrationFailure(context.Context, exec.Command) error { return nil }
func (b *fakeBackend) InvokeAbort(context.Context, exec.Command) error                     { return nil }
func (b *fakeBackend) ExecuteUpdate(context.Context, exec.Update) error                     { return nil }
func (b *fakeBackend) ExecuteAssignment(context.Context, string, exec.Value) error          { return nil }
func (b *fakeBackend) RetractAssignment(context.Context, string) error                      { return nil }

type fakeSink struct {
	mu      sync.Mutex
	returns map[string]exec.Value
	done    chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{returns: make(map[string]exec.Value), done: make(chan struct{})}
}

func (s *fakeSink) CommandHandleReturn(string, exec.CommandHandleStatus) {}
func (s *fakeSink) CommandReturn(nodeID string, value exec.Value) {
	s.mu.Lock()
	s.returns[nodeID] = value
	s.mu.Unlock()
	close(s.done)
}
func (s *fakeSink) CommandAbortAcknowledge(string, bool) {}

func dialer(lis *bufconn.Listener) func(context.Context, string) (net.Conn, error) {
	return func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}
}

func TestClientServer_ExecuteCommandReachesBackend(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)
	backend := &fakeBackend{}
	srv := grpc.NewServer()
	RegisterExternalExecServer(srv, NewServer(backend, zerolog.Nop()))
	go srv.Serve(lis)
	defer srv.Stop()

	sink := newFakeSink()
	ctx := context.Background()
	client, err := NewClient(ctx, "bufnet", sink, zerolog.Nop(),
		grpc.WithContextDialer(dialer(lis)),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	cmd := exec.Command{ID: "c1", NodeID: "n1", Name: "drill", Args: []exec.Value{exec.IntValue(3)}}
	if err := client.ExecuteCommand(ctx, cmd); err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		backend.mu.Lock()
		n := len(backend.commands)
		backend.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for backend to receive command")
		}
		time.Sleep(5 * time.Millisecond)
	}

	backend.mu.Lock()
	got := backend.commands[0]
	backend.mu.Unlock()
	if got.Name != "drill" || got.NodeID != "n1" {
		t.Fatalf("unexpected command delivered to backend: %+v", got)
	}
}

func TestClientServer_CommandReturnReachesSink(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)
	backend := &fakeBackend{}
	server := NewServer(backend, zerolog.Nop())
	srv := grpc.NewServer()
	RegisterExternalExecServer(srv, server)
	go srv.Serve(lis)
	defer srv.Stop()

	sink := newFakeSink()
	ctx := context.Background()
	client, err := NewClient(ctx, "bufnet", sink, zerolog.Nop(),
		grpc.WithContextDialer(dialer(lis)),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if err := client.ExecuteCommand(ctx, exec.Command{ID: "c1", NodeID: "n1", Name: "drill"}); err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(backend.commandsSnapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for backend dispatch")
		}
		time.Sleep(5 * time.Millisecond)
	}

	server.CommandReturn("n1", exec.IntValue(9))

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sink callback")
	}

	sink.mu.Lock()
	v, ok := sink.returns["n1"]
	sink.mu.Unlock()
	if !ok {
		t.Fatal("expected a return value for n1")
	}
	if i, _ := v.Int(); i != 9 {
		t.Fatalf("expected 9, got %v", v)
	}
}

func (b *fakeBackend) commandsSnapshot() []exec.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]exec.Command, len(b.commands))
	copy(out, b.commands)
	return out
}
