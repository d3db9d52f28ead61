package sshexec

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/planexec/planexec/pkg/exec"
)

func TestNewClient_RejectsInvalidConfig(t *testing.T) {
	_, err := NewClient(&Config{}, nil, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestRemoteCommandLine_JoinsArgs(t *testing.T) {
	cmd := exec.Command{Name: "drill", Args: []exec.Value{exec.StringValue("rig-07"), exec.IntValue(3)}}
	got := remoteCommandLine(cmd)
	want := "drill rig-07 3"
	if got != want {
		t.Fatalf("remoteCommandLine() = %q, want %q", got, want)
	}
}

func TestRemoteCommandLine_NoArgs(t *testing.T) {
	cmd := exec.Command{Name: "status"}
	if got := remoteCommandLine(cmd); got != "status" {
		t.Fatalf("remoteCommandLine() = %q", got)
	}
}

func TestClient_RemotePaths(t *testing.T) {
	c := &Client{config: &Config{RemoteStateDir: "/srv/planexec"}}
	if got := c.remoteResultPath("n1"); got != "/srv/planexec/results/n1.json" {
		t.Fatalf("remoteResultPath() = %q", got)
	}
	if got := c.remoteUpdatePath("n1"); got != "/srv/planexec/updates/n1.json" {
		t.Fatalf("remoteUpdatePath() = %q", got)
	}
	if got := c.remoteAssignmentPath("speed"); got != "/srv/planexec/assignments/speed.json" {
		t.Fatalf("remoteAssignmentPath() = %q", got)
	}
}

func TestClient_RemoteStateDir_Default(t *testing.T) {
	c := &Client{config: &Config{}}
	if got := c.remoteStateDir(); got != "/tmp/planexec" {
		t.Fatalf("remoteStateDir() = %q", got)
	}
}

func TestClient_ExecuteCommand_NotConnected(t *testing.T) {
	sink := &recordingSink{}
	c := &Client{config: validConfig(), sink: sink, logger: zerolog.Nop(), sessions: make(map[string]*ssh.Session)}

	err := c.ExecuteCommand(context.Background(), exec.Command{NodeID: "n1", Name: "drill"})
	if err == nil {
		t.Fatal("expected error when not connected")
	}
	if len(sink.handleStatuses) != 1 || sink.handleStatuses[0] != exec.CommandInterfaceError {
		t.Fatalf("expected a single CommandInterfaceError report, got %v", sink.handleStatuses)
	}
}

func TestClient_ReportCommandArbitrationFailure(t *testing.T) {
	sink := &recordingSink{}
	c := &Client{config: validConfig(), sink: sink, logger: zerolog.Nop(), sessions: make(map[string]*ssh.Session)}

	if err := c.ReportCommandArbitrationFailure(context.Background(), exec.Command{NodeID: "n1"}); err != nil {
		t.Fatalf("ReportCommandArbitrationFailure: %v", err)
	}
	if len(sink.handleStatuses) != 1 || sink.handleStatuses[0] != exec.CommandDenied {
		t.Fatalf("expected a single CommandDenied report, got %v", sink.handleStatuses)
	}
}

func TestClient_InvokeAbort_NoRunningSession(t *testing.T) {
	sink := &recordingSink{}
	c := &Client{config: validConfig(), sink: sink, logger: zerolog.Nop(), sessions: make(map[string]*ssh.Session)}

	if err := c.InvokeAbort(context.Background(), exec.Command{NodeID: "n1"}); err != nil {
		t.Fatalf("InvokeAbort: %v", err)
	}
	if !sink.aborted["n1"] {
		t.Fatal("expected an abort acknowledgement for n1")
	}
}

type recordingSink struct {
	handleStatuses []exec.CommandHandleStatus
	aborted        map[string]bool
}

func (r *recordingSink) CommandHandleReturn(_ string, status exec.CommandHandleStatus) {
	r.handleStatuses = append(r.handleStatuses, status)
}
func (r *recordingSink) CommandReturn(string, exec.Value) {}
func (r *recordingSink) CommandAbortAcknowledge(nodeID string, ok bool) {
	if r.aborted == nil {
		r.aborted = make(map[string]bool)
	}
	r.aborted[nodeID] = ok
}
