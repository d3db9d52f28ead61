package sshexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/planexec/planexec/pkg/exec"
)

// CallbackSink receives the asynchronous results of a remote command once
// its SSH session completes. *exec.Executive satisfies this interface
// structurally, as does grpcexec.Server when this Client is the backend
// fronted by a gRPC server.
type CallbackSink interface {
	CommandHandleReturn(nodeID string, status exec.CommandHandleStatus)
	CommandReturn(nodeID string, value exec.Value)
	CommandAbortAcknowledge(nodeID string, ok bool)
}

// Client implements exec.ExternalInterface over a single SSH connection:
// ExecuteCommand runs the command node's name as a remote shell
// invocation (adapted from the teacher's executor.go), and a result value
// is retrieved over SFTP from a per-node result file the remote command
// is expected to have written on success (adapted from file_transfer.go's
// upload/download pattern, used here for small JSON payloads instead of
// files). ExecuteUpdate/ExecuteAssignment/RetractAssignment likewise use
// SFTP to publish plan state the remote side can read.
type Client struct {
	config *Config
	sink   CallbackSink
	logger zerolog.Logger

	connMu sync.RWMutex
	conn   *ssh.Client

	sessMu   sync.Mutex
	sessions map[string]*ssh.Session
}

func NewClient(config *Config, sink CallbackSink, logger zerolog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config:   config,
		sink:     sink,
		logger:   logger.With().Str("component", "sshexec.client").Logger(),
		sessions: make(map[string]*ssh.Session),
	}, nil
}

// Connect establishes the underlying SSH connection.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	clientConfig, err := c.config.BuildSSHClientConfig()
	if err != nil {
		return &TransportError{Op: "connect", Err: err, IsAuthError: true}
	}

	type result struct {
		client *ssh.Client
		err    error
	}
	done := make(chan result, 1)
	go func() {
		client, err := ssh.Dial("tcp", c.config.Address(), clientConfig)
		done <- result{client, err}
	}()

	select {
	case <-ctx.Done():
		return &TransportError{Op: "connect", Err: ctx.Err(), IsTemporary: true}
	case r := <-done:
		if r.err != nil {
			return &TransportError{Op: "connect", Err: r.err, IsTemporary: true}
		}
		c.conn = r.client
		c.logger.Info().Str("address", c.config.Address()).Msg("ssh connection established")
		return nil
	}
}

func (c *Client) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil
}

func (c *Client) getConn() (*ssh.Client, error) {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	if c.conn == nil {
		return nil, &TransportError{Op: "get-conn", Err: fmt.Errorf("not connected")}
	}
	return c.conn, nil
}

// ExecuteCommand runs cmd as a remote shell command in the background and
// reports the outcome through the sink once it completes; it never blocks
// the caller on the remote command finishing.
func (c *Client) ExecuteCommand(ctx context.Context, cmd exec.Command) error {
	conn, err := c.getConn()
	if err != nil {
		c.sink.CommandHandleReturn(cmd.NodeID, exec.CommandInterfaceError)
		return err
	}

	session, err := conn.NewSession()
	if err != nil {
		c.sink.CommandHandleReturn(cmd.NodeID, exec.CommandInterfaceError)
		return &TransportError{Op: "execute", Err: err, IsTemporary: true}
	}

	c.sessMu.Lock()
	c.sessions[cmd.NodeID] = session
	c.sessMu.Unlock()

	c.sink.CommandHandleReturn(cmd.NodeID, exec.CommandSentToSystem)

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	go c.runSession(ctx, cmd, session, &stdout, &stderr)
	return nil
}

func (c *Client) runSession(ctx context.Context, cmd exec.Command, session *ssh.Session, stdout, stderr *bytes.Buffer) {
	defer func() {
		c.sessMu.Lock()
		delete(c.sessions, cmd.NodeID)
		c.sessMu.Unlock()
		session.Close()
	}()

	c.sink.CommandHandleReturn(cmd.NodeID, exec.CommandReceivedBySystem)

	remoteCmd := remoteCommandLine(cmd)
	done := make(chan error, 1)
	go func() { done <- session.Run(remoteCmd) }()

	var runErr error
	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		time.Sleep(100 * time.Millisecond)
		_ = session.Signal(ssh.SIGKILL)
		runErr = ctx.Err()
	case runErr = <-done:
	}

	if runErr != nil {
		c.logger.Debug().Err(runErr).Str("node_id", cmd.NodeID).Str("stderr", strings.TrimSpace(stderr.String())).Msg("remote command failed")
		c.sink.CommandHandleReturn(cmd.NodeID, exec.CommandFailed)
		return
	}

	if value, ok := c.fetchResult(context.Background(), cmd.NodeID); ok {
		c.sink.CommandReturn(cmd.NodeID, value)
	}
	c.sink.CommandHandleReturn(cmd.NodeID, exec.CommandSuccess)
}

func remoteCommandLine(cmd exec.Command) string {
	parts := make([]string, 0, len(cmd.Args)+1)
	parts = append(parts, cmd.Name)
	for _, a := range cmd.Args {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, " ")
}

func (c *Client) ReportCommandArbitrationFailure(_ context.Context, cmd exec.Command) error {
	c.sink.CommandHandleReturn(cmd.NodeID, exec.CommandDenied)
	return nil
}

// InvokeAbort signals the remote session running cmd's node, if still
// active, the way the teacher's context-cancellation path in executor.go
// does (SIGTERM, then SIGKILL after a short grace period).
func (c *Client) InvokeAbort(_ context.Context, cmd exec.Command) error {
	c.sessMu.Lock()
	session, ok := c.sessions[cmd.NodeID]
	c.sessMu.Unlock()

	if !ok {
		c.sink.CommandAbortAcknowledge(cmd.NodeID, true)
		return nil
	}

	_ = session.Signal(ssh.SIGTERM)
	time.Sleep(100 * time.Millisecond)
	_ = session.Signal(ssh.SIGKILL)
	c.sink.CommandAbortAcknowledge(cmd.NodeID, true)
	return nil
}

// ExecuteUpdate publishes upd's key/value pairs to a per-node JSON file
// over SFTP for the remote side to consume.
func (c *Client) ExecuteUpdate(ctx context.Context, upd exec.Update) error {
	payload := make(map[string]exec.Value, len(upd.Pairs))
	for _, p := range upd.Pairs {
		payload[p.Key] = p.Value
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sshexec: marshal update: %w", err)
	}
	return c.uploadBytes(ctx, c.remoteUpdatePath(upd.NodeID), data)
}

// ExecuteAssignment publishes a single variable assignment to the remote
// state directory over SFTP.
func (c *Client) ExecuteAssignment(ctx context.Context, dest string, value exec.Value) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sshexec: marshal assignment: %w", err)
	}
	return c.uploadBytes(ctx, c.remoteAssignmentPath(dest), data)
}

// RetractAssignment removes dest's published assignment file.
func (c *Client) RetractAssignment(ctx context.Context, dest string) error {
	sftpClient, err := c.newSFTPClient()
	if err != nil {
		return err
	}
	defer sftpClient.Close()

	if err := sftpClient.Remove(c.remoteAssignmentPath(dest)); err != nil {
		if strings.Contains(err.Error(), "not exist") {
			return nil
		}
		return &TransportError{Op: "retract", Err: err, IsTemporary: true}
	}
	return nil
}

func (c *Client) remoteStateDir() string {
	if c.config.RemoteStateDir != "" {
		return c.config.RemoteStateDir
	}
	return "/tmp/planexec"
}

func (c *Client) remoteResultPath(nodeID string) string {
	return path.Join(c.remoteStateDir(), "results", nodeID+".json")
}

func (c *Client) remoteUpdatePath(nodeID string) string {
	return path.Join(c.remoteStateDir(), "updates", nodeID+".json")
}

func (c *Client) remoteAssignmentPath(dest string) string {
	return path.Join(c.remoteStateDir(), "assignments", dest+".json")
}

func (c *Client) newSFTPClient() (*sftp.Client, error) {
	conn, err := c.getConn()
	if err != nil {
		return nil, err
	}
	sftpClient, err := sftp.NewClient(conn)
	if err != nil {
		return nil, &TransportError{Op: "sftp-init", Err: err, IsTemporary: true}
	}
	return sftpClient, nil
}

func (c *Client) uploadBytes(_ context.Context, remotePath string, data []byte) error {
	sftpClient, err := c.newSFTPClient()
	if err != nil {
		return err
	}
	defer sftpClient.Close()

	if err := sftpClient.MkdirAll(path.Dir(remotePath)); err != nil {
		return &TransportError{Op: "upload", Err: fmt.Errorf("create remote directory: %w", err)}
	}
	remoteFile, err := sftpClient.Create(remotePath)
	if err != nil {
		return &TransportError{Op: "upload", Err: err, IsTemporary: true}
	}
	defer remoteFile.Close()

	if _, err := remoteFile.Write(data); err != nil {
		return &TransportError{Op: "upload", Err: err, IsTemporary: true}
	}
	return nil
}

// fetchResult reads and deletes a command's result file, if present; a
// missing file is not an error, just a command with no return value.
func (c *Client) fetchResult(ctx context.Context, nodeID string) (exec.Value, bool) {
	sftpClient, err := c.newSFTPClient()
	if err != nil {
		return exec.Unknown(), false
	}
	defer sftpClient.Close()

	remotePath := c.remoteResultPath(nodeID)
	remoteFile, err := sftpClient.Open(remotePath)
	if err != nil {
		return exec.Unknown(), false
	}
	defer remoteFile.Close()

	data, err := io.ReadAll(remoteFile)
	if err != nil {
		c.logger.Warn().Err(err).Str("node_id", nodeID).Msg("failed to read command result file")
		return exec.Unknown(), false
	}

	var value exec.Value
	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.Warn().Err(err).Str("node_id", nodeID).Msg("malformed command result file")
		return exec.Unknown(), false
	}

	_ = sftpClient.Remove(remotePath)
	return value, true
}

var _ exec.ExternalInterface = (*Client)(nil)
