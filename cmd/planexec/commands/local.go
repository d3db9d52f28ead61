package commands

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/planexec/planexec/pkg/exec"
)

// callbackSink is the narrow shape grpcexec.Client/sshexec.Client also
// define independently: the three ways an asynchronous result reaches back
// into the executive. *exec.Executive satisfies it structurally.
type callbackSink interface {
	CommandHandleReturn(nodeID string, status exec.CommandHandleStatus)
	CommandReturn(nodeID string, value exec.Value)
	CommandAbortAcknowledge(nodeID string, ok bool)
}

// localInterface is the default exec.ExternalInterface for `planexec run`
// when no --transport is configured: it acknowledges every dispatched
// command as sent, received and successful without involving any real
// external system, so a plan can be driven to quiescence and inspected
// without a gRPC or SSH endpoint standing by.
type localInterface struct {
	sink   callbackSink
	logger zerolog.Logger
}

func newLocalInterface(sink callbackSink, logger zerolog.Logger) *localInterface {
	return &localInterface{sink: sink, logger: logger}
}

func (l *localInterface) ExecuteCommand(ctx context.Context, cmd exec.Command) error {
	l.logger.Info().Str("node_id", cmd.NodeID).Str("command", cmd.Name).Msg("local: executing command")
	l.sink.CommandHandleReturn(cmd.NodeID, exec.CommandSentToSystem)
	l.sink.CommandHandleReturn(cmd.NodeID, exec.CommandReceivedBySystem)
	l.sink.CommandReturn(cmd.NodeID, exec.Unknown())
	l.sink.CommandHandleReturn(cmd.NodeID, exec.CommandSuccess)
	return nil
}

func (l *localInterface) ReportCommandArbitrationFailure(ctx context.Context, cmd exec.Command) error {
	l.logger.Warn().Str("node_id", cmd.NodeID).Msg("local: command denied by arbiter")
	l.sink.CommandHandleReturn(cmd.NodeID, exec.CommandDenied)
	return nil
}

func (l *localInterface) InvokeAbort(ctx context.Context, cmd exec.Command) error {
	l.logger.Info().Str("node_id", cmd.NodeID).Msg("local: aborting command")
	l.sink.CommandAbortAcknowledge(cmd.NodeID, true)
	return nil
}

func (l *localInterface) ExecuteUpdate(ctx context.Context, upd exec.Update) error {
	l.logger.Info().Str("node_id", upd.NodeID).Int("pairs", len(upd.Pairs)).Msg("local: executing update")
	return nil
}

func (l *localInterface) ExecuteAssignment(ctx context.Context, dest string, value exec.Value) error {
	l.logger.Info().Str("dest", dest).Str("value", value.String()).Msg("local: executing assignment")
	return nil
}

func (l *localInterface) RetractAssignment(ctx context.Context, dest string) error {
	l.logger.Info().Str("dest", dest).Msg("local: retracting assignment")
	return nil
}

var _ exec.ExternalInterface = (*localInterface)(nil)
