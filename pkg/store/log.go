package store

import (
	"context"
	"fmt"
	"time"

	"github.com/planexec/planexec/pkg/exec"
)

// StepLogger is an exec.Listener that persists every node transition to
// step_log, grounded on the teacher's append-only event log but shaped
// around the executive's macro-step/cycle vocabulary instead of run/event.
type StepLogger struct {
	store *Store
	cycle uint64
}

// NewStepLogger wraps an already-migrated Store as an exec.Listener.
func NewStepLogger(s *Store) *StepLogger {
	return &StepLogger{store: s}
}

// NotifyTransitions persists one row per transition in the batch.
func (l *StepLogger) NotifyTransitions(batch []exec.NodeTransition) {
	now := time.Now().UTC()
	for _, t := range batch {
		_, err := l.store.db.Exec(`
			INSERT INTO step_log (cycle, node_id, old_state, new_state, at)
			VALUES (?, ?, ?, ?, ?)
		`, l.cycle, t.Node.ID, t.OldState.String(), t.NewState.String(), now)
		if err != nil {
			// A logging failure must not break the quiescence loop; the
			// executive has no use for a log-write error.
			continue
		}
	}
}

// StepComplete records the cycle number transitions in the next batch will
// be attributed to.
func (l *StepLogger) StepComplete(cycle uint64) {
	l.cycle = cycle
}

// RecordCommandDispatched appends a command_log row when a command is sent
// to the external interface.
func (l *StepLogger) RecordCommandDispatched(ctx context.Context, cmd exec.Command) error {
	argsStr, _ := argsKey(cmd.Name, cmd.Args)
	_, err := l.store.db.ExecContext(ctx, `
		INSERT INTO command_log (command_id, node_id, name, args, handle_status, dispatched_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cmd.ID, cmd.NodeID, cmd.Name, argsStr, exec.CommandSentToSystem.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: record command dispatch %s: %w", cmd.ID, err)
	}
	return nil
}

// RecordCommandResolved updates a command_log row with its final handle
// status once the external interface reports one back.
func (l *StepLogger) RecordCommandResolved(ctx context.Context, commandID string, status exec.CommandHandleStatus) error {
	_, err := l.store.db.ExecContext(ctx, `
		UPDATE command_log SET handle_status = ?, resolved_at = ? WHERE command_id = ?
	`, status.String(), time.Now().UTC(), commandID)
	if err != nil {
		return fmt.Errorf("store: resolve command %s: %w", commandID, err)
	}
	return nil
}
