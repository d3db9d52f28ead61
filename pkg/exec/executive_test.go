package exec

import (
	"context"
	"testing"
)

type fakeInterface struct {
	executed []Command
	aborted  []Command
	updates  []Update
	assigns  map[string]Value
}

func newFakeInterface() *fakeInterface {
	return &fakeInterface{assigns: make(map[string]Value)}
}

func (f *fakeInterface) ExecuteCommand(_ context.Context, cmd Command) error {
	f.executed = append(f.executed, cmd)
	return nil
}
func (f *fakeInterface) ReportCommandArbitrationFailure(_ context.Context, cmd Command) error {
	return nil
}
func (f *fakeInterface) InvokeAbort(_ context.Context, cmd Command) error {
	f.aborted = append(f.aborted, cmd)
	return nil
}
func (f *fakeInterface) ExecuteUpdate(_ context.Context, upd Update) error {
	f.updates = append(f.updates, upd)
	return nil
}
func (f *fakeInterface) ExecuteAssignment(_ context.Context, dest string, v Value) error {
	f.assigns[dest] = v
	return nil
}
func (f *fakeInterface) RetractAssignment(_ context.Context, dest string) error {
	delete(f.assigns, dest)
	return nil
}

func commandNode(id string) *Node {
	return &Node{ID: id, Type: NodeCommand, Command: &CommandSpec{Name: id + ".run"}}
}

// TestSingleCommandLifecycle drives a single Command node from Inactive
// through dispatch, a successful return, and on to Finished.
func TestSingleCommandLifecycle(t *testing.T) {
	iface := newFakeInterface()
	e := NewExecutive(iface, NewArbiter(), NewMutexRegistry())
	n := commandNode("drill")
	if err := e.AddPlan(n); err != nil {
		t.Fatalf("AddPlan: %v", err)
	}

	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if n.State != StateExecuting {
		t.Fatalf("expected node Executing after first step, got %v", n.State)
	}
	if len(iface.executed) != 1 {
		t.Fatalf("expected command dispatched exactly once, got %d", len(iface.executed))
	}

	e.CommandHandleReturn(n.ID, CommandSuccess)
	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if n.State != StateFinished {
		t.Fatalf("expected node Finished, got %v", n.State)
	}
	if n.Outcome != OutcomeSuccess {
		t.Fatalf("expected SUCCESS outcome, got %v", n.Outcome)
	}
}

// TestMutexContentionSerializesCommands verifies two sibling Command
// nodes declaring the same mutex never execute concurrently: the second
// is held in the pending queue until the first releases.
func TestMutexContentionSerializesCommands(t *testing.T) {
	iface := newFakeInterface()
	e := NewExecutive(iface, NewArbiter(), NewMutexRegistry())

	a := commandNode("a")
	a.Command.Mutexes = []string{"drill"}
	b := commandNode("b")
	b.Command.Mutexes = []string{"drill"}
	root := &Node{ID: "root", Type: NodeList, Children: []*Node{a, b}}
	a.Parent, b.Parent = root, root

	if err := e.AddPlan(root); err != nil {
		t.Fatalf("AddPlan: %v", err)
	}
	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	executingCount := 0
	for _, n := range []*Node{a, b} {
		if n.State == StateExecuting {
			executingCount++
		}
	}
	if executingCount != 1 {
		t.Fatalf("expected exactly one of the two mutex-sharing commands executing, got %d", executingCount)
	}

	var first, second *Node
	if a.State == StateExecuting {
		first, second = a, b
	} else {
		first, second = b, a
	}
	if second.QueueStatus != QueuePending {
		t.Fatalf("expected the non-executing sibling to be parked pending, got %v", second.QueueStatus)
	}

	e.CommandHandleReturn(first.ID, CommandSuccess)
	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if second.State != StateExecuting {
		t.Fatalf("expected second command to begin executing once the mutex was released, got %v", second.State)
	}
}

// TestResourceArbitrationRejectsLowerPriority checks that when two
// Command nodes become eligible to execute in the same step and their
// combined resource request would exceed the resource's maximum, the
// lower-priority one is denied: it is not dispatched and ends its
// iteration in that same step with outcome FAILURE / DENIED.
func TestResourceArbitrationRejectsLowerPriority(t *testing.T) {
	iface := newFakeInterface()
	arbiter := NewArbiter()
	e := NewExecutive(iface, arbiter, NewMutexRegistry())

	high := commandNode("high")
	high.Command.Resources = []ResourceValue{{Name: "battery", Priority: 0, UpperBound: 0.7}}
	low := commandNode("low")
	low.Command.Resources = []ResourceValue{{Name: "battery", Priority: 1, UpperBound: 0.6}}
	root := &Node{ID: "root", Type: NodeList, Children: []*Node{high, low}}
	high.Parent, low.Parent = root, root

	if err := e.AddPlan(root); err != nil {
		t.Fatalf("AddPlan: %v", err)
	}
	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if high.State != StateExecuting {
		t.Fatalf("expected higher-priority command to execute, got %v", high.State)
	}
	if low.State == StateExecuting {
		t.Fatalf("expected lower-priority command to be denied the shared resource")
	}
	if low.State != StateIterationEnded {
		t.Fatalf("expected denied command to end its iteration in the same step, got %v", low.State)
	}
	if low.Outcome != OutcomeFailure {
		t.Fatalf("expected denied command outcome FAILURE, got %v", low.Outcome)
	}
	if low.FailureType != FailureDenied {
		t.Fatalf("expected denied command failure type DENIED, got %v", low.FailureType)
	}
	if len(iface.executed) != 1 {
		t.Fatalf("expected only the accepted command to be dispatched, got %d", len(iface.executed))
	}
}

// TestPreConditionFailureSkipsExecution checks that a node whose Start
// condition is true but whose Pre condition is false never reaches
// Executing: it ends its iteration immediately with outcome FAILURE,
// failure type PRE_CONDITION_FAILED.
func TestPreConditionFailureSkipsExecution(t *testing.T) {
	iface := newFakeInterface()
	e := NewExecutive(iface, NewArbiter(), NewMutexRegistry())

	n := commandNode("drill")
	n.Conditions[CondPre] = NewVariable("drill.pre", BoolValue(false))

	if err := e.AddPlan(n); err != nil {
		t.Fatalf("AddPlan: %v", err)
	}
	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if n.State != StateFinished {
		t.Fatalf("expected node Finished without ever executing, got %v", n.State)
	}
	if n.Outcome != OutcomeFailure {
		t.Fatalf("expected FAILURE outcome, got %v", n.Outcome)
	}
	if n.FailureType != FailurePreConditionFailed {
		t.Fatalf("expected PRE_CONDITION_FAILED failure type, got %v", n.FailureType)
	}
	if len(iface.executed) != 0 {
		t.Fatalf("expected command never dispatched, got %d", len(iface.executed))
	}
}

// TestSkipConditionRecordsSkippedOutcome checks that a node whose Skip
// condition is true reaches Finished with outcome SKIPPED, without ever
// dispatching.
func TestSkipConditionRecordsSkippedOutcome(t *testing.T) {
	iface := newFakeInterface()
	e := NewExecutive(iface, NewArbiter(), NewMutexRegistry())

	n := commandNode("drill")
	n.Conditions[CondSkip] = NewVariable("drill.skip", BoolValue(true))

	if err := e.AddPlan(n); err != nil {
		t.Fatalf("AddPlan: %v", err)
	}
	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if n.State != StateFinished {
		t.Fatalf("expected node Finished without ever executing, got %v", n.State)
	}
	if n.Outcome != OutcomeSkipped {
		t.Fatalf("expected SKIPPED outcome, got %v", n.Outcome)
	}
	if len(iface.executed) != 0 {
		t.Fatalf("expected command never dispatched, got %d", len(iface.executed))
	}
}

// TestExitConditionDuringWaitingEndsIteration checks that a node whose
// Exit condition is already true while still Waiting never starts its
// body: it ends its iteration interrupted, failure type EXITED, rather
// than being dispatched and only then interrupted.
func TestExitConditionDuringWaitingEndsIteration(t *testing.T) {
	iface := newFakeInterface()
	e := NewExecutive(iface, NewArbiter(), NewMutexRegistry())

	n := commandNode("drill")
	n.Conditions[CondStart] = NewVariable("drill.start", BoolValue(false))
	n.Conditions[CondExit] = NewVariable("drill.exit", BoolValue(true))

	if err := e.AddPlan(n); err != nil {
		t.Fatalf("AddPlan: %v", err)
	}
	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if n.State != StateFinished {
		t.Fatalf("expected node Finished without ever executing, got %v", n.State)
	}
	if n.Outcome != OutcomeInterrupted {
		t.Fatalf("expected INTERRUPTED outcome, got %v", n.Outcome)
	}
	if n.FailureType != FailureExited {
		t.Fatalf("expected EXITED failure type, got %v", n.FailureType)
	}
	if len(iface.executed) != 0 {
		t.Fatalf("expected command never dispatched, got %d", len(iface.executed))
	}
}

// TestListSequencing checks that a second child with a Start condition
// gated on its sibling's completion only begins once that sibling
// finishes.
func TestListSequencing(t *testing.T) {
	iface := newFakeInterface()
	e := NewExecutive(iface, NewArbiter(), NewMutexRegistry())

	first := commandNode("first")
	second := commandNode("second")
	firstFinished := NewVariable("first.finished", BoolValue(false))
	second.Conditions[CondStart] = firstFinished
	root := &Node{ID: "root", Type: NodeList, Children: []*Node{first, second}}
	first.Parent, second.Parent = root, root

	if err := e.AddPlan(root); err != nil {
		t.Fatalf("AddPlan: %v", err)
	}
	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if second.State == StateExecuting {
		t.Fatalf("expected second child to wait for its start condition")
	}

	e.CommandHandleReturn(first.ID, CommandSuccess)
	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	firstFinished.Assign(BoolValue(true))
	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if second.State != StateExecuting {
		t.Fatalf("expected second child to begin once its start condition became true, got %v", second.State)
	}
}
