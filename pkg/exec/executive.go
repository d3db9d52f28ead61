package exec

import (
	"context"
	"sync"
)

// Executive drives the quiescence-loop scheduler over a forest of plan
// roots: four internal queues (candidate, pending, transition, finished
// roots) and an outbound dispatch stage for assignments, commands,
// aborts and updates, exactly as described by the component design.
type Executive struct {
	mu sync.Mutex

	roots   []*Node
	byID    map[string]*Node
	libs    map[string]*Node

	candidateQueue  []*Node
	pendingQueue    []*Node
	transitionQueue []*Node
	finishedRoots   []*Node

	outAssign    []*Node
	outRetract   []*Node
	outCommands  []*Node
	outAborts    []*Node
	outUpdates   []*Node

	arbiter  *Arbiter
	mutexes  *MutexRegistry
	iface    ExternalInterface
	listener Listener
	policy   PlanValidator

	cycle uint64
}

// NewExecutive constructs an Executive wired to the given external
// interface, resource arbiter, and mutex registry. A nil listener or
// policy is treated as a no-op.
func NewExecutive(iface ExternalInterface, arbiter *Arbiter, mutexes *MutexRegistry) *Executive {
	return &Executive{
		byID:     make(map[string]*Node),
		libs:     make(map[string]*Node),
		arbiter:  arbiter,
		mutexes:  mutexes,
		iface:    iface,
		listener: NopListener{},
	}
}

// SetListener installs the transition/step listener.
func (e *Executive) SetListener(l Listener) {
	if l == nil {
		l = NopListener{}
	}
	e.listener = l
}

// SetPolicyValidator installs a load-time plan validator.
func (e *Executive) SetPolicyValidator(p PlanValidator) { e.policy = p }

// SetExternalInterface installs the external interface, letting it be
// wired up after construction once it needs the Executive itself (for
// instance as a grpcexec.CallbackSink) to be built first.
func (e *Executive) SetExternalInterface(iface ExternalInterface) { e.iface = iface }

// AddLibrary registers root as a library plan, addressable by id from a
// LibraryCall node's LibraryID, without activating it.
func (e *Executive) AddLibrary(id string, root *Node) error {
	if e.policy != nil {
		if err := e.policy.ValidatePlan(root); err != nil {
			return NewConfigError("library %q rejected by policy", id).WithCause(err)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.libs[id]; exists {
		return NewPlanError("duplicate library id %q", id)
	}
	e.libs[id] = root
	root.walk(func(n *Node) { e.wire(n) })
	return nil
}

// AddPlan accepts root as a new top-level plan, runs it through the
// configured policy validator (if any), and activates it. A rejected
// policy check fails the load without mutating executive state.
func (e *Executive) AddPlan(root *Node) error {
	if e.policy != nil {
		if err := e.policy.ValidatePlan(root); err != nil {
			return NewConfigError("plan %q rejected by policy", root.ID).WithCause(err)
		}
	}
	e.mu.Lock()
	if _, exists := e.byID[root.ID]; exists {
		e.mu.Unlock()
		return NewPlanError("duplicate node id %q", root.ID)
	}
	root.walk(func(n *Node) { e.wire(n) })
	e.roots = append(e.roots, root)
	e.mu.Unlock()

	if err := e.resolveLibraryCalls(root); err != nil {
		return err
	}
	root.activate(e)
	return nil
}

func (e *Executive) wire(n *Node) {
	n.exec = e
	e.byID[n.ID] = n
}

func (e *Executive) resolveLibraryCalls(root *Node) error {
	var err error
	root.walk(func(n *Node) {
		if err != nil || n.Type != NodeLibraryCall {
			return
		}
		lib, ok := e.libs[n.LibraryCall.LibraryID]
		if !ok {
			err = NewPlanError("library call %q references unknown library %q", n.ID, n.LibraryCall.LibraryID)
			return
		}
		n.LibraryCall.resolved = lib
		n.Children = append(n.Children, lib)
		lib.Parent = n
		lib.walk(func(child *Node) { e.wire(child) })
	})
	return err
}

// NotifyCandidate is the thread-safe entry point external callbacks use
// to re-examine a node: command completions, assignment acks, and lookup
// value arrivals all funnel through here. It is safe to call from any
// goroutine, including from within the ExternalInterface's own callback
// handlers, concurrently with Step.
func (e *Executive) NotifyCandidate(n *Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addCandidateLocked(n)
}

func (e *Executive) addCandidateLocked(n *Node) {
	if n.QueueStatus == QueueCandidate {
		return
	}
	n.QueueStatus = QueueCandidate
	e.candidateQueue = append(e.candidateQueue, n)
}

func (e *Executive) enqueueCommand(n *Node) {
	e.outCommands = append(e.outCommands, n)
	n.Command.dispatched = true
}

func (e *Executive) enqueueAbort(n *Node) { e.outAborts = append(e.outAborts, n) }

func (e *Executive) enqueueAssignment(n *Node) { e.outAssign = append(e.outAssign, n) }

func (e *Executive) enqueueRetraction(n *Node) { e.outRetract = append(e.outRetract, n) }

func (e *Executive) enqueueUpdate(n *Node) { e.outUpdates = append(e.outUpdates, n) }

func (e *Executive) publishFinished(n *Node) {
	if n.Parent == nil {
		e.finishedRoots = append(e.finishedRoots, n)
	}
}

// NeedsStep reports whether a call to Step would have any work to do.
func (e *Executive) NeedsStep() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.candidateQueue) > 0
}

// Step runs one macro-step: it drains the candidate queue into
// transitions (routing resource/mutex-gated transitions through the
// pending queue first), applies and publishes each quiescence round's
// transitions, and repeats until either an outbound queue gains work or
// the candidate queue empties — exactly the do/while condition of the
// original executive's step(). Once the inner loop settles it performs
// assignments and flushes the outbound command/abort/update queues.
func (e *Executive) Step(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		for len(e.candidateQueue) > 0 {
			n := e.candidateQueue[0]
			e.candidateQueue = e.candidateQueue[1:]
			dest, changed := n.destination()
			if !changed {
				n.QueueStatus = QueueNone
				continue
			}
			n.NextState = dest
			if e.resourceCheckRequired(n) {
				n.QueueStatus = QueuePending
				alreadyPending := false
				for _, p := range e.pendingQueue {
					if p == n {
						alreadyPending = true
						break
					}
				}
				if !alreadyPending {
					e.pendingQueue = append(e.pendingQueue, n)
				}
			} else {
				n.QueueStatus = QueueTransition
				e.transitionQueue = append(e.transitionQueue, n)
			}
		}

		if len(e.pendingQueue) > 0 {
			e.resolvePending(ctx)
		}

		if len(e.transitionQueue) == 0 {
			break
		}

		batch := make([]NodeTransition, 0, len(e.transitionQueue))
		for _, n := range e.transitionQueue {
			old := n.State
			n.applyTransition(e)
			batch = append(batch, NodeTransition{Node: n, OldState: old, NewState: n.State})
		}
		e.transitionQueue = nil
		e.listener.NotifyTransitions(batch)

		if !e.outboundEmpty() {
			break
		}
		if len(e.candidateQueue) == 0 {
			break
		}
	}

	e.cycle++
	e.performAssignments(ctx)
	e.executeOutboundQueue(ctx)
	e.listener.StepComplete(e.cycle)
	return nil
}

func (e *Executive) outboundEmpty() bool {
	return len(e.outAssign) == 0 && len(e.outRetract) == 0 &&
		len(e.outCommands) == 0 && len(e.outAborts) == 0 &&
		len(e.outUpdates) == 0
}

// resourceCheckRequired reports whether n's pending transition to
// EXECUTING must first pass through resource arbitration and/or mutex
// acquisition.
func (e *Executive) resourceCheckRequired(n *Node) bool {
	if n.NextState != StateExecuting || n.Type != NodeCommand {
		return false
	}
	return len(n.Command.Resources) > 0 || len(n.Command.Mutexes) > 0
}

// resolvePending re-checks every node waiting on resource/mutex
// availability. Per the normalized design, a node's destination is always
// recomputed here before arbitration is attempted, so a node whose
// conditions changed while it sat in the pending queue is never granted a
// stale transition.
func (e *Executive) resolvePending(ctx context.Context) {
	var remaining []*Node
	var resourceNodes []*Node
	var resourceReqs []CommandRequest
	var mutexOnly []*Node

	for _, n := range e.pendingQueue {
		dest, changed := n.destination()
		if !changed || dest != StateExecuting {
			n.QueueStatus = QueueNone
			e.addCandidateLocked(n)
			continue
		}
		n.NextState = dest
		if !e.tryAcquireMutexes(n) {
			remaining = append(remaining, n)
			continue
		}
		if len(n.Command.Resources) == 0 {
			mutexOnly = append(mutexOnly, n)
			continue
		}
		resourceNodes = append(resourceNodes, n)
		resourceReqs = append(resourceReqs, CommandRequest{ID: n.ID, Resources: n.Command.Resources})
	}

	for _, n := range mutexOnly {
		n.QueueStatus = QueueTransition
		e.transitionQueue = append(e.transitionQueue, n)
	}

	if len(resourceReqs) > 0 {
		accepted, _ := e.arbiter.ArbitrateCommands(resourceReqs)
		acceptedSet := make(map[string]bool, len(accepted))
		for _, id := range accepted {
			acceptedSet[id] = true
		}
		for _, n := range resourceNodes {
			if acceptedSet[n.ID] {
				n.QueueStatus = QueueTransition
				e.transitionQueue = append(e.transitionQueue, n)
			} else {
				// A resource denial is terminal for this iteration, not a
				// transient wait: the node ends its iteration with outcome
				// denied rather than sitting on the pending queue forever.
				e.releaseMutexesProvisional(n)
				n.Outcome = OutcomeFailure
				n.FailureType = FailureDenied
				n.NextState = StateIterationEnded
				n.QueueStatus = QueueTransition
				e.transitionQueue = append(e.transitionQueue, n)
				cmd := Command{ID: n.ID, NodeID: n.ID, Name: n.Command.Name, Args: evalArgs(n.Command.Args)}
				_ = e.iface.ReportCommandArbitrationFailure(ctx, cmd)
			}
		}
	}

	e.pendingQueue = remaining
}

func (e *Executive) tryAcquireMutexes(n *Node) bool {
	if len(n.Command.Mutexes) == 0 {
		return true
	}
	acquired := make([]string, 0, len(n.Command.Mutexes))
	ok := true
	for _, name := range n.Command.Mutexes {
		if e.mutexes.Ensure(name).Acquire(n) {
			acquired = append(acquired, name)
		} else {
			ok = false
			break
		}
	}
	if !ok {
		for _, name := range acquired {
			e.mutexes.Ensure(name).Release(n)
		}
		return false
	}
	n.Command.acquiredMutexes = acquired
	return true
}

func (e *Executive) releaseMutexesProvisional(n *Node) {
	for _, name := range n.Command.acquiredMutexes {
		e.mutexes.Ensure(name).Release(n)
	}
	n.Command.acquiredMutexes = nil
}

func (e *Executive) performAssignments(ctx context.Context) {
	for _, n := range e.outAssign {
		n.Assignment.target.Assign(n.Assignment.Value.Value())
		if err := e.iface.ExecuteAssignment(ctx, n.Assignment.Dest, n.Assignment.target.Value()); err != nil {
			_ = err // delivery failures surface as an interface error to the listener via StateCache/telemetry, not by blocking the step
		}
	}
	e.outAssign = nil
	for _, n := range e.outRetract {
		n.Assignment.target.Retract()
		_ = e.iface.RetractAssignment(ctx, n.Assignment.Dest)
	}
	e.outRetract = nil
}

// executeOutboundQueue dispatches every command queued this macro-step,
// then flushes the abort and update queues, matching the original
// executeOutboundQueue's ordering (commands, then aborts, then updates).
// Resource and mutex arbitration already happened in resolvePending
// before a command's node was allowed to transition to EXECUTING, so a
// command reaching this queue is always dispatched, never rejected here.
func (e *Executive) executeOutboundQueue(ctx context.Context) {
	for _, n := range e.outCommands {
		cmd := Command{ID: n.ID, NodeID: n.ID, Name: n.Command.Name, Args: evalArgs(n.Command.Args)}
		if err := e.iface.ExecuteCommand(ctx, cmd); err != nil {
			n.Command.handle.Assign(IntValue(int64(CommandInterfaceError)))
		}
	}
	e.outCommands = nil

	for _, n := range e.outAborts {
		cmd := Command{ID: n.ID, NodeID: n.ID, Name: n.Command.Name}
		_ = e.iface.InvokeAbort(ctx, cmd)
	}
	e.outAborts = nil

	for _, n := range e.outUpdates {
		pairs := make([]UpdatePair, len(n.Update.Pairs))
		for i, p := range n.Update.Pairs {
			pairs[i] = UpdatePair{Key: p.Key, Value: p.Value.Value()}
		}
		_ = e.iface.ExecuteUpdate(ctx, Update{ID: n.ID, NodeID: n.ID, Pairs: pairs})
	}
	e.outUpdates = nil
}

func evalArgs(args []Expression) []Value {
	vals := make([]Value, len(args))
	for i, a := range args {
		vals[i] = a.Value()
	}
	return vals
}

// CommandHandleReturn delivers a command handle status change from the
// external interface back into the command's internal handle variable,
// and releases the command's resource reservation once it reaches a
// terminal handle status.
func (e *Executive) CommandHandleReturn(nodeID string, status CommandHandleStatus) {
	e.mu.Lock()
	n, ok := e.byID[nodeID]
	e.mu.Unlock()
	if !ok || n.Type != NodeCommand || n.Command.handle == nil {
		return
	}
	n.Command.handle.Assign(IntValue(int64(status)))
	switch status {
	case CommandSuccess, CommandFailed, CommandDenied, CommandInterfaceError, CommandAborted:
		e.arbiter.ReleaseResourcesForCommand(nodeID)
	}
	n.notifyCandidate()
}

// CommandReturn delivers a command's return value.
func (e *Executive) CommandReturn(nodeID string, value Value) {
	e.mu.Lock()
	n, ok := e.byID[nodeID]
	e.mu.Unlock()
	if !ok || n.Type != NodeCommand || n.Command.result == nil {
		return
	}
	n.Command.result.Assign(value)
}

// CommandAbortAcknowledge delivers the external interface's
// acknowledgement of an abort request.
func (e *Executive) CommandAbortAcknowledge(nodeID string, ok bool) {
	e.mu.Lock()
	n, exists := e.byID[nodeID]
	e.mu.Unlock()
	if !exists {
		return
	}
	n.notifyCandidate()
}

// DeleteFinishedPlans removes finished root nodes from the executive's
// root list and returns them, reclaiming their resources. It must be
// called explicitly between steps; the executive never deletes a
// finished root on its own.
func (e *Executive) DeleteFinishedPlans() []*Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	done := e.finishedRoots
	e.finishedRoots = nil
	if len(done) == 0 {
		return nil
	}
	finishedSet := make(map[*Node]bool, len(done))
	for _, n := range done {
		finishedSet[n] = true
	}
	kept := e.roots[:0]
	for _, r := range e.roots {
		if !finishedSet[r] {
			kept = append(kept, r)
		}
	}
	e.roots = kept
	for _, n := range done {
		n.walk(func(child *Node) { delete(e.byID, child.ID) })
	}
	return done
}

// AllPlansFinished reports whether every root currently known to the
// executive has reached the FINISHED state.
func (e *Executive) AllPlansFinished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.roots {
		if r.State != StateFinished {
			return false
		}
	}
	return true
}

// Cycle returns the number of completed macro-steps.
func (e *Executive) Cycle() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cycle
}
