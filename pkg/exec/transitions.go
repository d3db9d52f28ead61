package exec

// destination computes the state a node would move to if stepped right
// now, and whether that differs from its current state. It is pure: it
// never mutates the node or enqueues anything. The executive calls this
// from the candidate queue and again from resolvePending's "did conditions
// change while this node sat on the pending queue" recheck.
func (n *Node) destination() (NodeState, bool) {
	switch n.State {
	case StateInactive:
		return n.destInactive()
	case StateWaiting:
		return n.destWaiting()
	case StateExecuting:
		return n.destExecuting()
	case StateIterationEnded:
		return n.destIterationEnded()
	case StateIterating:
		return n.destIterating()
	case StateFailing:
		return n.destFailing()
	case StateFinishingUp:
		return n.destFinishingUp()
	case StateFinished:
		return n.State, false
	default:
		return n.State, false
	}
}

func (n *Node) destInactive() (NodeState, bool) {
	if n.parentExecuting() {
		return StateWaiting, true
	}
	return StateInactive, false
}

func (n *Node) destWaiting() (NodeState, bool) {
	if !n.parentExecuting() {
		return StateInactive, true
	}
	if skip, ok := n.condition(CondSkip).Bool(); ok && skip {
		return StateIterationEnded, true
	}
	if exited, ok := n.condition(CondExit).Bool(); ok && exited {
		return StateIterationEnded, true
	}
	start, ok := n.condition(CondStart).Bool()
	if !ok || !start {
		return StateWaiting, false
	}
	if pre, ok := n.condition(CondPre).Bool(); ok {
		if pre {
			return StateExecuting, true
		}
		return StateIterationEnded, true
	}
	return StateWaiting, false
}

func (n *Node) destExecuting() (NodeState, bool) {
	if exited, ok := n.condition(CondExit).Bool(); ok && exited {
		return StateFailing, true
	}
	if inv, ok := n.condition(CondInvariant).Bool(); ok && !inv {
		return StateFailing, true
	}
	switch n.Type {
	case NodeList, NodeLibraryCall:
		if !n.allChildrenFinished() {
			return StateExecuting, false
		}
		return StateIterationEnded, true
	default:
		if end, ok := n.condition(CondEnd).Bool(); ok && end {
			return StateIterationEnded, true
		}
		return StateExecuting, false
	}
}

func (n *Node) destIterationEnded() (NodeState, bool) {
	if !n.parentExecuting() {
		return StateFinished, true
	}
	if repeat, ok := n.condition(CondRepeat).Bool(); ok && repeat {
		return StateIterating, true
	}
	return StateFinished, true
}

func (n *Node) destIterating() (NodeState, bool) {
	// A single macro-step dwell state: applyTransition resets iteration
	// bookkeeping on entry, then the very next destination check always
	// proceeds to Waiting.
	return StateWaiting, true
}

func (n *Node) destFailing() (NodeState, bool) {
	switch n.Type {
	case NodeList, NodeLibraryCall:
		if !n.allChildrenFinished() {
			return StateFinishingUp, true
		}
		return StateFinished, true
	default:
		return StateFinished, true
	}
}

func (n *Node) destFinishingUp() (NodeState, bool) {
	if n.allChildrenFinished() {
		return StateFinished, true
	}
	return StateFinishingUp, false
}

// applyTransition performs the side effects of moving n from its current
// State to NextState: activating/deactivating condition expressions,
// releasing mutexes, resetting iteration state, and enqueueing external
// effects (assignments, commands, updates) on exec's outbound queues. It
// is called only once the executive has committed to the transition for
// this macro-step.
func (n *Node) applyTransition(e *Executive) {
	old := n.State
	next := n.NextState

	switch next {
	case StateWaiting:
		if old == StateInactive {
			// Skip/Start/Pre/Exit are evaluated throughout the node's whole
			// Waiting-through-Executing span (and across repeat
			// iterations), so they are activated once on first entry and
			// only released in StateFinished below.
			n.activateConditions(CondSkip, CondStart, CondPre, CondExit)
			for _, c := range n.Children {
				c.activate(e)
			}
		}
	case StateExecuting:
		n.activateConditions(CondInvariant, CondEnd)
		n.startWork(e)
	case StateIterationEnded:
		n.deactivateConditions(CondInvariant, CondEnd)
		if old == StateWaiting {
			n.finishWaiting(e)
		} else {
			n.finishWork(e)
		}
		n.activateConditions(CondRepeat)
	case StateIterating:
		n.deactivateConditions(CondRepeat)
		n.resetIteration(e)
	case StateFailing:
		n.deactivateConditions(CondInvariant, CondEnd)
		n.interruptWork(e)
	case StateFinishingUp:
		// children are left to finish on their own; nothing further to do
	case StateFinished:
		n.deactivateConditions(CondSkip, CondStart, CondPre, CondExit, CondRepeat)
		n.releaseMutexes(e)
		e.publishFinished(n)
	}

	n.State = next
	if n.State != StateFinished {
		// Every freshly entered state is re-examined on the next
		// quiescence round: its destination may already be known (e.g.
		// a Waiting node whose Start condition is a plain constant)
		// without needing an external notification to arrive first.
		n.notifyCandidate()
	}
}

func (n *Node) activate(e *Executive) {
	n.State = StateInactive
	n.Outcome = OutcomeNone
	n.FailureType = FailureNone
	n.notifyCandidate()
}

// startWork performs the side effects of entering EXECUTING for each node
// type: commands are enqueued for dispatch, assignments enqueued, updates
// enqueued, list/library-call nodes activate their children.
func (n *Node) startWork(e *Executive) {
	switch n.Type {
	case NodeCommand:
		n.Command.handle = NewVariable(n.ID+".handle", Unknown())
		n.Command.handle.Activate()
		n.Command.result = NewVariable(n.ID+".result", Unknown())
		n.Command.result.Activate()
		e.enqueueCommand(n)
	case NodeAssignment:
		n.Assignment.target = NewVariable(n.Assignment.Dest, Unknown())
		n.Assignment.target.Activate()
		e.enqueueAssignment(n)
	case NodeUpdate:
		e.enqueueUpdate(n)
	case NodeList, NodeLibraryCall:
		for _, c := range n.Children {
			c.activate(e)
		}
	}
}

func (n *Node) finishWork(e *Executive) {
	switch n.Type {
	case NodeCommand:
		if n.Outcome == OutcomeNone {
			n.Outcome = OutcomeSuccess
			if post, ok := n.condition(CondPost).Bool(); ok && !post {
				n.Outcome = OutcomeFailure
				n.FailureType = FailurePostConditionFailed
			}
		}
	case NodeList, NodeLibraryCall:
		if n.anyChildFailed() {
			n.Outcome = OutcomeFailure
			n.FailureType = FailureParentFailed
		} else {
			n.Outcome = OutcomeSuccess
			if post, ok := n.condition(CondPost).Bool(); ok && !post {
				n.Outcome = OutcomeFailure
				n.FailureType = FailurePostConditionFailed
			}
		}
	default:
		n.Outcome = OutcomeSuccess
	}
}

// finishWaiting records the outcome for a node that reaches IterationEnded
// directly from Waiting, without ever starting its body: destWaiting only
// routes Waiting to IterationEnded for skip, exit, or a false pre-condition,
// in that order of precedence, so this mirrors the same checks to record
// which one applied. A node the executive already denied resource
// arbitration for (resolvePending) has its outcome set before it ever
// reaches here, so that decision is left untouched.
func (n *Node) finishWaiting(e *Executive) {
	if n.Outcome != OutcomeNone {
		return
	}
	if skip, ok := n.condition(CondSkip).Bool(); ok && skip {
		n.Outcome = OutcomeSkipped
		return
	}
	if exited, ok := n.condition(CondExit).Bool(); ok && exited {
		n.Outcome = OutcomeInterrupted
		n.FailureType = FailureExited
		return
	}
	n.Outcome = OutcomeFailure
	n.FailureType = FailurePreConditionFailed
}

func (n *Node) interruptWork(e *Executive) {
	n.Outcome = OutcomeInterrupted
	if exited, ok := n.condition(CondExit).Bool(); ok && exited {
		n.FailureType = FailureExited
	} else {
		n.FailureType = FailureInvariantViolated
	}
	switch n.Type {
	case NodeCommand:
		if n.Command.dispatched {
			e.enqueueAbort(n)
		}
	case NodeAssignment:
		if n.Assignment.target != nil {
			e.enqueueRetraction(n)
		}
	case NodeList, NodeLibraryCall:
		for _, c := range n.Children {
			if c.State != StateInactive && c.State != StateFinished {
				c.forceExit(e)
			}
		}
	}
}

// forceExit is invoked on a child when its parent fails, per the
// ancestor-invariant propagation described in the data model: the child
// behaves as though its own Exit condition just became true.
func (n *Node) forceExit(e *Executive) {
	n.NextState = StateFailing
	n.applyTransition(e)
	n.FailureType = FailureParentFailed
}

func (n *Node) resetIteration(e *Executive) {
	n.Outcome = OutcomeNone
	n.FailureType = FailureNone
	switch n.Type {
	case NodeList, NodeLibraryCall:
		for _, c := range n.Children {
			c.State = StateInactive
			c.notifyCandidate()
		}
	}
}

func (n *Node) releaseMutexes(e *Executive) {
	if n.Type != NodeCommand {
		return
	}
	for _, name := range n.Command.acquiredMutexes {
		e.mutexes.Ensure(name).Release(n)
	}
	n.Command.acquiredMutexes = nil
}
