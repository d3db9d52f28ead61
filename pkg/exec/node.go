package exec

// NodeType identifies which of the plan body variants a Node carries.
// Exactly one of the corresponding *Spec fields on Node is non-nil for a
// given Type (List and Empty carry no body of their own).
type NodeType int

const (
	NodeEmpty NodeType = iota
	NodeList
	NodeCommand
	NodeAssignment
	NodeUpdate
	NodeLibraryCall
)

func (t NodeType) String() string {
	switch t {
	case NodeList:
		return "List"
	case NodeCommand:
		return "Command"
	case NodeAssignment:
		return "Assignment"
	case NodeUpdate:
		return "Update"
	case NodeLibraryCall:
		return "LibraryCall"
	default:
		return "Empty"
	}
}

// NodeState is one of the eight states of the per-node state machine.
type NodeState int

const (
	StateInactive NodeState = iota
	StateWaiting
	StateExecuting
	StateIterationEnded
	StateFinished
	StateFailing
	StateFinishingUp
	StateIterating
)

func (s NodeState) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateExecuting:
		return "EXECUTING"
	case StateIterationEnded:
		return "ITERATION_ENDED"
	case StateFinished:
		return "FINISHED"
	case StateFailing:
		return "FAILING"
	case StateFinishingUp:
		return "FINISHING_UP"
	case StateIterating:
		return "ITERATING"
	default:
		return "INACTIVE"
	}
}

// QueueStatus tracks which of the executive's internal queues, if any, a
// node currently belongs to. The executive is the only thing that mutates
// this field; it exists on Node purely so duplicate-enqueue checks don't
// need an auxiliary set.
type QueueStatus int

const (
	QueueNone QueueStatus = iota
	QueueCandidate
	QueuePending
	QueuePendingTry
	QueuePendingCheck
	QueuePendingTryCheck
	QueueTransition
	QueueTransitionCheck
	QueueDelete
)

// Outcome records how a node's single iteration of work concluded.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeFailure
	OutcomeSkipped
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeFailure:
		return "FAILURE"
	case OutcomeSkipped:
		return "SKIPPED"
	case OutcomeInterrupted:
		return "INTERRUPTED"
	default:
		return "NONE"
	}
}

// FailureType records why a node's outcome was Failure, when applicable.
type FailureType int

const (
	FailureNone FailureType = iota
	FailurePreConditionFailed
	FailurePostConditionFailed
	FailureInvariantViolated
	FailureParentFailed
	FailureExited
	FailureDenied
	FailureInterfaceError
)

func (f FailureType) String() string {
	switch f {
	case FailurePreConditionFailed:
		return "PRE_CONDITION_FAILED"
	case FailurePostConditionFailed:
		return "POST_CONDITION_FAILED"
	case FailureInvariantViolated:
		return "INVARIANT_CONDITION_FAILED"
	case FailureParentFailed:
		return "PARENT_FAILED"
	case FailureExited:
		return "EXITED"
	case FailureDenied:
		return "RESOURCE_DENIED"
	case FailureInterfaceError:
		return "INTERFACE_ERROR"
	default:
		return "NONE"
	}
}

// ConditionKind names one of the eight condition slots a node may define.
type ConditionKind int

const (
	CondStart ConditionKind = iota
	CondRepeat
	CondPre
	CondPost
	CondInvariant
	CondEnd
	CondExit
	CondSkip
	numConditions
)

func (c ConditionKind) String() string {
	switch c {
	case CondStart:
		return "Start"
	case CondRepeat:
		return "Repeat"
	case CondPre:
		return "Pre"
	case CondPost:
		return "Post"
	case CondInvariant:
		return "Invariant"
	case CondEnd:
		return "End"
	case CondExit:
		return "Exit"
	case CondSkip:
		return "Skip"
	default:
		return "?"
	}
}

// ResourceValue is a single resource request a Command node declares,
// carrying the priority used both for pending-queue ordering and for
// hierarchical arbiter sorting.
type ResourceValue struct {
	Name                 string
	Priority             int32
	LowerBound           float64
	UpperBound           float64
	ReleaseOnTermination bool
}

// CommandSpec is the body of a Command node.
type CommandSpec struct {
	Name      string
	Args      []Expression
	Resources []ResourceValue
	Mutexes   []string

	// internal dispatch state, populated by the executive
	handle *Variable // CommandHandleStatus encoded as Value
	result *Variable
	dispatched bool
	acquiredMutexes []string
}

// handleTerminal reports whether the command's handle has reached a
// terminal status, the default completion signal a Command node's End
// condition waits on when the plan did not supply an explicit one.
func (c *CommandSpec) handleTerminal() bool {
	if c.handle == nil {
		return false
	}
	v, ok := c.handle.Value().Int()
	if !ok {
		return false
	}
	switch CommandHandleStatus(v) {
	case CommandSuccess, CommandFailed, CommandDenied, CommandInterfaceError, CommandAborted:
		return true
	default:
		return false
	}
}

// AssignmentSpec is the body of an Assignment node.
type AssignmentSpec struct {
	Dest  string
	Value Expression

	target *Variable
}

// UpdateSpec is the body of an Update node.
type UpdateSpec struct {
	Pairs []struct {
		Key   string
		Value Expression
	}
}

// LibraryCallSpec is the body of a LibraryCall node: it binds a library
// plan (added separately via Executive.AddLibrary) under an alias map from
// the library's interface variable names to expressions in the caller's
// scope.
type LibraryCallSpec struct {
	LibraryID string
	Aliases   map[string]Expression

	resolved *Node // the instantiated library root, once bound
}

// Node is one node of the plan tree. Exactly one of Command, Assignment,
// Update or LibraryCall is non-nil, selected by Type; List and Empty nodes
// carry no body.
type Node struct {
	ID   string
	Type NodeType

	Command     *CommandSpec
	Assignment  *AssignmentSpec
	Update      *UpdateSpec
	LibraryCall *LibraryCallSpec

	Parent   *Node
	Children []*Node

	State       NodeState
	NextState   NodeState
	QueueStatus QueueStatus
	Outcome     Outcome
	FailureType FailureType

	Conditions [numConditions]Expression

	exec *Executive
}

// condition evaluates the named condition, falling back to the per-type
// default described in the data model when the plan did not supply one.
func (n *Node) condition(kind ConditionKind) Value {
	if expr := n.Conditions[kind]; expr != nil {
		return expr.Value()
	}
	return n.defaultCondition(kind)
}

func (n *Node) defaultCondition(kind ConditionKind) Value {
	switch kind {
	case CondStart:
		return BoolValue(true)
	case CondRepeat:
		return BoolValue(false)
	case CondPre:
		return BoolValue(true)
	case CondPost:
		return BoolValue(true)
	case CondInvariant:
		return BoolValue(true)
	case CondExit:
		return BoolValue(false)
	case CondSkip:
		return BoolValue(false)
	case CondEnd:
		switch n.Type {
		case NodeList, NodeLibraryCall:
			return BoolValue(n.allChildrenFinished())
		case NodeCommand:
			return BoolValue(n.Command.handleTerminal())
		default:
			return BoolValue(true)
		}
	default:
		return Unknown()
	}
}

func (n *Node) allChildrenFinished() bool {
	for _, c := range n.Children {
		if c.State != StateFinished {
			return false
		}
	}
	return true
}

func (n *Node) anyChildFailed() bool {
	for _, c := range n.Children {
		if c.State == StateFinished && c.Outcome == OutcomeFailure {
			return true
		}
	}
	return false
}

func (n *Node) parentExecuting() bool {
	return n.Parent == nil || n.Parent.State == StateExecuting
}

// activateConditions activates every condition expression that is
// actually wired (the default constants above never need activation since
// they aren't Expression values).
func (n *Node) activateConditions(kinds ...ConditionKind) {
	for _, k := range kinds {
		if expr := n.Conditions[k]; expr != nil {
			expr.Activate()
			expr.AddListener(n)
		}
	}
}

func (n *Node) deactivateConditions(kinds ...ConditionKind) {
	for _, k := range kinds {
		if expr := n.Conditions[k]; expr != nil {
			expr.RemoveListener(n)
			expr.Deactivate()
		}
	}
}

// NotifyChanged implements ChangeListener: any condition expression wired
// to this node becoming newly known (or changing) makes the node a fresh
// candidate for the executive to re-examine.
func (n *Node) NotifyChanged() {
	n.notifyCandidate()
}

func (n *Node) notifyCandidate() {
	if n.exec != nil {
		n.exec.NotifyCandidate(n)
	}
}

// walk calls fn for n and every descendant, depth first.
func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.walk(fn)
	}
}
