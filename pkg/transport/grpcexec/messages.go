package grpcexec

import "github.com/planexec/planexec/pkg/exec"

// requestKind discriminates DispatchRequest, standing in for the oneof a
// protoc-generated message would use.
type requestKind string

const (
	requestCommand             requestKind = "command"
	requestArbitrationFailure  requestKind = "arbitration_failure"
	requestAbort               requestKind = "abort"
	requestUpdate              requestKind = "update"
	requestAssignment          requestKind = "assignment"
	requestRetractAssignment   requestKind = "retract_assignment"
)

// DispatchRequest is one outbound call from the executive to the external
// system, carried over the client->server half of the Dispatch stream.
type DispatchRequest struct {
	Kind       requestKind        `json:"kind"`
	Command    *exec.Command      `json:"command,omitempty"`
	Update     *exec.Update       `json:"update,omitempty"`
	Assignment *AssignmentPayload `json:"assignment,omitempty"`
}

// AssignmentPayload carries ExecuteAssignment/RetractAssignment's
// arguments; Value is absent for a retraction.
type AssignmentPayload struct {
	Dest  string     `json:"dest"`
	Value *exec.Value `json:"value,omitempty"`
}

// callbackKind discriminates DispatchCallback.
type callbackKind string

const (
	callbackCommandHandle callbackKind = "command_handle"
	callbackCommandReturn callbackKind = "command_return"
	callbackAbortAck      callbackKind = "abort_ack"
)

// DispatchCallback is one asynchronous result flowing back from the
// external system to the executive, carried over the server->client half
// of the Dispatch stream.
type DispatchCallback struct {
	Kind          callbackKind             `json:"kind"`
	NodeID        string                   `json:"node_id"`
	HandleStatus  *exec.CommandHandleStatus `json:"handle_status,omitempty"`
	ReturnValue   *exec.Value              `json:"return_value,omitempty"`
	AbortAcked    bool                     `json:"abort_acked,omitempty"`
}
