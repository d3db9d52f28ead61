package policy

import "time"

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that should block a plan from loading.
	SeverityError Severity = "error"

	// SeverityCritical is for critical violations that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// blocking reports whether a violation at this severity should fail
// ValidatePlan outright, as opposed to merely being logged.
func (s Severity) blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// PolicyViolation represents a single policy violation.
type PolicyViolation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// NodeID is the plan node ID that violated the policy, if applicable.
	NodeID string `json:"node_id,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// PolicyResult represents the result of evaluating every enabled policy
// against one plan.
type PolicyResult struct {
	// Allowed indicates whether the plan may be accepted: no violation at
	// SeverityError or SeverityCritical was found.
	Allowed bool `json:"allowed"`

	// Violations lists every violation found, blocking and non-blocking.
	Violations []PolicyViolation `json:"violations,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the policies were evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// PlanNode is the Rego-facing projection of one exec.Node: the fields a
// policy can reasonably constrain, flattened out of the pointer-linked
// tree so Rego sees plain data rather than Go struct internals.
type PlanNode struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	ParentID string            `json:"parent_id,omitempty"`

	// CommandName is the dispatch target of a Command node (empty for
	// every other node type).
	CommandName string `json:"command_name,omitempty"`

	// Mutexes are the names a Command node declared in its using clause.
	Mutexes []string `json:"mutexes,omitempty"`

	// Resources are the resource requests a Command node declared.
	Resources []PlanResource `json:"resources,omitempty"`
}

// PlanResource is the Rego-facing projection of one exec.ResourceValue.
type PlanResource struct {
	Name       string  `json:"name"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

// PlanInput is the input document handed to every compiled policy's Rego
// query: the full plan flattened to a node list, in tree order.
type PlanInput struct {
	Nodes []PlanNode `json:"nodes"`
}

// PolicyBundle represents a collection of related policies, as loaded
// from a single JSON bundle file by Loader.LoadBundle.
type PolicyBundle struct {
	// Name is the unique name of the bundle.
	Name string `json:"name"`

	// Version is the bundle version.
	Version string `json:"version"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Policies are the policies in this bundle.
	Policies []Policy `json:"policies"`

	// CreatedAt is when the bundle was created.
	CreatedAt time.Time `json:"created_at"`
}
