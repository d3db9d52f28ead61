package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/rs/zerolog"

	"github.com/planexec/planexec/pkg/exec"
)

// Engine is an OPA-backed exec.PlanValidator: every enabled policy's deny
// rule is evaluated against the plan's node tree before Executive.AddPlan
// or AddLibrary accepts it.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	store    storage.Store
	logger   zerolog.Logger
}

// compiledPolicy is one Rego module prepared for repeated evaluation.
type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	compiled time.Time
}

// NewEngine creates an engine preloaded with the built-in node-tree
// policies (naming, dispatch target, resource bounds, mutex names).
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		store:    inmem.New(),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}

	for _, p := range GetBuiltinPolicies() {
		p := p
		if err := e.compileAndStorePolicy(context.Background(), &p); err != nil {
			return nil, fmt.Errorf("compile built-in policy %s: %w", p.Name, err)
		}
	}

	return e, nil
}

// ValidatePlan implements exec.PlanValidator. It flattens the node tree
// into a PlanInput and evaluates every enabled policy's deny rule against
// it; any violation at SeverityError or SeverityCritical fails the load.
func (e *Engine) ValidatePlan(root *exec.Node) error {
	result, err := e.Evaluate(context.Background(), root)
	if err != nil {
		return err
	}
	if !result.Allowed {
		return fmt.Errorf("plan rejected by policy: %s", formatViolations(result.Violations))
	}
	return nil
}

// Evaluate runs every enabled policy against root and returns the full
// PolicyResult, including non-blocking violations ValidatePlan would not
// itself surface as an error.
func (e *Engine) Evaluate(ctx context.Context, root *exec.Node) (*PolicyResult, error) {
	start := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	input := flattenPlan(root)
	evaluated := make([]string, 0, len(e.policies))
	var violations []PolicyViolation

	for _, cp := range e.policies {
		if !cp.policy.Enabled {
			continue
		}
		evaluated = append(evaluated, cp.policy.Name)

		found, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).Str("policy", cp.policy.Name).Msg("policy evaluation failed")
			continue
		}
		violations = append(violations, found...)
	}

	allowed := true
	for _, v := range violations {
		if v.Severity.blocking() {
			allowed = false
			break
		}
	}

	return &PolicyResult{
		Allowed:           allowed,
		Violations:        violations,
		EvaluatedPolicies: evaluated,
		EvaluatedAt:       time.Now(),
		Duration:          time.Since(start),
	}, nil
}

// flattenPlan walks root depth-first and projects each node into the
// Rego-facing PlanNode shape.
func flattenPlan(root *exec.Node) *PlanInput {
	input := &PlanInput{}
	if root == nil {
		return input
	}

	var walk func(n *exec.Node, parentID string)
	walk = func(n *exec.Node, parentID string) {
		pn := PlanNode{ID: n.ID, Type: n.Type.String(), ParentID: parentID}

		if n.Command != nil {
			pn.CommandName = n.Command.Name
			pn.Mutexes = append([]string(nil), n.Command.Mutexes...)
			for _, r := range n.Command.Resources {
				pn.Resources = append(pn.Resources, PlanResource{
					Name:       r.Name,
					LowerBound: r.LowerBound,
					UpperBound: r.UpperBound,
				})
			}
		}

		input.Nodes = append(input.Nodes, pn)
		for _, c := range n.Children {
			walk(c, n.ID)
		}
	}
	walk(root, "")

	return input
}

func formatViolations(vs []PolicyViolation) string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		if v.NodeID != "" {
			parts = append(parts, fmt.Sprintf("[%s] %s: %s", v.Policy, v.NodeID, v.Message))
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s] %s", v.Policy, v.Message))
	}
	return strings.Join(parts, "; ")
}

// LoadPolicies loads and compiles policy files from disk, in addition to
// the built-ins registered by NewEngine.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}

	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			return fmt.Errorf("compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().Int("count", len(policies)).Msg("policies loaded from disk")
	return nil
}

// evaluatePolicy evaluates one compiled policy's deny rule against input.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *PlanInput) ([]PolicyViolation, error) {
	packageName := extractPackageName(cp.policy.Rego)
	query := fmt.Sprintf("data.%s.deny", packageName)

	r := rego.New(
		rego.Module(cp.policy.Name, cp.policy.Rego),
		rego.Query(query),
		rego.Input(input),
	)

	results, err := r.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []PolicyViolation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, e.createViolation(cp.policy, d))
		}
	}

	return violations, nil
}

// extractPackageName extracts the package name from Rego source.
func extractPackageName(regoSrc string) string {
	for _, line := range strings.Split(regoSrc, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "planexec.policies"
}

// createViolation converts a single deny-set entry into a PolicyViolation.
func (e *Engine) createViolation(policy *Policy, result interface{}) PolicyViolation {
	v := PolicyViolation{
		Policy:   policy.Name,
		Severity: policy.Severity,
	}

	switch r := result.(type) {
	case string:
		v.Message = r
	case map[string]interface{}:
		if msg, ok := r["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := r["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
		if node, ok := r["node_id"].(string); ok {
			v.NodeID = node
		}
	default:
		v.Message = fmt.Sprintf("%v", result)
	}

	return v
}

// compileAndStorePolicy parses and registers policy.
func (e *Engine) compileAndStorePolicy(ctx context.Context, policy *Policy) error {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("parse policy: %w", err)
	}

	r := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Store(e.store),
		rego.Query("data"),
	)
	if _, err := r.PrepareForEval(ctx); err != nil {
		return fmt.Errorf("prepare query: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		module:   module,
		compiled: time.Now(),
	}

	e.logger.Debug().Str("policy", policy.Name).Msg("policy compiled")
	return nil
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, ok := e.policies[name]
	if !ok {
		return nil, fmt.Errorf("policy not found: %s", name)
	}
	return cp.policy, nil
}

// ListPolicies returns every loaded policy.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		policies = append(policies, *cp.policy)
	}
	return policies
}

// ReloadPolicies drops every loaded policy and re-registers the built-ins;
// callers that also load from disk should follow with LoadPolicies.
func (e *Engine) ReloadPolicies(ctx context.Context) error {
	e.mu.Lock()
	e.policies = make(map[string]*compiledPolicy)
	e.mu.Unlock()

	for _, p := range GetBuiltinPolicies() {
		p := p
		if err := e.compileAndStorePolicy(ctx, &p); err != nil {
			return fmt.Errorf("compile built-in policy %s: %w", p.Name, err)
		}
	}
	return nil
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, ok := e.policies[name]
	if !ok {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = true
	return nil
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, ok := e.policies[name]
	if !ok {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = false
	return nil
}
