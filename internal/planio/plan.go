// Package planio is the thin JSON plan loader described in SPEC_FULL.md
// §10: the real plan-XML parser is out of scope, so the CLI accepts a
// small JSON document describing a node tree just well enough to exercise
// Executive.AddPlan/AddLibrary end to end. It has no grammar and performs
// no type inference beyond the document's own "kind"/"type" tags.
package planio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/planexec/planexec/pkg/exec"
)

// NodeDoc is one node of a JSON plan document; exactly one of Command,
// Assignment, Update or LibraryCall should be set, matching Type.
type NodeDoc struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Command     *CommandDoc     `json:"command,omitempty"`
	Assignment  *AssignmentDoc  `json:"assignment,omitempty"`
	Update      *UpdateDoc      `json:"update,omitempty"`
	LibraryCall *LibraryCallDoc `json:"library_call,omitempty"`

	Conditions map[string]*ExprDoc `json:"conditions,omitempty"`
	Children   []*NodeDoc          `json:"children,omitempty"`
}

type CommandDoc struct {
	Name      string          `json:"name"`
	Args      []*ExprDoc      `json:"args,omitempty"`
	Resources []ResourceDoc   `json:"resources,omitempty"`
	Mutexes   []string        `json:"mutexes,omitempty"`
}

type ResourceDoc struct {
	Name                 string  `json:"name"`
	Priority             int32   `json:"priority"`
	LowerBound           float64 `json:"lower_bound"`
	UpperBound           float64 `json:"upper_bound"`
	ReleaseOnTermination bool    `json:"release_on_termination"`
}

type AssignmentDoc struct {
	Dest  string   `json:"dest"`
	Value *ExprDoc `json:"value"`
}

type UpdatePairDoc struct {
	Key   string   `json:"key"`
	Value *ExprDoc `json:"value"`
}

type UpdateDoc struct {
	Pairs []UpdatePairDoc `json:"pairs"`
}

type LibraryCallDoc struct {
	LibraryID string              `json:"library_id"`
	Aliases   map[string]*ExprDoc `json:"aliases,omitempty"`
}

// ExprDoc is a recursive expression descriptor. Kind selects which of the
// remaining fields apply: "const" (Value), "var" (Name + Value as the
// initial value), "binary" (Op, Left, Right), "not" (Operand),
// "array_element" (Array, Index), or "lookup" (Name, Args).
type ExprDoc struct {
	Kind    string     `json:"kind"`
	Value   *exec.Value `json:"value,omitempty"`
	Name    string     `json:"name,omitempty"`
	Op      string     `json:"op,omitempty"`
	Left    *ExprDoc   `json:"left,omitempty"`
	Right   *ExprDoc   `json:"right,omitempty"`
	Operand *ExprDoc   `json:"operand,omitempty"`
	Array   *ExprDoc   `json:"array,omitempty"`
	Index   *ExprDoc   `json:"index,omitempty"`
	Args    []*ExprDoc `json:"args,omitempty"`
}

// LoadFile reads and builds a single plan tree from path.
func LoadFile(ctx context.Context, path string, cache exec.StateCache) (*exec.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("planio: read %s: %w", path, err)
	}
	var doc NodeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("planio: parse %s: %w", path, err)
	}
	return Build(ctx, &doc, cache)
}

// Build turns a NodeDoc tree into an *exec.Node tree, wiring every
// Expression-bearing field through NewConstant/NewVariable/NewBinary/
// NewNot/NewArrayElement/NewLookup against cache.
func Build(ctx context.Context, doc *NodeDoc, cache exec.StateCache) (*exec.Node, error) {
	return buildNode(ctx, doc, nil, cache)
}

func buildNode(ctx context.Context, doc *NodeDoc, parent *exec.Node, cache exec.StateCache) (*exec.Node, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("planio: node missing id")
	}

	nodeType, err := parseNodeType(doc.Type)
	if err != nil {
		return nil, fmt.Errorf("planio: node %s: %w", doc.ID, err)
	}

	n := &exec.Node{ID: doc.ID, Type: nodeType, Parent: parent}

	switch nodeType {
	case exec.NodeCommand:
		if doc.Command == nil {
			return nil, fmt.Errorf("planio: node %s is type Command but has no command body", doc.ID)
		}
		spec, err := buildCommand(ctx, doc.Command, cache)
		if err != nil {
			return nil, fmt.Errorf("planio: node %s: %w", doc.ID, err)
		}
		n.Command = spec
	case exec.NodeAssignment:
		if doc.Assignment == nil {
			return nil, fmt.Errorf("planio: node %s is type Assignment but has no assignment body", doc.ID)
		}
		value, err := buildExpr(ctx, doc.Assignment.Value, cache)
		if err != nil {
			return nil, fmt.Errorf("planio: node %s: %w", doc.ID, err)
		}
		n.Assignment = &exec.AssignmentSpec{Dest: doc.Assignment.Dest, Value: value}
	case exec.NodeUpdate:
		if doc.Update == nil {
			return nil, fmt.Errorf("planio: node %s is type Update but has no update body", doc.ID)
		}
		spec, err := buildUpdate(ctx, doc.Update, cache)
		if err != nil {
			return nil, fmt.Errorf("planio: node %s: %w", doc.ID, err)
		}
		n.Update = spec
	case exec.NodeLibraryCall:
		if doc.LibraryCall == nil {
			return nil, fmt.Errorf("planio: node %s is type LibraryCall but has no library_call body", doc.ID)
		}
		spec, err := buildLibraryCall(ctx, doc.LibraryCall, cache)
		if err != nil {
			return nil, fmt.Errorf("planio: node %s: %w", doc.ID, err)
		}
		n.LibraryCall = spec
	}

	for kindName, exprDoc := range doc.Conditions {
		kind, err := parseConditionKind(kindName)
		if err != nil {
			return nil, fmt.Errorf("planio: node %s: %w", doc.ID, err)
		}
		expr, err := buildExpr(ctx, exprDoc, cache)
		if err != nil {
			return nil, fmt.Errorf("planio: node %s condition %s: %w", doc.ID, kindName, err)
		}
		n.Conditions[kind] = expr
	}

	for _, childDoc := range doc.Children {
		child, err := buildNode(ctx, childDoc, n, cache)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}

	return n, nil
}

func buildCommand(ctx context.Context, doc *CommandDoc, cache exec.StateCache) (*exec.CommandSpec, error) {
	args := make([]exec.Expression, len(doc.Args))
	for i, a := range doc.Args {
		expr, err := buildExpr(ctx, a, cache)
		if err != nil {
			return nil, err
		}
		args[i] = expr
	}
	resources := make([]exec.ResourceValue, len(doc.Resources))
	for i, r := range doc.Resources {
		resources[i] = exec.ResourceValue{
			Name:                 r.Name,
			Priority:             r.Priority,
			LowerBound:           r.LowerBound,
			UpperBound:           r.UpperBound,
			ReleaseOnTermination: r.ReleaseOnTermination,
		}
	}
	return &exec.CommandSpec{Name: doc.Name, Args: args, Resources: resources, Mutexes: doc.Mutexes}, nil
}

func buildUpdate(ctx context.Context, doc *UpdateDoc, cache exec.StateCache) (*exec.UpdateSpec, error) {
	spec := &exec.UpdateSpec{}
	for _, p := range doc.Pairs {
		expr, err := buildExpr(ctx, p.Value, cache)
		if err != nil {
			return nil, err
		}
		spec.Pairs = append(spec.Pairs, struct {
			Key   string
			Value exec.Expression
		}{Key: p.Key, Value: expr})
	}
	return spec, nil
}

func buildLibraryCall(ctx context.Context, doc *LibraryCallDoc, cache exec.StateCache) (*exec.LibraryCallSpec, error) {
	aliases := make(map[string]exec.Expression, len(doc.Aliases))
	for name, exprDoc := range doc.Aliases {
		expr, err := buildExpr(ctx, exprDoc, cache)
		if err != nil {
			return nil, err
		}
		aliases[name] = expr
	}
	return &exec.LibraryCallSpec{LibraryID: doc.LibraryID, Aliases: aliases}, nil
}

func buildExpr(ctx context.Context, doc *ExprDoc, cache exec.StateCache) (exec.Expression, error) {
	if doc == nil {
		return nil, nil
	}
	switch doc.Kind {
	case "const":
		v := exec.Unknown()
		if doc.Value != nil {
			v = *doc.Value
		}
		return exec.NewConstant(v), nil
	case "var":
		initial := exec.Unknown()
		if doc.Value != nil {
			initial = *doc.Value
		}
		return exec.NewVariable(doc.Name, initial), nil
	case "binary":
		op, err := parseBinaryOp(doc.Op)
		if err != nil {
			return nil, err
		}
		left, err := buildExpr(ctx, doc.Left, cache)
		if err != nil {
			return nil, err
		}
		right, err := buildExpr(ctx, doc.Right, cache)
		if err != nil {
			return nil, err
		}
		return exec.NewBinary(op, left, right), nil
	case "not":
		operand, err := buildExpr(ctx, doc.Operand, cache)
		if err != nil {
			return nil, err
		}
		return exec.NewNot(operand), nil
	case "array_element":
		array, err := buildExpr(ctx, doc.Array, cache)
		if err != nil {
			return nil, err
		}
		index, err := buildExpr(ctx, doc.Index, cache)
		if err != nil {
			return nil, err
		}
		return exec.NewArrayElement(array, index), nil
	case "lookup":
		if cache == nil {
			return nil, fmt.Errorf("planio: lookup %q requires a StateCache", doc.Name)
		}
		args := make([]exec.Expression, len(doc.Args))
		for i, a := range doc.Args {
			expr, err := buildExpr(ctx, a, cache)
			if err != nil {
				return nil, err
			}
			args[i] = expr
		}
		return exec.NewLookup(ctx, cache, doc.Name, args), nil
	default:
		return nil, fmt.Errorf("planio: unknown expression kind %q", doc.Kind)
	}
}

func parseNodeType(s string) (exec.NodeType, error) {
	switch s {
	case "", "Empty":
		return exec.NodeEmpty, nil
	case "List":
		return exec.NodeList, nil
	case "Command":
		return exec.NodeCommand, nil
	case "Assignment":
		return exec.NodeAssignment, nil
	case "Update":
		return exec.NodeUpdate, nil
	case "LibraryCall":
		return exec.NodeLibraryCall, nil
	default:
		return 0, fmt.Errorf("unknown node type %q", s)
	}
}

func parseConditionKind(s string) (exec.ConditionKind, error) {
	switch s {
	case "Start":
		return exec.CondStart, nil
	case "Repeat":
		return exec.CondRepeat, nil
	case "Pre":
		return exec.CondPre, nil
	case "Post":
		return exec.CondPost, nil
	case "Invariant":
		return exec.CondInvariant, nil
	case "End":
		return exec.CondEnd, nil
	case "Exit":
		return exec.CondExit, nil
	case "Skip":
		return exec.CondSkip, nil
	default:
		return 0, fmt.Errorf("unknown condition kind %q", s)
	}
}

func parseBinaryOp(s string) (exec.BinaryOp, error) {
	switch s {
	case "AND":
		return exec.OpAnd, nil
	case "OR":
		return exec.OpOr, nil
	case "EQ":
		return exec.OpEQ, nil
	case "NE":
		return exec.OpNE, nil
	case "LT":
		return exec.OpLT, nil
	case "LE":
		return exec.OpLE, nil
	case "GT":
		return exec.OpGT, nil
	case "GE":
		return exec.OpGE, nil
	case "ADD":
		return exec.OpAdd, nil
	case "SUB":
		return exec.OpSub, nil
	case "MUL":
		return exec.OpMul, nil
	case "DIV":
		return exec.OpDiv, nil
	default:
		return 0, fmt.Errorf("unknown binary op %q", s)
	}
}
