package planio

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/planexec/planexec/pkg/exec"
)

func TestBuild_SimpleCommandTree(t *testing.T) {
	trueVal := exec.BoolValue(true)
	doc := &NodeDoc{
		ID:   "root",
		Type: "List",
		Children: []*NodeDoc{
			{
				ID:   "drill",
				Type: "Command",
				Command: &CommandDoc{
					Name: "drill",
					Args: []*ExprDoc{{Kind: "const", Value: valuePtr(exec.StringValue("rig-07"))}},
					Resources: []ResourceDoc{
						{Name: "drill-motor", Priority: 1, LowerBound: 0, UpperBound: 1},
					},
					Mutexes: []string{"drill-motor-mutex"},
				},
				Conditions: map[string]*ExprDoc{
					"Start": {Kind: "const", Value: &trueVal},
				},
			},
		},
	}

	root, err := Build(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if root.ID != "root" || root.Type != exec.NodeList {
		t.Fatalf("unexpected root: %+v", root)
	}
	if len(root.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(root.Children))
	}

	child := root.Children[0]
	if child.Parent != root {
		t.Fatal("expected child.Parent == root")
	}
	if child.Command == nil || child.Command.Name != "drill" {
		t.Fatalf("unexpected command spec: %+v", child.Command)
	}
	if len(child.Command.Resources) != 1 || child.Command.Resources[0].Name != "drill-motor" {
		t.Fatalf("unexpected resources: %+v", child.Command.Resources)
	}
	if len(child.Command.Mutexes) != 1 || child.Command.Mutexes[0] != "drill-motor-mutex" {
		t.Fatalf("unexpected mutexes: %+v", child.Command.Mutexes)
	}

	startExpr := child.Conditions[exec.CondStart]
	if startExpr == nil {
		t.Fatal("expected a Start condition")
	}
	startExpr.Activate()
	if v, ok := startExpr.Value().Bool(); !ok || !v {
		t.Fatalf("expected Start condition true, got %v", startExpr.Value())
	}
}

func TestBuild_BinaryAndNotExpressions(t *testing.T) {
	doc := &NodeDoc{
		ID:   "n1",
		Type: "Empty",
		Conditions: map[string]*ExprDoc{
			"Pre": {
				Kind: "not",
				Operand: &ExprDoc{
					Kind: "binary",
					Op:   "LT",
					Left: &ExprDoc{Kind: "const", Value: valuePtr(exec.IntValue(5))},
					Right: &ExprDoc{Kind: "const", Value: valuePtr(exec.IntValue(3))},
				},
			},
		},
	}

	root, err := Build(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	pre := root.Conditions[exec.CondPre]
	pre.Activate()
	v, ok := pre.Value().Bool()
	if !ok || !v {
		t.Fatalf("expected NOT(5 < 3) == true, got %v", pre.Value())
	}
}

func TestBuild_UnknownNodeType(t *testing.T) {
	doc := &NodeDoc{ID: "n1", Type: "Bogus"}
	if _, err := Build(context.Background(), doc, nil); err == nil {
		t.Fatal("expected error for unknown node type")
	}
}

func TestBuild_MissingID(t *testing.T) {
	doc := &NodeDoc{Type: "Empty"}
	if _, err := Build(context.Background(), doc, nil); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestBuild_LookupWithoutCacheFails(t *testing.T) {
	doc := &NodeDoc{
		ID:   "n1",
		Type: "Empty",
		Conditions: map[string]*ExprDoc{
			"Pre": {Kind: "lookup", Name: "battery_level"},
		},
	}
	if _, err := Build(context.Background(), doc, nil); err == nil {
		t.Fatal("expected error for lookup without a StateCache")
	}
}

func TestLoadFile_RoundTripsJSON(t *testing.T) {
	doc := NodeDoc{
		ID:   "root",
		Type: "Assignment",
		Assignment: &AssignmentDoc{
			Dest:  "speed",
			Value: &ExprDoc{Kind: "const", Value: valuePtr(exec.FloatValue(2.5))},
		},
	}
	data, err := json.Marshal(&doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	root, err := LoadFile(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if root.Type != exec.NodeAssignment || root.Assignment.Dest != "speed" {
		t.Fatalf("unexpected root: %+v", root)
	}
}

func valuePtr(v exec.Value) *exec.Value { return &v }
