package policy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/planexec/planexec/pkg/exec"
)

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestNewEngine_LoadsBuiltins(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	want := []string{"node-naming", "dispatch-target", "resource-bounds", "mutex-naming"}
	got := eng.ListPolicies()
	if len(got) != len(want) {
		t.Fatalf("ListPolicies() has %d entries, want %d", len(got), len(want))
	}
	for _, name := range want {
		if _, err := eng.GetPolicy(name); err != nil {
			t.Errorf("expected built-in policy %q: %v", name, err)
		}
	}
}

func commandNode(id, commandName string, mutexes []string, resources []exec.ResourceValue) *exec.Node {
	return &exec.Node{
		ID:   id,
		Type: exec.NodeCommand,
		Command: &exec.CommandSpec{
			Name:      commandName,
			Mutexes:   mutexes,
			Resources: resources,
		},
	}
}

func TestValidatePlan_AcceptsWellFormedPlan(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	root := &exec.Node{
		ID:   "root",
		Type: exec.NodeList,
		Children: []*exec.Node{
			commandNode("drill-node", "drill.run", []string{"drill-rig"}, []exec.ResourceValue{
				{Name: "power", LowerBound: 0, UpperBound: 1},
			}),
		},
	}
	root.Children[0].Parent = root

	if err := eng.ValidatePlan(root); err != nil {
		t.Fatalf("ValidatePlan() = %v, want nil", err)
	}
}

func TestValidatePlan_RejectsEmptyNodeID(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	root := &exec.Node{ID: "", Type: exec.NodeList}
	if err := eng.ValidatePlan(root); err == nil {
		t.Fatal("expected ValidatePlan to reject an empty node id")
	}
}

func TestValidatePlan_RejectsMissingDispatchTarget(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	root := commandNode("drill-node", "", nil, nil)
	if err := eng.ValidatePlan(root); err == nil {
		t.Fatal("expected ValidatePlan to reject a command node without a dispatch target")
	}
}

func TestValidatePlan_RejectsInvertedResourceBounds(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	root := commandNode("drill-node", "drill.run", nil, []exec.ResourceValue{
		{Name: "power", LowerBound: 1, UpperBound: 0},
	})
	if err := eng.ValidatePlan(root); err == nil {
		t.Fatal("expected ValidatePlan to reject lower bound > upper bound")
	}
}

func TestValidatePlan_RejectsEmptyMutexName(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	root := commandNode("drill-node", "drill.run", []string{""}, nil)
	if err := eng.ValidatePlan(root); err == nil {
		t.Fatal("expected ValidatePlan to reject an empty mutex name")
	}
}

func TestEvaluate_ReportsAllViolationsAcrossNodes(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	root := &exec.Node{
		ID:   "root",
		Type: exec.NodeList,
		Children: []*exec.Node{
			commandNode("node/one", "", []string{""}, []exec.ResourceValue{
				{Name: "power", LowerBound: 2, UpperBound: 1},
			}),
		},
	}
	root.Children[0].Parent = root

	result, err := eng.Evaluate(context.Background(), root)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Allowed {
		t.Fatal("expected Allowed = false")
	}
	if len(result.Violations) < 3 {
		t.Fatalf("Violations = %d, want at least 3 (dispatch target, bounds, mutex)", len(result.Violations))
	}
}

func TestDisablePolicy_SkipsDisabledPolicy(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := eng.DisablePolicy("dispatch-target"); err != nil {
		t.Fatalf("DisablePolicy: %v", err)
	}

	root := commandNode("drill-node", "", nil, nil)
	if err := eng.ValidatePlan(root); err != nil {
		t.Fatalf("ValidatePlan() = %v, want nil once dispatch-target is disabled", err)
	}
}
