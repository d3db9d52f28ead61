package exec

import (
	"strings"
	"testing"
)

func TestLoadHierarchyParsesAndFlattens(t *testing.T) {
	doc := `
% comment line, skipped
robot 1.0 1 arm -1 base
arm 2.0 1 gripper
`
	a := NewArbiter()
	if err := a.LoadHierarchy(strings.NewReader(doc)); err != nil {
		t.Fatalf("LoadHierarchy: %v", err)
	}
	if got := a.maxConsumable("robot"); got != 1.0 {
		t.Fatalf("maxConsumable(robot) = %v, want 1.0", got)
	}
	if got := a.maxConsumable("unknown"); got != 1.0 {
		t.Fatalf("maxConsumable(unknown) = %v, want default 1.0", got)
	}
	flat := map[string]childResource{}
	a.determineAllChildResources(ResourceValue{Name: "robot", UpperBound: 1.0}, flat)
	if len(flat) != 4 || flat["arm"].weight != 1 || flat["base"].weight != -1 || flat["gripper"].weight != 1 {
		t.Fatalf("flattened robot = %v, want robot, arm(1), base(-1), gripper(1)", flat)
	}
}

func TestLoadHierarchyRejectsDuplicateParent(t *testing.T) {
	doc := "robot 1.0\nrobot 2.0\n"
	a := NewArbiter()
	if err := a.LoadHierarchy(strings.NewReader(doc)); err == nil {
		t.Fatalf("expected error for duplicate parent")
	}
}

func TestLoadHierarchyRejectsCycle(t *testing.T) {
	doc := "a 1.0 1 b\nb 1.0 1 a\n"
	a := NewArbiter()
	if err := a.LoadHierarchy(strings.NewReader(doc)); err == nil {
		t.Fatalf("expected error for cyclic hierarchy")
	}
}

func TestLoadHierarchyBadFileLeavesPreviousIntact(t *testing.T) {
	a := NewArbiter()
	if err := a.LoadHierarchy(strings.NewReader("robot 1.0\n")); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	if err := a.LoadHierarchy(strings.NewReader("robot 1.0\nrobot 2.0\n")); err == nil {
		t.Fatalf("expected reload to fail")
	}
	if _, ok := a.hierarchy["robot"]; !ok {
		t.Fatalf("expected previous hierarchy to remain after failed reload")
	}
}

func TestArbitrateCommandsRespectsMaxAndPriority(t *testing.T) {
	a := NewArbiter()
	if err := a.LoadHierarchy(strings.NewReader("battery 1.0\n")); err != nil {
		t.Fatalf("LoadHierarchy: %v", err)
	}
	low := CommandRequest{ID: "low", Resources: []ResourceValue{{Name: "battery", Priority: 1, UpperBound: 0.7}}}
	high := CommandRequest{ID: "high", Resources: []ResourceValue{{Name: "battery", Priority: 0, UpperBound: 0.6}}}

	accepted, rejected := a.ArbitrateCommands([]CommandRequest{low, high})
	acceptedSet := map[string]bool{}
	for _, id := range accepted {
		acceptedSet[id] = true
	}
	if !acceptedSet["high"] {
		t.Fatalf("expected higher-priority command to be accepted, got accepted=%v rejected=%v", accepted, rejected)
	}
	if acceptedSet["low"] {
		t.Fatalf("expected lower-priority command to be rejected once budget exhausted")
	}
}

func TestArbitrateCommandsAcceptsResourceFreeCommands(t *testing.T) {
	a := NewArbiter()
	accepted, rejected := a.ArbitrateCommands([]CommandRequest{{ID: "free"}})
	if len(accepted) != 1 || accepted[0] != "free" {
		t.Fatalf("expected resource-free command to be accepted outright, got %v/%v", accepted, rejected)
	}
}

func TestReleaseResourcesForCommandDropsZeroEntries(t *testing.T) {
	a := NewArbiter()
	if err := a.LoadHierarchy(strings.NewReader("battery 1.0\n")); err != nil {
		t.Fatalf("LoadHierarchy: %v", err)
	}
	req := CommandRequest{ID: "c1", Resources: []ResourceValue{{Name: "battery", Priority: 0, UpperBound: 0.5, ReleaseOnTermination: true}}}
	accepted, _ := a.ArbitrateCommands([]CommandRequest{req})
	if len(accepted) != 1 {
		t.Fatalf("expected command to be accepted")
	}
	if _, ok := a.allocated["battery"]; !ok {
		t.Fatalf("expected ledger entry after acceptance")
	}
	a.ReleaseResourcesForCommand("c1")
	if _, ok := a.allocated["battery"]; ok {
		t.Fatalf("expected ledger entry to be removed once allocation reaches zero")
	}
}
