package operators

import (
	"context"
	"testing"

	"github.com/planexec/planexec/pkg/exec"
)

func TestRegistry_EvalUnregisteredOperator(t *testing.T) {
	ctx := context.Background()
	reg, err := NewRegistry(ctx)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer reg.Close(ctx)

	if reg.Has("clamp") {
		t.Fatal("expected no operators registered yet")
	}

	_, err = reg.Eval(ctx, "clamp", []exec.Value{exec.FloatValue(1)})
	if err == nil {
		t.Fatal("expected error evaluating an unregistered operator")
	}
}

func TestRegistry_RegisterInvalidModuleFails(t *testing.T) {
	ctx := context.Background()
	reg, err := NewRegistry(ctx)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer reg.Close(ctx)

	err = reg.Register(ctx, "broken", []byte("not a real wasm module"))
	if err == nil {
		t.Fatal("expected error registering a malformed WASM module")
	}
	if reg.Has("broken") {
		t.Fatal("a module that failed to instantiate should not be registered")
	}
}

func TestRegistry_CloseWithNoOperators(t *testing.T) {
	ctx := context.Background()
	reg, err := NewRegistry(ctx)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := reg.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
