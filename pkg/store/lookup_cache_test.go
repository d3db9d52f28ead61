package store

import (
	"context"
	"testing"

	"github.com/planexec/planexec/pkg/exec"
)

func TestLookupCache_QueryUnknownByDefault(t *testing.T) {
	s := newTestStore(t)
	c := NewLookupCache(s)

	v, err := c.Query(context.Background(), "businessHours", []exec.Value{exec.IntValue(3)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if v.IsKnown() {
		t.Fatalf("expected UNKNOWN, got %v", v)
	}
}

func TestLookupCache_SetThenQuery(t *testing.T) {
	s := newTestStore(t)
	c := NewLookupCache(s)
	ctx := context.Background()

	if err := c.Set(ctx, "businessHours", []exec.Value{exec.IntValue(3)}, exec.BoolValue(true)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, err := c.Query(ctx, "businessHours", []exec.Value{exec.IntValue(3)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	b, ok := v.Bool()
	if !ok || !b {
		t.Fatalf("Query after Set = %v, want true", v)
	}

	// A different argument tuple is a distinct key.
	v, err = c.Query(ctx, "businessHours", []exec.Value{exec.IntValue(6)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if v.IsKnown() {
		t.Fatalf("expected UNKNOWN for distinct args, got %v", v)
	}
}

type countingListener struct{ n int }

func (c *countingListener) NotifyChanged() { c.n++ }

func TestLookupCache_SetNotifiesSubscribers(t *testing.T) {
	s := newTestStore(t)
	c := NewLookupCache(s)
	ctx := context.Background()

	l := &countingListener{}
	c.Subscribe("battery", nil, l)

	if err := c.Set(ctx, "battery", nil, exec.FloatValue(0.5)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if l.n != 1 {
		t.Fatalf("notified = %d, want 1", l.n)
	}

	c.Unsubscribe("battery", nil, l)

	if err := c.Set(ctx, "battery", nil, exec.FloatValue(0.7)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if l.n != 1 {
		t.Fatalf("notified after unsubscribe = %d, want 1", l.n)
	}
}

func TestLookupCache_Set_RejectsArrayValue(t *testing.T) {
	s := newTestStore(t)
	c := NewLookupCache(s)

	err := c.Set(context.Background(), "coords", nil, exec.ArrayValue([]exec.Value{exec.IntValue(1)}))
	if err == nil {
		t.Fatal("expected error persisting an array value")
	}
}
