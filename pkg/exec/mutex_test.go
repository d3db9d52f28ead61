package exec

import "testing"

func TestMutexAcquireRelease(t *testing.T) {
	reg := NewMutexRegistry()
	m := reg.Ensure("drill")

	a := &Node{ID: "a"}
	b := &Node{ID: "b"}

	if !m.Acquire(a) {
		t.Fatalf("expected a to acquire free mutex")
	}
	if m.Acquire(b) {
		t.Fatalf("expected b to fail acquiring held mutex")
	}
	if m.Holder() != a {
		t.Fatalf("expected a to be holder")
	}

	m.Release(a)
	if m.Holder() != nil {
		t.Fatalf("expected mutex to be free after release")
	}
}

func TestMutexRegistryEnsureIdempotent(t *testing.T) {
	reg := NewMutexRegistry()
	m1 := reg.Ensure("x")
	m2 := reg.Ensure("x")
	if m1 != m2 {
		t.Fatalf("expected Ensure to return the same mutex for repeated names")
	}
}

func TestMutexReacquireBySameHolder(t *testing.T) {
	reg := NewMutexRegistry()
	m := reg.Ensure("drill")
	a := &Node{ID: "a"}
	if !m.Acquire(a) {
		t.Fatalf("expected first acquire to succeed")
	}
	if !m.Acquire(a) {
		t.Fatalf("expected re-acquire by current holder to succeed")
	}
}
