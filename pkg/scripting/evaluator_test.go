package scripting

import (
	"context"
	"testing"
	"time"

	"github.com/planexec/planexec/pkg/exec"
)

const businessHoursScript = `
def businessHours(day):
    if day == 0 or day == 6:
        return False
    return True

def shiftCount(day, base):
    return base + day
`

func TestCache_Query_Bool(t *testing.T) {
	c, err := New(businessHoursScript, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	v, err := c.Query(context.Background(), "businessHours", []exec.Value{exec.IntValue(3)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	b, ok := v.Bool()
	if !ok || !b {
		t.Fatalf("businessHours(3) = %v, want true", v)
	}

	v, err = c.Query(context.Background(), "businessHours", []exec.Value{exec.IntValue(0)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	b, ok = v.Bool()
	if !ok || b {
		t.Fatalf("businessHours(0) = %v, want false", v)
	}
}

func TestCache_Query_MultiArg(t *testing.T) {
	c, err := New(businessHoursScript, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	v, err := c.Query(context.Background(), "shiftCount", []exec.Value{exec.IntValue(2), exec.IntValue(10)})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	i, ok := v.Int()
	if !ok || i != 12 {
		t.Fatalf("shiftCount(2, 10) = %v, want 12", v)
	}
}

func TestCache_Query_UndeclaredNameIsUnknown(t *testing.T) {
	c, err := New(businessHoursScript, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	v, err := c.Query(context.Background(), "noSuchLookup", nil)
	if err != nil {
		t.Fatalf("Query returned error for undeclared name: %v", err)
	}
	if v.IsKnown() {
		t.Fatalf("expected UNKNOWN, got %v", v)
	}
}

type recordingListener struct {
	notified int
}

func (r *recordingListener) NotifyChanged() { r.notified++ }

func TestCache_Reload_NotifiesSubscribers(t *testing.T) {
	c, err := New(businessHoursScript, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l := &recordingListener{}
	c.Subscribe("businessHours", []exec.Value{exec.IntValue(3)}, l)

	if err := c.Reload(businessHoursScript); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if l.notified != 1 {
		t.Fatalf("notified = %d, want 1", l.notified)
	}

	c.Unsubscribe("businessHours", []exec.Value{exec.IntValue(3)}, l)

	if err := c.Reload(businessHoursScript); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if l.notified != 1 {
		t.Fatalf("notified after unsubscribe = %d, want 1", l.notified)
	}
}

func TestNew_InvalidScript(t *testing.T) {
	if _, err := New("def broken(:", time.Second); err == nil {
		t.Fatal("expected error for invalid Starlark source")
	}
}
