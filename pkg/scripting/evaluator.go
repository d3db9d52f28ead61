// Package scripting provides a Starlark-scripted exec.StateCache: Lookup
// names are resolved by calling a same-named Starlark function instead of a
// Go callback or an external feed, adapted from the teacher's CUE/Starlark
// config evaluator.
package scripting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.starlark.net/starlark"

	"github.com/planexec/planexec/pkg/exec"
)

// DefaultTimeout bounds a single Starlark evaluation when none is configured.
const DefaultTimeout = 30 * time.Second

// Cache is an exec.StateCache backed by a Starlark script. The script
// declares one function per Lookup name; Query calls that function with the
// Lookup's arguments converted to Starlark values and converts the result
// back to an exec.Value. UNKNOWN is returned for names the script doesn't
// declare, matching a Lookup with no external binding.
type Cache struct {
	timeout time.Duration

	mu      sync.Mutex
	globals starlark.StringDict
	subs    map[string][]exec.ChangeListener
}

// New creates a Cache that evaluates script once at construction time. A
// zero timeout uses DefaultTimeout.
func New(script string, timeout time.Duration) (*Cache, error) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	c := &Cache{
		timeout: timeout,
		subs:    make(map[string][]exec.ChangeListener),
	}

	if err := c.reload(script); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Cache) reload(script string) error {
	thread := &starlark.Thread{
		Name:  "planexec-scripting",
		Print: func(*starlark.Thread, string) {},
	}

	predeclared := starlark.StringDict{
		"range": starlark.NewBuiltin("range", builtinRange),
	}

	globals, err := starlark.ExecFile(thread, "lookup.star", script, predeclared)
	if err != nil {
		return fmt.Errorf("scripting: evaluate lookup script: %w", err)
	}

	c.mu.Lock()
	c.globals = globals
	c.mu.Unlock()

	return nil
}

// Reload re-evaluates script, replacing the set of declared lookup
// functions, then notifies every currently subscribed listener — the
// scripted equivalent of a real external system pushing a fresh value.
func (c *Cache) Reload(script string) error {
	if err := c.reload(script); err != nil {
		return err
	}

	c.mu.Lock()
	var all []exec.ChangeListener
	seen := make(map[exec.ChangeListener]bool)
	for _, ls := range c.subs {
		for _, l := range ls {
			if !seen[l] {
				seen[l] = true
				all = append(all, l)
			}
		}
	}
	c.mu.Unlock()

	for _, l := range all {
		l.NotifyChanged()
	}

	return nil
}

// Query evaluates the Starlark function named name with args, bounded by
// the configured timeout. A name with no matching function resolves to
// UNKNOWN rather than an error, since a plan may Lookup names no script
// backs.
func (c *Cache) Query(ctx context.Context, name string, args []exec.Value) (exec.Value, error) {
	c.mu.Lock()
	fn, ok := c.globals[name]
	c.mu.Unlock()

	if !ok {
		return exec.Unknown(), nil
	}

	callable, ok := fn.(starlark.Callable)
	if !ok {
		return exec.Unknown(), fmt.Errorf("scripting: %s is not callable", name)
	}

	evalCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resultCh := make(chan starlark.Value, 1)
	errCh := make(chan error, 1)

	go func() {
		starArgs := make(starlark.Tuple, len(args))
		for i, a := range args {
			v, err := toStarlarkValue(a)
			if err != nil {
				errCh <- err
				return
			}
			starArgs[i] = v
		}

		thread := &starlark.Thread{
			Name:  "planexec-scripting",
			Print: func(*starlark.Thread, string) {},
		}

		result, err := starlark.Call(thread, callable, starArgs, nil)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- result
	}()

	select {
	case <-evalCtx.Done():
		return exec.Unknown(), fmt.Errorf("scripting: %s timed out after %v", name, c.timeout)
	case err := <-errCh:
		return exec.Unknown(), fmt.Errorf("scripting: %s: %w", name, err)
	case result := <-resultCh:
		return fromStarlarkValue(result)
	}
}

// Subscribe registers l for notification when Reload next runs.
func (c *Cache) Subscribe(name string, args []exec.Value, l exec.ChangeListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(name, args)
	for _, existing := range c.subs[key] {
		if existing == l {
			return
		}
	}
	c.subs[key] = append(c.subs[key], l)
}

// Unsubscribe removes l from the (name, args) subscription.
func (c *Cache) Unsubscribe(name string, args []exec.Value, l exec.ChangeListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(name, args)
	subs := c.subs[key]
	for i, existing := range subs {
		if existing == l {
			c.subs[key] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func cacheKey(name string, args []exec.Value) string {
	key := name
	for _, a := range args {
		key += "\x1f" + a.String()
	}
	return key
}

// toStarlarkValue converts a single exec.Value to its Starlark equivalent.
func toStarlarkValue(v exec.Value) (starlark.Value, error) {
	switch v.Kind() {
	case exec.KindUnknown:
		return starlark.None, nil
	case exec.KindBool:
		b, _ := v.Bool()
		return starlark.Bool(b), nil
	case exec.KindInt:
		i, _ := v.Int()
		return starlark.MakeInt64(i), nil
	case exec.KindFloat:
		f, _ := v.Float()
		return starlark.Float(f), nil
	case exec.KindString:
		s, _ := v.StrValue()
		return starlark.String(s), nil
	case exec.KindArray:
		arr, _ := v.Array()
		list := make([]starlark.Value, len(arr))
		for i, item := range arr {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	default:
		return nil, fmt.Errorf("unsupported value kind %v", v.Kind())
	}
}

// fromStarlarkValue converts a Starlark result back to an exec.Value.
func fromStarlarkValue(v starlark.Value) (exec.Value, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return exec.Unknown(), nil
	case starlark.Bool:
		return exec.BoolValue(bool(val)), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return exec.Unknown(), fmt.Errorf("integer too large")
		}
		return exec.IntValue(i), nil
	case starlark.Float:
		return exec.FloatValue(float64(val)), nil
	case starlark.String:
		return exec.StringValue(string(val)), nil
	case *starlark.List:
		items := make([]exec.Value, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return exec.Unknown(), err
			}
			items[i] = item
		}
		return exec.ArrayValue(items), nil
	default:
		return exec.Unknown(), fmt.Errorf("unsupported starlark result type: %s", v.Type())
	}
}

// builtinRange implements the range() built-in used by lookup scripts that
// synthesize arrays.
func builtinRange(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var start, stop, step int64 = 0, 0, 1

	switch len(args) {
	case 1:
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "stop", &stop); err != nil {
			return nil, err
		}
	case 2:
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "start", &start, "stop", &stop); err != nil {
			return nil, err
		}
	case 3:
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "start", &start, "stop", &stop, "step", &step); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("range takes 1 to 3 arguments, got %d", len(args))
	}

	if step == 0 {
		return nil, fmt.Errorf("range step cannot be zero")
	}

	var list []starlark.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			list = append(list, starlark.MakeInt64(i))
		}
	} else {
		for i := start; i > stop; i += step {
			list = append(list, starlark.MakeInt64(i))
		}
	}

	return starlark.NewList(list), nil
}
