package exec

import "context"

// Lookup resolves its value from an external StateCache by name and
// argument list, the Expression-graph counterpart of spec's Lookup
// external interface. It re-queries and re-subscribes on activation and
// unsubscribes on deactivation so the cache never holds a reference to a
// node that is no longer part of the active plan.
type Lookup struct {
	base
	name  string
	args  []Expression
	cache StateCache
	ctx   context.Context
	val   Value
}

func NewLookup(ctx context.Context, cache StateCache, name string, args []Expression) *Lookup {
	return &Lookup{ctx: ctx, cache: cache, name: name, args: args}
}

func (l *Lookup) argValues() []Value {
	vals := make([]Value, len(l.args))
	for i, a := range l.args {
		vals[i] = a.Value()
	}
	return vals
}

func (l *Lookup) Activate() {
	if l.activateSelf() {
		for _, a := range l.args {
			a.Activate()
			a.AddListener(l)
		}
		v, err := l.cache.Query(l.ctx, l.name, l.argValues())
		if err == nil {
			l.val = v
		}
		l.cache.Subscribe(l.name, l.argValues(), l)
	}
}

func (l *Lookup) Deactivate() {
	if l.deactivateSelf() {
		l.cache.Unsubscribe(l.name, l.argValues(), l)
		for _, a := range l.args {
			a.RemoveListener(l)
			a.Deactivate()
		}
		l.val = Unknown()
	}
}

// NotifyChanged is called either by an argument expression changing (in
// which case the lookup re-queries with the new arguments) or by the
// StateCache delivering a fresh value for the current arguments.
func (l *Lookup) NotifyChanged() {
	if !l.isActive() {
		return
	}
	v, err := l.cache.Query(l.ctx, l.name, l.argValues())
	if err == nil {
		l.val = v
	}
	l.notify()
}

func (l *Lookup) Value() Value {
	if !l.isActive() {
		return Unknown()
	}
	return l.val
}
