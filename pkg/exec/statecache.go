package exec

import (
	"context"
	"sync"
)

// MemoryStateCache is a minimal in-process StateCache: callers push values
// with Set, and every Lookup expression subscribed to that (name, args)
// key is notified. It is used directly in tests and as the default cache
// when no durable backing (pkg/store) or scripted backing (pkg/scripting)
// is configured.
type MemoryStateCache struct {
	mu      sync.Mutex
	values  map[string]Value
	subs    map[string][]ChangeListener
}

func NewMemoryStateCache() *MemoryStateCache {
	return &MemoryStateCache{
		values: make(map[string]Value),
		subs:   make(map[string][]ChangeListener),
	}
}

func cacheKey(name string, args []Value) string {
	key := name
	for _, a := range args {
		key += "\x1f" + a.String()
	}
	return key
}

func (c *MemoryStateCache) Query(_ context.Context, name string, args []Value) (Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[cacheKey(name, args)]
	if !ok {
		return Unknown(), nil
	}
	return v, nil
}

func (c *MemoryStateCache) Subscribe(name string, args []Value, l ChangeListener) {
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

func (c *MemoryStateCache) Unsubscribe(name string, args []Value, l ChangeListener) {
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

// Set installs a new value for (name, args) and notifies every current
// subscriber, the way an external feed arriving asynchronously would.
func (c *MemoryStateCache) Set(name string, args []Value, v Value) {
	c.mu.Lock()
	key := cacheKey(name, args)
	c.values[key] = v
	subs := make([]ChangeListener, len(c.subs[key]))
	copy(subs, c.subs[key])
	c.mu.Unlock()
	for _, l := range subs {
		l.NotifyChanged()
	}
}
