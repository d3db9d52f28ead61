package exec

import "sync"

// Mutex is a named, process-wide exclusion lock a Command node can declare
// it must hold while Executing. Acquisition never blocks: a node that
// cannot acquire is added to the waiter list and becomes a candidate again
// only when the holder releases, matching the original executive's
// cooperative (non-blocking) mutex semantics.
type Mutex struct {
	mu      sync.Mutex
	name    string
	holder  *Node
	waiters []*Node
}

func newMutex(name string) *Mutex {
	return &Mutex{name: name}
}

func (m *Mutex) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

func (m *Mutex) Holder() *Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holder
}

// Acquire grants the mutex to n if free. If already held by another node,
// n is added to the waiter list (if not already present) and acquisition
// fails.
func (m *Mutex) Acquire(n *Node) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holder == nil {
		m.holder = n
		m.removeWaiterLocked(n)
		return true
	}
	if m.holder == n {
		return true
	}
	m.addWaiterLocked(n)
	return false
}

// Release clears the holder (which must be n) and notifies every waiter
// that the mutex may now be acquired — it does not implicitly grant the
// mutex to any of them, each must re-attempt Acquire on its next
// candidacy check.
func (m *Mutex) Release(n *Node) {
	m.mu.Lock()
	if m.holder != n {
		m.mu.Unlock()
		return
	}
	m.holder = nil
	waiters := make([]*Node, len(m.waiters))
	copy(waiters, m.waiters)
	m.waiters = nil
	m.mu.Unlock()
	for _, w := range waiters {
		w.notifyCandidate()
	}
}

func (m *Mutex) addWaiterLocked(n *Node) {
	for _, w := range m.waiters {
		if w == n {
			return
		}
	}
	m.waiters = append(m.waiters, n)
}

func (m *Mutex) removeWaiterLocked(n *Node) {
	for i, w := range m.waiters {
		if w == n {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return
		}
	}
}

// MutexRegistry is the process-wide table of named mutexes a plan's
// Command nodes reference by name. Mutexes are created lazily on first
// reference and live for the lifetime of the registry.
type MutexRegistry struct {
	mu      sync.Mutex
	mutexes map[string]*Mutex
}

func NewMutexRegistry() *MutexRegistry {
	return &MutexRegistry{mutexes: make(map[string]*Mutex)}
}

// Ensure returns the named mutex, creating it if this is the first
// reference.
func (r *MutexRegistry) Ensure(name string) *Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.mutexes[name]; ok {
		return m
	}
	m := newMutex(name)
	r.mutexes[name] = m
	return m
}
