package operators

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/planexec/planexec/pkg/exec"
)

// DefaultTimeout bounds one Eval call against a registered operator.
const DefaultTimeout = 5 * time.Second

// DefaultMemoryLimitPages caps an operator module's linear memory at 16MB
// (64KB per page).
const DefaultMemoryLimitPages = 256

// Registry hosts compiled WASM operator modules, each registered under an
// operator name and invoked from an arithmetic/logical expression node
// without requiring a compiled-in Go implementation. Unlike a resource
// provider, an operator has no lifecycle beyond eval: no init/plan/apply,
// and no host capability surface — it is a pure function sandbox.
type Registry struct {
	mu        sync.RWMutex
	runtime   wazero.Runtime
	operators map[string]*operatorInstance
	timeout   time.Duration
}

type operatorInstance struct {
	manifest *Manifest
	module   api.Module
	bridge   *bridge
}

// NewRegistry creates an operator registry backed by one wazero runtime
// shared across every registered module.
func NewRegistry(ctx context.Context) (*Registry, error) {
	runtime := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().
		WithMemoryLimitPages(DefaultMemoryLimitPages).
		WithCloseOnContextDone(true))

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	return &Registry{
		runtime:   runtime,
		operators: make(map[string]*operatorInstance),
		timeout:   DefaultTimeout,
	}, nil
}

// Register compiles wasmModule and registers it under name, replacing any
// existing operator with the same name after closing it.
func (r *Registry) Register(ctx context.Context, name string, wasmModule []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	module, err := r.runtime.Instantiate(ctx, wasmModule)
	if err != nil {
		return fmt.Errorf("instantiate operator %s: %w", name, err)
	}

	br, err := newBridge(module, r.timeout)
	if err != nil {
		module.Close(ctx)
		return fmt.Errorf("build bridge for operator %s: %w", name, err)
	}

	if existing, ok := r.operators[name]; ok {
		existing.module.Close(ctx)
	}

	r.operators[name] = &operatorInstance{module: module, bridge: br}
	return nil
}

// RegisterFromManifest loads and registers the operator described by a
// manifest file.
func (r *Registry) RegisterFromManifest(ctx context.Context, manifestPath string) error {
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	wasmModule, err := m.LoadWasm()
	if err != nil {
		return err
	}
	if err := r.Register(ctx, m.Name, wasmModule); err != nil {
		return err
	}

	r.mu.Lock()
	r.operators[m.Name].manifest = m
	r.mu.Unlock()
	return nil
}

// Eval invokes the named operator's eval export with args and returns the
// Value it computes. An unregistered name is a configuration error, not an
// UNKNOWN propagation: it fails loudly rather than silently going unknown.
func (r *Registry) Eval(ctx context.Context, name string, args []exec.Value) (exec.Value, error) {
	r.mu.RLock()
	op, ok := r.operators[name]
	r.mu.RUnlock()
	if !ok {
		return exec.Unknown(), fmt.Errorf("operator %q is not registered", name)
	}
	return op.bridge.Eval(ctx, args)
}

// Has reports whether an operator is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.operators[name]
	return ok
}

// Unregister closes and removes the named operator module.
func (r *Registry) Unregister(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.operators[name]
	if !ok {
		return nil
	}
	delete(r.operators, name)
	return op.module.Close(ctx)
}

// Close closes every registered operator module and the shared runtime.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, op := range r.operators {
		if err := op.module.Close(ctx); err != nil {
			return fmt.Errorf("close operator %s: %w", name, err)
		}
	}
	r.operators = make(map[string]*operatorInstance)

	return r.runtime.Close(ctx)
}
