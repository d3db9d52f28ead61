package config

import (
	"context"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas used to validate an ExecutiveConfig
// after it has been unmarshaled from YAML.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	ctx := cuecontext.New()
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}

	sr.registerBuiltInSchemas()

	return sr
}

func (sr *SchemaRegistry) registerBuiltInSchemas() {
	sr.RegisterSchema("executive", builtinExecutiveSchema)
	sr.RegisterSchema("transport", builtinTransportSchema)
	sr.RegisterSchema("resourceHierarchy", builtinResourceHierarchySchema)
	sr.RegisterSchema("policy", builtinPolicySchema)
	sr.RegisterSchema("store", builtinStoreSchema)
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

// Built-in schema definitions

const builtinExecutiveSchema = `
#Executive: {
	name: string & =~"^[a-zA-Z0-9_-]+$"
	plan_path: string
	library_paths?: [...string]
	resource_hierarchy: #ResourceHierarchy
	mutexes?: {
		declared?: [...string]
	}
	transport: #Transport
	store: #Store
	scripting?: {
		enabled: bool
		script_path?: string
	}
	operators?: [...{
		name:        string
		module_path: string
	}]
	policy?: #Policy
	variables?: {[string]: _}
}
`

const builtinTransportSchema = `
#Transport: {
	kind: "grpc" | "ssh"
	address?: string
	insecure?: bool
	user?: string
	private_key_path?: string
	known_hosts_path?: string
}
`

const builtinResourceHierarchySchema = `
#ResourceHierarchy: {
	path: string
	reload?: bool
}
`

const builtinPolicySchema = `
#Policy: {
	enabled: bool
	paths?: [...string]
	mode?: "advisory" | "enforcing"
	reload?: bool
}
`

const builtinStoreSchema = `
#Store: {
	path: string
	migrations_path?: string
}
`

// ValidateExecutive validates an ExecutiveConfig against the executive schema.
func (sr *SchemaRegistry) ValidateExecutive(ctx context.Context, cfg ExecutiveConfig) error {
	return sr.ValidateAgainstSchema(ctx, "executive", cfg)
}

// ValidateTransport validates a TransportConfig against the transport schema.
func (sr *SchemaRegistry) ValidateTransport(ctx context.Context, t TransportConfig) error {
	return sr.ValidateAgainstSchema(ctx, "transport", t)
}

// ValidateResourceHierarchy validates a ResourceHierarchyConfig.
func (sr *SchemaRegistry) ValidateResourceHierarchy(ctx context.Context, rh ResourceHierarchyConfig) error {
	return sr.ValidateAgainstSchema(ctx, "resourceHierarchy", rh)
}

// ValidatePolicy validates a PolicyConfig against the policy schema.
func (sr *SchemaRegistry) ValidatePolicy(ctx context.Context, p PolicyConfig) error {
	return sr.ValidateAgainstSchema(ctx, "policy", p)
}
