package config

import (
	"time"
)

// TransportConfig selects and configures the ExternalInterface transport the
// executive dispatches commands through.
type TransportConfig struct {
	// Kind selects the transport implementation (grpc, ssh).
	Kind string `json:"kind" yaml:"kind" validate:"required,oneof=grpc ssh"`

	// Address is the dial target for the grpc transport, or host:port for ssh.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`

	// Insecure disables TLS for the grpc transport.
	Insecure bool `json:"insecure,omitempty" yaml:"insecure,omitempty"`

	// User is the SSH username for the ssh transport.
	User string `json:"user,omitempty" yaml:"user,omitempty"`

	// PrivateKeyPath is the SSH private key path for the ssh transport.
	PrivateKeyPath string `json:"private_key_path,omitempty" yaml:"private_key_path,omitempty"`

	// KnownHostsPath is the SSH known_hosts path for the ssh transport.
	KnownHostsPath string `json:"known_hosts_path,omitempty" yaml:"known_hosts_path,omitempty"`
}

// MutexConfig declares a named mutex the plan is allowed to reference. An
// empty Declared list means any mutex name a plan uses is accepted; when
// non-empty it acts as an allowlist enforced by the policy engine.
type MutexConfig struct {
	Declared []string `json:"declared,omitempty" yaml:"declared,omitempty"`
}

// StoreConfig configures the sqlite-backed state cache and log store.
type StoreConfig struct {
	// Path is the sqlite database file path (":memory:" for an ephemeral store).
	Path string `json:"path" yaml:"path" validate:"required"`

	// MigrationsPath overrides the embedded migration source, mainly for tests.
	MigrationsPath string `json:"migrations_path,omitempty" yaml:"migrations_path,omitempty"`
}

// ScriptingConfig configures the Starlark-backed scripted state cache.
type ScriptingConfig struct {
	// Enabled turns on Starlark lookup resolution.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// ScriptPath is the Starlark source evaluated for lookups.
	ScriptPath string `json:"script_path,omitempty" yaml:"script_path,omitempty"`

	// Timeout bounds a single Starlark evaluation.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// OperatorConfig configures a single wazero-hosted custom expression operator.
type OperatorConfig struct {
	// Name is the operator name as referenced from plan expressions.
	Name string `json:"name" yaml:"name" validate:"required"`

	// ModulePath is the path to the compiled WASM module implementing it.
	ModulePath string `json:"module_path" yaml:"module_path" validate:"required"`
}

// PolicyConfig configures the OPA/rego plan validator.
type PolicyConfig struct {
	// Enabled turns on policy validation of plans before they are added to
	// the executive.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Paths lists rego policy file or directory paths.
	Paths []string `json:"paths,omitempty" yaml:"paths,omitempty"`

	// Mode is the enforcement mode (advisory, enforcing).
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,oneof=advisory enforcing"`

	// Reload is decoded from the reload key; no code in this module reads
	// it, so setting it starts no watcher on the policy paths.
	Reload bool `json:"reload,omitempty" yaml:"reload,omitempty"`
}

// ResourceHierarchyConfig locates the resource hierarchy description the
// arbiter loads at startup.
type ResourceHierarchyConfig struct {
	// Path is the hierarchy file path (see Arbiter.LoadHierarchyFile).
	Path string `json:"path" yaml:"path" validate:"required"`

	// Reload is decoded from the reload key; no code in this module reads
	// it, so setting it starts no watcher on Path.
	Reload bool `json:"reload,omitempty" yaml:"reload,omitempty"`
}

// ExecutiveConfig is the top-level configuration for one planexec process:
// which plan to run, how its resource hierarchy and mutexes are declared,
// which transport dispatches its commands, and the ambient policy, store,
// scripting and operator configuration around it.
type ExecutiveConfig struct {
	// Name identifies this executive instance for telemetry and logging.
	Name string `json:"name" yaml:"name" validate:"required"`

	// PlanPath is the path to the root plan file (see internal/planio).
	PlanPath string `json:"plan_path" yaml:"plan_path" validate:"required"`

	// LibraryPaths are additional plan files loaded as call targets.
	LibraryPaths []string `json:"library_paths,omitempty" yaml:"library_paths,omitempty"`

	// ResourceHierarchy configures the arbiter's resource tree.
	ResourceHierarchy ResourceHierarchyConfig `json:"resource_hierarchy" yaml:"resource_hierarchy"`

	// Mutexes declares the process-wide named mutexes a plan may use.
	Mutexes MutexConfig `json:"mutexes,omitempty" yaml:"mutexes,omitempty"`

	// Transport configures command dispatch.
	Transport TransportConfig `json:"transport" yaml:"transport"`

	// Store configures the sqlite state cache.
	Store StoreConfig `json:"store" yaml:"store"`

	// Scripting configures the Starlark scripted lookup backend.
	Scripting ScriptingConfig `json:"scripting,omitempty" yaml:"scripting,omitempty"`

	// Operators configures wazero-hosted custom expression operators.
	Operators []OperatorConfig `json:"operators,omitempty" yaml:"operators,omitempty"`

	// Policy configures the OPA-backed plan validator.
	Policy PolicyConfig `json:"policy,omitempty" yaml:"policy,omitempty"`

	// Variables are top-level variables substituted into the plan.
	Variables map[string]interface{} `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// ValidationError represents a single configuration or plan validation
// error with location information.
type ValidationError struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity" validate:"required,oneof=error warning info"`
}

// ConfigSource represents a source of CUE configuration used to validate an
// ExecutiveConfig after it has been unmarshaled from YAML.
type ConfigSource struct {
	Type    string `json:"type" validate:"required,oneof=file directory inline"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
}

// ParsedConfig is the result of loading and validating an ExecutiveConfig.
type ParsedConfig struct {
	Executive   ExecutiveConfig   `json:"executive"`
	SourceFiles []string          `json:"source_files"`
	ParsedAt    time.Time         `json:"parsed_at"`
	Errors      []ValidationError `json:"errors,omitempty"`
}
