// Package config loads and validates the YAML configuration for one
// planexec executive instance.
//
// # Overview
//
// A planexec run is described by an ExecutiveConfig: which plan file to load,
// how its resource hierarchy and declared mutexes are sourced, which
// transport dispatches its commands, and the ambient store, scripting,
// operator and policy configuration around it. Loader reads this from YAML,
// validates it with struct tags, and cross-validates it against a CUE
// schema registry.
//
// # Components
//
// Loader: reads an ExecutiveConfig from a file or raw bytes, validates it
// with go-playground/validator struct tags, then against the CUE schemas in
// SchemaRegistry.
//
// SchemaRegistry: manages CUE schemas for the executive, transport, resource
// hierarchy, policy and store sub-configurations. Built-in schemas cover all
// of them; custom schemas can be registered for embedding applications.
//
// # Usage
//
//	loader := config.NewLoader()
//	parsed, err := loader.LoadFile(ctx, "executive.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if len(parsed.Errors) > 0 {
//	    log.Fatalf("invalid config: %v", parsed.Errors)
//	}
//	cfg := parsed.Executive
//
// # Configuration Structure
//
//	name: drill-run
//	plan_path: plans/drill.plan.json
//	resource_hierarchy:
//	  path: resources/arbiter.yaml
//	  reload: true
//	mutexes:
//	  declared: [drill_rig, compressor]
//	transport:
//	  kind: grpc
//	  address: localhost:50051
//	store:
//	  path: /var/lib/planexec/state.db
//	policy:
//	  enabled: true
//	  paths: [policies/]
//	  mode: enforcing
//
// # Error Handling
//
// Parse and validation errors are collected rather than returned as a single
// error, so a caller can report every problem in one pass:
//
//	ValidationError{
//	    File:     "executive.yaml",
//	    Path:     "Transport.Address",
//	    Message:  "Transport.Address failed required validation",
//	    Severity: "error",
//	}
//
// # Hot Reload
//
// WatchFile watches a single file with fsnotify and runs a debounced
// callback when that file is written or created; see Watcher. Nothing in
// this package starts one: ResourceHierarchyConfig.Reload and
// PolicyConfig.Reload are decoded from YAML but not read by any code here.
//
// # Thread Safety
//
// SchemaRegistry is safe for concurrent use. Loader holds no mutable state
// across calls and is also safe for concurrent use.
package config
