// Package policy is an Open Policy Agent (OPA)-backed exec.PlanValidator:
// a compiled set of Rego policies evaluated over a plan's node tree before
// Executive.AddPlan or AddLibrary accepts it.
//
// # Architecture
//
//  1. Engine - compiles and evaluates Rego policies against a flattened
//     plan (PlanInput), and implements exec.PlanValidator.ValidatePlan
//  2. Loader - loads policies from .rego/.json files, directories, and
//     bundles, with fsnotify-driven hot reload
//  3. Types - Policy, PolicyViolation, PolicyResult, PlanInput
//  4. Built-in policies - the four invariants every plan must satisfy
//
// # Usage
//
//	logger := zerolog.New(os.Stdout)
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ex := exec.NewExecutive(iface, arbiter, mutexes)
//	ex.SetPolicyValidator(engine)
//	if err := ex.AddPlan(root); err != nil {
//	    // rejected by policy, err names the violated policy and node
//	}
//
// Loading custom policies in addition to the built-ins:
//
//	err = engine.LoadPolicies(ctx, []string{"/etc/planexec/policies"})
//
// # Built-in Policies
//
//  1. node-naming - node IDs are non-empty and alphanumeric/underscore/hyphen
//  2. dispatch-target - every Command node declares a non-empty dispatch target
//  3. resource-bounds - every resource request's lower bound <= upper bound
//  4. mutex-naming - every mutex a command uses has a non-empty name
//
// # Custom Policies
//
// Custom policies are plain Rego, evaluated against the same PlanInput
// shape ({"nodes": [...]}) the built-ins use:
//
//	package custom.policies.depth
//
//	import rego.v1
//
//	deny contains violation if {
//	    count(input.nodes) > 500
//	    violation := {
//	        "message": "plan exceeds 500 nodes",
//	        "severity": "warning",
//	    }
//	}
//
// # Severity Levels
//
//   - info / warning: recorded in PolicyResult.Violations but do not
//     fail ValidatePlan
//   - error / critical: fail ValidatePlan
//
// # Hot Reload
//
// Loader.Watch watches policy paths for changes and debounces a reload,
// the same fsnotify debounce pattern pkg/config's Watcher uses for a single
// watched file:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return engine.LoadPolicies(ctx, paths)
//	})
package policy
