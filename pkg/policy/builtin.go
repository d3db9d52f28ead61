package policy

import "time"

// GetBuiltinPolicies returns the built-in plan-tree policies: node-id
// naming, Command dispatch-target presence, resource bound ordering, and
// mutex name non-emptiness.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		nodeNamingPolicy(),
		dispatchTargetPolicy(),
		resourceBoundsPolicy(),
		mutexNamingPolicy(),
	}
}

// nodeNamingPolicy enforces the node-ID naming convention.
func nodeNamingPolicy() Policy {
	return Policy{
		Name:        "node-naming",
		Description: "Node IDs must be non-empty and contain only letters, digits, underscores, and hyphens",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package planexec.policies.naming

import rego.v1

deny contains violation if {
	some node in input.nodes
	node.id == ""
	violation := {
		"message": "node has an empty id",
		"severity": "error",
	}
}

deny contains violation if {
	some node in input.nodes
	node.id != ""
	not regex.match("^[A-Za-z0-9_-]+$", node.id)
	violation := {
		"message": sprintf("node id %q must contain only letters, digits, underscores, and hyphens", [node.id]),
		"severity": "error",
		"node_id": node.id,
	}
}`,
	}
}

// dispatchTargetPolicy requires every Command node to declare a dispatch
// target (a non-empty command name), the plan-domain equivalent of the
// teacher's provider-name requirement.
func dispatchTargetPolicy() Policy {
	return Policy{
		Name:        "dispatch-target",
		Description: "Every Command node must declare a non-empty dispatch target",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"command", "dispatch"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package planexec.policies.dispatch

import rego.v1

deny contains violation if {
	some node in input.nodes
	node.type == "Command"
	node.command_name == ""
	violation := {
		"message": sprintf("command node %q does not declare a dispatch target", [node.id]),
		"severity": "error",
		"node_id": node.id,
	}
}`,
	}
}

// resourceBoundsPolicy requires every resource request's lower bound to
// not exceed its upper bound.
func resourceBoundsPolicy() Policy {
	return Policy{
		Name:        "resource-bounds",
		Description: "Every resource request's lower bound must not exceed its upper bound",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"resources", "arbiter"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package planexec.policies.resources

import rego.v1

deny contains violation if {
	some node in input.nodes
	some resource in node.resources
	resource.lower_bound > resource.upper_bound
	violation := {
		"message": sprintf("resource %q on node %q has lower bound %v greater than upper bound %v",
			[resource.name, node.id, resource.lower_bound, resource.upper_bound]),
		"severity": "error",
		"node_id": node.id,
	}
}`,
	}
}

// mutexNamingPolicy requires every mutex a Command node uses to have a
// non-empty name.
func mutexNamingPolicy() Policy {
	return Policy{
		Name:        "mutex-naming",
		Description: "Every mutex a command node uses must have a non-empty name",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"mutexes"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package planexec.policies.mutexes

import rego.v1

deny contains violation if {
	some node in input.nodes
	some mutex in node.mutexes
	mutex == ""
	violation := {
		"message": sprintf("command node %q declares an empty mutex name", [node.id]),
		"severity": "error",
		"node_id": node.id,
	}
}`,
	}
}
