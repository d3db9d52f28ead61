package config

import (
	"context"
	"testing"
)

const validExecutiveYAML = `
name: drill-run
plan_path: plans/drill.plan.json
resource_hierarchy:
  path: resources/arbiter.yaml
  reload: true
mutexes:
  declared: [drill_rig, compressor]
transport:
  kind: grpc
  address: localhost:50051
store:
  path: ":memory:"
policy:
  enabled: true
  paths: [policies/]
  mode: enforcing
`

func TestLoader_LoadBytes_Valid(t *testing.T) {
	l := NewLoader()

	parsed, err := l.LoadBytes(context.Background(), []byte(validExecutiveYAML), "executive.yaml")
	if err != nil {
		t.Fatalf("LoadBytes returned error: %v", err)
	}

	if len(parsed.Errors) != 0 {
		t.Fatalf("expected no validation errors, got %v", parsed.Errors)
	}

	if parsed.Executive.Name != "drill-run" {
		t.Errorf("Name = %q, want drill-run", parsed.Executive.Name)
	}
	if parsed.Executive.Transport.Kind != "grpc" {
		t.Errorf("Transport.Kind = %q, want grpc", parsed.Executive.Transport.Kind)
	}
	if len(parsed.Executive.Mutexes.Declared) != 2 {
		t.Errorf("Mutexes.Declared = %v, want 2 entries", parsed.Executive.Mutexes.Declared)
	}
}

func TestLoader_LoadBytes_MissingRequiredField(t *testing.T) {
	l := NewLoader()

	badYAML := `
name: drill-run
resource_hierarchy:
  path: resources/arbiter.yaml
transport:
  kind: grpc
store:
  path: ":memory:"
`
	parsed, err := l.LoadBytes(context.Background(), []byte(badYAML), "executive.yaml")
	if err != nil {
		t.Fatalf("LoadBytes returned error: %v", err)
	}

	if len(parsed.Errors) == 0 {
		t.Fatal("expected validation error for missing plan_path")
	}
}

func TestLoader_LoadBytes_InvalidTransportKind(t *testing.T) {
	l := NewLoader()

	badYAML := `
name: drill-run
plan_path: plans/drill.plan.json
resource_hierarchy:
  path: resources/arbiter.yaml
transport:
  kind: carrier-pigeon
store:
  path: ":memory:"
`
	parsed, err := l.LoadBytes(context.Background(), []byte(badYAML), "executive.yaml")
	if err != nil {
		t.Fatalf("LoadBytes returned error: %v", err)
	}

	if len(parsed.Errors) == 0 {
		t.Fatal("expected validation error for invalid transport kind")
	}
}

func TestLoader_LoadBytes_MalformedYAML(t *testing.T) {
	l := NewLoader()

	parsed, err := l.LoadBytes(context.Background(), []byte("name: [unterminated"), "executive.yaml")
	if err != nil {
		t.Fatalf("LoadBytes returned error: %v", err)
	}

	if len(parsed.Errors) == 0 {
		t.Fatal("expected a yaml decode error")
	}
}

func TestLoader_DisableCUE_SkipsSchemaValidation(t *testing.T) {
	l := NewLoader().DisableCUE()

	parsed, err := l.LoadBytes(context.Background(), []byte(validExecutiveYAML), "executive.yaml")
	if err != nil {
		t.Fatalf("LoadBytes returned error: %v", err)
	}
	if len(parsed.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", parsed.Errors)
	}
}

func TestLoader_LoadFile_MissingFile(t *testing.T) {
	l := NewLoader()

	if _, err := l.LoadFile(context.Background(), "/nonexistent/executive.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
