package config

import (
	"context"
	"testing"
)

func TestSchemaRegistry_RegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	customSchema := `
#CustomType: {
	field1: string
	field2: int
}
`

	if err := sr.RegisterSchema("custom", customSchema); err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	schema, ok := sr.GetSchema("custom")
	if !ok {
		t.Fatal("expected to find custom schema")
	}

	if schema.Err() != nil {
		t.Errorf("schema has errors: %v", schema.Err())
	}
}

func TestSchemaRegistry_BuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	builtins := []string{
		"executive",
		"transport",
		"resourceHierarchy",
		"policy",
		"store",
	}

	for _, name := range builtins {
		t.Run(name, func(t *testing.T) {
			schema, ok := sr.GetSchema(name)
			if !ok {
				t.Fatalf("built-in schema %s not found", name)
			}

			if schema.Err() != nil {
				t.Errorf("built-in schema %s has errors: %v", name, schema.Err())
			}
		})
	}
}

func TestSchemaRegistry_ValidateExecutive(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     ExecutiveConfig
		wantErr bool
	}{
		{
			name: "valid executive",
			cfg: ExecutiveConfig{
				Name:     "drill-run",
				PlanPath: "plans/drill.plan.json",
				ResourceHierarchy: ResourceHierarchyConfig{
					Path: "resources/arbiter.yaml",
				},
				Transport: TransportConfig{Kind: "grpc", Address: "localhost:50051"},
				Store:     StoreConfig{Path: ":memory:"},
			},
			wantErr: false,
		},
		{
			name: "invalid transport kind",
			cfg: ExecutiveConfig{
				Name:     "drill-run",
				PlanPath: "plans/drill.plan.json",
				ResourceHierarchy: ResourceHierarchyConfig{
					Path: "resources/arbiter.yaml",
				},
				Transport: TransportConfig{Kind: "carrier-pigeon"},
				Store:     StoreConfig{Path: ":memory:"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateExecutive(ctx, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateExecutive() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchemaRegistry_ValidateTransport(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	if err := sr.ValidateTransport(ctx, TransportConfig{Kind: "ssh", User: "root"}); err != nil {
		t.Errorf("expected valid ssh transport, got %v", err)
	}

	if err := sr.ValidateTransport(ctx, TransportConfig{Kind: "telnet"}); err == nil {
		t.Error("expected error for unsupported transport kind")
	}
}

func TestSchemaRegistry_ListSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	names := sr.ListSchemas()
	if len(names) != 5 {
		t.Fatalf("expected 5 built-in schemas, got %d: %v", len(names), names)
	}
}
