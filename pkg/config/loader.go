package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Loader reads an ExecutiveConfig from YAML, validates it with struct tags,
// and optionally cross-validates it against the CUE schemas in SchemaRegistry.
type Loader struct {
	schemas       *SchemaRegistry
	validator     *validator.Validate
	validateCUE   bool
}

// NewLoader creates a Loader. CUE cross-validation runs in addition to the
// go-playground/validator struct tags unless disabled with DisableCUE.
func NewLoader() *Loader {
	return &Loader{
		schemas:     NewSchemaRegistry(),
		validator:   validator.New(),
		validateCUE: true,
	}
}

// DisableCUE turns off the CUE schema cross-validation pass, leaving only
// struct-tag validation. Mainly useful in tests that exercise deliberately
// malformed configs one field at a time.
func (l *Loader) DisableCUE() *Loader {
	l.validateCUE = false
	return l
}

// LoadFile reads and validates an ExecutiveConfig from a YAML file.
func (l *Loader) LoadFile(ctx context.Context, path string) (*ParsedConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return l.parse(ctx, content, path)
}

// LoadBytes reads and validates an ExecutiveConfig from raw YAML content.
// sourceName is recorded in the result's SourceFiles and error locations.
func (l *Loader) LoadBytes(ctx context.Context, content []byte, sourceName string) (*ParsedConfig, error) {
	return l.parse(ctx, content, sourceName)
}

func (l *Loader) parse(ctx context.Context, content []byte, sourceName string) (*ParsedConfig, error) {
	parsed := &ParsedConfig{
		SourceFiles: []string{sourceName},
		ParsedAt:    time.Now(),
	}

	var cfg ExecutiveConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		parsed.Errors = append(parsed.Errors, ValidationError{
			File:     sourceName,
			Message:  fmt.Sprintf("yaml decode: %v", err),
			Severity: "error",
		})
		return parsed, nil
	}

	if err := l.validator.Struct(cfg); err != nil {
		for _, fe := range err.(validator.ValidationErrors) {
			parsed.Errors = append(parsed.Errors, ValidationError{
				File:     sourceName,
				Path:     fe.Namespace(),
				Message:  fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()),
				Severity: "error",
			})
		}
	}

	if l.validateCUE && len(parsed.Errors) == 0 {
		if err := l.schemas.ValidateExecutive(ctx, cfg); err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{
				File:     sourceName,
				Path:     "executive",
				Message:  err.Error(),
				Severity: "error",
			})
		}
	}

	parsed.Executive = cfg
	return parsed, nil
}

// SchemaRegistry exposes the loader's schema registry, mainly so callers can
// register additional application-specific schemas before loading.
func (l *Loader) SchemaRegistry() *SchemaRegistry {
	return l.schemas
}
