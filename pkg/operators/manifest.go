package operators

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest describes one compiled WASM operator module: the arithmetic or
// logical function it exports and where to find the module bytes.
type Manifest struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	Author    string `yaml:"author"`
	License   string `yaml:"license"`
	Entrypoint string `yaml:"entrypoint"`
	Checksum  string `yaml:"checksum,omitempty"`

	// wasmPath is Entrypoint resolved against the manifest's directory.
	wasmPath string
}

// LoadManifest reads and validates a manifest YAML file, resolving its
// entrypoint path relative to the manifest's own directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest YAML: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	if filepath.IsAbs(m.Entrypoint) {
		m.wasmPath = m.Entrypoint
	} else {
		m.wasmPath = filepath.Join(filepath.Dir(path), m.Entrypoint)
	}
	if _, err := os.Stat(m.wasmPath); err != nil {
		return nil, fmt.Errorf("WASM module not found at %s: %w", m.wasmPath, err)
	}

	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Name == "" {
		return fmt.Errorf("operator name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("operator version is required")
	}
	if m.Entrypoint == "" {
		return fmt.Errorf("entrypoint is required")
	}
	return nil
}

// WasmPath returns the resolved path to the operator's compiled module.
func (m *Manifest) WasmPath() string { return m.wasmPath }

// LoadWasm reads the operator's module bytes and, when the manifest
// declares a checksum, verifies them against it.
func (m *Manifest) LoadWasm() ([]byte, error) {
	data, err := os.ReadFile(m.wasmPath)
	if err != nil {
		return nil, fmt.Errorf("read WASM module: %w", err)
	}
	if m.Checksum != "" {
		if err := m.VerifyChecksum(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// VerifyChecksum checks wasmModule's sha256 against the manifest's
// declared checksum.
func (m *Manifest) VerifyChecksum(wasmModule []byte) error {
	sum := sha256.Sum256(wasmModule)
	got := hex.EncodeToString(sum[:])
	if got != m.Checksum {
		return fmt.Errorf("WASM module checksum mismatch: expected %s, got %s", m.Checksum, got)
	}
	return nil
}
