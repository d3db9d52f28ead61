package operators

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, yaml string) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifest_ResolvesEntrypointRelativeToManifestDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "clamp.wasm"), []byte("fake wasm"), 0644); err != nil {
		t.Fatalf("write fake wasm: %v", err)
	}

	path := writeManifest(t, dir, `
name: clamp
version: 1.0.0
author: test
license: MIT
entrypoint: clamp.wasm
`)

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Name != "clamp" {
		t.Errorf("Name = %q, want clamp", m.Name)
	}
	if m.WasmPath() != filepath.Join(dir, "clamp.wasm") {
		t.Errorf("WasmPath() = %q", m.WasmPath())
	}
}

func TestLoadManifest_MissingWasmFile(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
name: clamp
version: 1.0.0
entrypoint: missing.wasm
`)

	if _, err := LoadManifest(path); err == nil {
		t.Fatal("expected error for missing WASM module")
	}
}

func TestLoadManifest_RequiresName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.wasm"), []byte("x"), 0644); err != nil {
		t.Fatalf("write fake wasm: %v", err)
	}
	path := writeManifest(t, dir, `
version: 1.0.0
entrypoint: x.wasm
`)

	if _, err := LoadManifest(path); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestManifest_VerifyChecksum(t *testing.T) {
	dir := t.TempDir()
	wasm := []byte("fake wasm bytes")
	if err := os.WriteFile(filepath.Join(dir, "x.wasm"), wasm, 0644); err != nil {
		t.Fatalf("write fake wasm: %v", err)
	}
	path := writeManifest(t, dir, `
name: x
version: 1.0.0
entrypoint: x.wasm
checksum: wrongchecksum
`)

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if _, err := m.LoadWasm(); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}
