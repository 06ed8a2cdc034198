package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLockAndLoadVerifies(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: /tmp/test.db
`)

	hash, err := Lock(path)
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(hash))
	}

	if _, err := Load(path); err != nil {
		t.Errorf("Load() after Lock() error = %v", err)
	}
}

func TestLoad_TamperedConfigIsRejected(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: /tmp/test.db
`)

	if _, err := Lock(path); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("storage:\n  path: /tmp/evil.db\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load() error = nil, want hash mismatch")
	}
}

func TestLoad_NoManifestSkipsVerification(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: /tmp/test.db
`)

	if _, err := Load(path); err != nil {
		t.Errorf("Load() without manifest error = %v", err)
	}
}

func TestLoadChecksums_BadVersion(t *testing.T) {
	dir := t.TempDir()
	manifest := "version: 2\ngenerated_at: \"2026-01-01T00:00:00Z\"\nhashes: {}\n"
	if err := os.WriteFile(filepath.Join(dir, ".checksums"), []byte(manifest), 0600); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	if _, err := LoadChecksums(dir); err == nil {
		t.Fatal("LoadChecksums() error = nil, want version error")
	}
}

func TestVerifyFileHash_Mismatch(t *testing.T) {
	path := writeConfig(t, "service: {}\n")

	if err := VerifyFileHash(path, "deadbeef"); err == nil {
		t.Fatal("VerifyFileHash() error = nil, want mismatch")
	}
}
