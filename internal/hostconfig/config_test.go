package hostconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StateDir != Default().StateDir {
		t.Fatalf("expected default stateDir, got %q", cfg.StateDir)
	}
}

func TestLoadOverridesAndPassphraseEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "personafy.yaml")
	yamlContent := "stateDir: /tmp/custom\ndefaultPosture: open\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv("PERSONAFY_PASSPHRASE", "secret-from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StateDir != "/tmp/custom" {
		t.Fatalf("expected overridden stateDir, got %q", cfg.StateDir)
	}
	if cfg.Passphrase != "secret-from-env" {
		t.Fatalf("expected passphrase from env, got %q", cfg.Passphrase)
	}
}
