package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfigMatchesSpecDefaults verifies the default allow-list
// and capability mode.
func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != ModeFull {
		t.Fatalf("expected default mode full, got %s", cfg.Mode)
	}
	if cfg.AllowUnlistedHosts {
		t.Fatal("expected unlisted hosts disallowed by default")
	}

	want := map[string]bool{"localhost": true, "127.0.0.1": true, "::1": true}
	if len(cfg.AllowedHosts) != len(want) {
		t.Fatalf("expected %d default hosts, got %d", len(want), len(cfg.AllowedHosts))
	}
	for _, h := range cfg.AllowedHosts {
		if !want[h] {
			t.Fatalf("unexpected default allowed host %q", h)
		}
	}
}

// TestLoadConfigOverridesDefaults verifies a JSON file on disk
// overrides individual fields while leaving others at their default.
func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	err := os.WriteFile(path, []byte(`{"mode":"readonly","maxSessions":3}`), 0o644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}
	if cfg.Mode != ModeReadOnly {
		t.Fatalf("expected mode readonly, got %s", cfg.Mode)
	}
	if cfg.MaxSessions != 3 {
		t.Fatalf("expected maxSessions 3, got %d", cfg.MaxSessions)
	}
	if cfg.CommandTimeoutSeconds != DefaultConfig().CommandTimeoutSeconds {
		t.Fatalf("expected commandTimeoutSeconds to keep its default, got %d", cfg.CommandTimeoutSeconds)
	}
	if cfg.CanUseControlTools() {
		t.Fatal("expected readonly mode to disable control tools")
	}
}

// TestCommandTimeoutFallsBackWhenUnset verifies a non-positive
// configured timeout does not produce a zero or negative duration.
func TestCommandTimeoutFallsBackWhenUnset(t *testing.T) {
	cfg := &Config{CommandTimeoutSeconds: 0}
	if cfg.CommandTimeout() <= 0 {
		t.Fatal("expected a positive fallback command timeout")
	}
}
