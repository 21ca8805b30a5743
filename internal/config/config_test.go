package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "conductor.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `conductor:
  hostname: "127.0.0.1:7355"
  payload_path: "dist/payload.template.js"
`)
	t.Setenv("CONDUCTOR_DATA_DIR", t.TempDir())

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Conductor.Hostname != "127.0.0.1:7355" {
		t.Errorf("Hostname = %q", cfg.Conductor.Hostname)
	}
	if !cfg.Conductor.ReplaceOtherInstances {
		t.Errorf("ReplaceOtherInstances default = false, want true")
	}
	if cfg.Auth.Enabled {
		t.Errorf("Auth.Enabled default = true, want false")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel default = %q, want info", cfg.LogLevel)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeTempConfig(t, `conductor:
  hostname: "127.0.0.1:7355"
  payload_path: "dist/payload.template.js"
`)
	t.Setenv("CONDUCTOR_DATA_DIR", t.TempDir())
	t.Setenv("CONDUCTOR_HOSTNAME", "0.0.0.0:9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Conductor.Hostname != "0.0.0.0:9999" {
		t.Errorf("Hostname = %q, want env override", cfg.Conductor.Hostname)
	}
}

func TestValidateRequiresTokensWhenAuthEnabled(t *testing.T) {
	cfg := &Config{
		Conductor: ConductorConfig{Hostname: "127.0.0.1:7355", PayloadPath: "x.js"},
		Auth:      AuthConfig{Enabled: true},
		DataDir:   t.TempDir(),
	}

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for auth.enabled with no tokens")
	}
}

func TestValidateRejectsEmptyHostname(t *testing.T) {
	cfg := &Config{
		Conductor: ConductorConfig{PayloadPath: "x.js"},
		DataDir:   t.TempDir(),
	}

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for empty hostname")
	}
}

func TestAcceptsSecret(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{Tokens: []string{"a", "b"}}}

	if !cfg.AcceptsSecret("a") {
		t.Error("AcceptsSecret(\"a\") = false, want true")
	}
	if cfg.AcceptsSecret("z") {
		t.Error("AcceptsSecret(\"z\") = true, want false")
	}
}
