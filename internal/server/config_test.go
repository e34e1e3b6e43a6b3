package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	body := `
[server]
domain = "tunnel.example.com"
http_port = 8080
https_port = 8443

[tls]
enabled = true
acme_email = "ops@example.com"

[auth]
api_key = "01234567890123456789012345678901"

[limits]
max_workstations = 50
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Domain != "tunnel.example.com" {
		t.Fatalf("domain = %q", cfg.Server.Domain)
	}
	if cfg.Server.HTTPPort != 8080 || cfg.Server.HTTPSPort != 8443 {
		t.Fatalf("ports = %d/%d", cfg.Server.HTTPPort, cfg.Server.HTTPSPort)
	}
	if cfg.Limits.MaxWorkstations != 50 {
		t.Fatalf("max_workstations = %d", cfg.Limits.MaxWorkstations)
	}
}

func TestLoadConfigRejectsShortAPIKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	body := `
[server]
domain = "tunnel.example.com"

[auth]
api_key = "too-short"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for short api_key")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	body := `
[server]
domain = "tunnel.example.com"

[auth]
api_key = "01234567890123456789012345678901"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SERVER_DOMAIN", "override.example.com")
	t.Setenv("LIMITS_MAX_WORKSTATIONS", "7")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Domain != "override.example.com" {
		t.Fatalf("domain = %q, want env override", cfg.Server.Domain)
	}
	if cfg.Limits.MaxWorkstations != 7 {
		t.Fatalf("max_workstations = %d, want 7", cfg.Limits.MaxWorkstations)
	}
}
