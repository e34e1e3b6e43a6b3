package client

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.toml")
	body := `
[server]
address = "gateway.example.com:443"

[auth]
api_key = "01234567890123456789012345678901"

[workstation]
id = "ws-A"
local_address = "http://127.0.0.1:8080"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Workstation.ID != "ws-A" {
		t.Fatalf("workstation id = %q", cfg.Workstation.ID)
	}
	if !cfg.Reconnect.Enabled || cfg.Reconnect.MaxDelay != 30 {
		t.Fatalf("reconnect defaults not applied: %+v", cfg.Reconnect)
	}
}

func TestLoadConfigRequiresWorkstationID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.toml")
	body := `
[server]
address = "gateway.example.com:443"

[auth]
api_key = "01234567890123456789012345678901"

[workstation]
local_address = "http://127.0.0.1:8080"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for missing workstation id")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.toml")
	body := `
[server]
address = "gateway.example.com:443"

[auth]
api_key = "01234567890123456789012345678901"

[workstation]
id = "ws-A"
local_address = "http://127.0.0.1:8080"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("WORKSTATION_ID", "ws-B")
	t.Setenv("RECONNECT_ENABLED", "false")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Workstation.ID != "ws-B" {
		t.Fatalf("workstation id = %q, want env override", cfg.Workstation.ID)
	}
	if cfg.Reconnect.Enabled {
		t.Fatal("expected RECONNECT_ENABLED=false to disable reconnect")
	}
}
