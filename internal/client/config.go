package client

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the agent's configuration, loaded the same file-then-env-then-
// validate way the gateway's own Config is.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Auth        AuthConfig        `toml:"auth"`
	Workstation WorkstationConfig `toml:"workstation"`
	Reconnect   ReconnectConfig   `toml:"reconnect"`
	Session     SessionConfig     `toml:"session"`
	// Insecure disables server certificate verification on the QUIC dial.
	// Off by default; this release has no certificate pinning story, so
	// operators must opt in explicitly rather than have it silently assumed.
	Insecure bool `toml:"insecure_skip_verify"`
}

type ServerConfig struct {
	Address string `toml:"address"`
}

type AuthConfig struct {
	APIKey string `toml:"api_key"`
}

type WorkstationConfig struct {
	ID           string `toml:"id"`
	LocalAddress string `toml:"local_address"`
}

type ReconnectConfig struct {
	Enabled  bool `toml:"enabled"`
	MaxDelay int  `toml:"max_delay"`
}

type SessionConfig struct {
	TicketPath string `toml:"ticket_path"`
}

// DefaultConfig returns the baseline configuration before file and
// environment overrides are applied.
func DefaultConfig() Config {
	return Config{
		Reconnect: ReconnectConfig{
			Enabled:  true,
			MaxDelay: 30,
		},
		Session: SessionConfig{
			TicketPath: "./session.ticket",
		},
	}
}

// LoadConfig reads path (if non-empty), applies environment overrides, and
// validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SERVER_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("AUTH_API_KEY"); v != "" {
		c.Auth.APIKey = v
	}
	if v := os.Getenv("WORKSTATION_ID"); v != "" {
		c.Workstation.ID = v
	}
	if v := os.Getenv("WORKSTATION_LOCAL_ADDRESS"); v != "" {
		c.Workstation.LocalAddress = v
	}
	if v := os.Getenv("RECONNECT_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Reconnect.Enabled = enabled
		}
	}
	if v := os.Getenv("RECONNECT_MAX_DELAY"); v != "" {
		if delay, err := strconv.Atoi(v); err == nil {
			c.Reconnect.MaxDelay = delay
		}
	}
	if v := os.Getenv("SESSION_TICKET_PATH"); v != "" {
		c.Session.TicketPath = v
	}
	if v := os.Getenv("INSECURE_SKIP_VERIFY"); v != "" {
		if insecure, err := strconv.ParseBool(v); err == nil {
			c.Insecure = insecure
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("SERVER_ADDRESS is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("AUTH_API_KEY is required")
	}
	if c.Workstation.ID == "" {
		return fmt.Errorf("WORKSTATION_ID is required")
	}
	if c.Workstation.LocalAddress == "" {
		return fmt.Errorf("WORKSTATION_LOCAL_ADDRESS is required")
	}
	return nil
}
