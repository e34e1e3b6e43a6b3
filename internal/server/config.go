package server

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the gateway's full configuration: TOML file first, then
// per-field environment overrides, then validation.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	TLS         TLSConfig         `toml:"tls"`
	Auth        AuthConfig        `toml:"auth"`
	Reliability ReliabilityConfig `toml:"reliability"`
	Limits      LimitsConfig      `toml:"limits"`
}

type ServerConfig struct {
	Domain    string `toml:"domain"`
	HTTPPort  int    `toml:"http_port"`
	HTTPSPort int    `toml:"https_port"`
}

type TLSConfig struct {
	Enabled   bool   `toml:"enabled"`
	ACMEEmail string `toml:"acme_email"`
	CertsDir  string `toml:"certs_dir"`
}

type AuthConfig struct {
	APIKey string `toml:"api_key"`
}

type ReliabilityConfig struct {
	GracePeriod    int `toml:"grace_period"`
	RequestTimeout int `toml:"request_timeout"`
}

type LimitsConfig struct {
	MaxWorkstations int `toml:"max_workstations"`
}

// DefaultConfig returns the baseline configuration before file and
// environment overrides: TLS enabled with the default certs directory, the
// numeric defaults below, and an empty domain, API key and ACME email.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			HTTPPort:  80,
			HTTPSPort: 443,
		},
		TLS: TLSConfig{
			Enabled:  true,
			CertsDir: "/var/lib/tunnel/certs",
		},
		Reliability: ReliabilityConfig{
			GracePeriod:    30,
			RequestTimeout: 60,
		},
		Limits: LimitsConfig{
			MaxWorkstations: 100,
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
	if v := os.Getenv("SERVER_DOMAIN"); v != "" {
		c.Server.Domain = v
	}
	if v := os.Getenv("SERVER_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.HTTPPort = port
		}
	}
	if v := os.Getenv("SERVER_HTTPS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.HTTPSPort = port
		}
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.TLS.Enabled = enabled
		}
	}
	if v := os.Getenv("TLS_ACME_EMAIL"); v != "" {
		c.TLS.ACMEEmail = v
	}
	if v := os.Getenv("TLS_CERTS_DIR"); v != "" {
		c.TLS.CertsDir = v
	}
	if v := os.Getenv("AUTH_API_KEY"); v != "" {
		c.Auth.APIKey = v
	}
	if v := os.Getenv("RELIABILITY_GRACE_PERIOD"); v != "" {
		if period, err := strconv.Atoi(v); err == nil {
			c.Reliability.GracePeriod = period
		}
	}
	if v := os.Getenv("RELIABILITY_REQUEST_TIMEOUT"); v != "" {
		if timeout, err := strconv.Atoi(v); err == nil {
			c.Reliability.RequestTimeout = timeout
		}
	}
	if v := os.Getenv("LIMITS_MAX_WORKSTATIONS"); v != "" {
		if max, err := strconv.Atoi(v); err == nil {
			c.Limits.MaxWorkstations = max
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Domain == "" {
		return fmt.Errorf("SERVER_DOMAIN is required")
	}
	if len(c.Auth.APIKey) < 32 {
		return fmt.Errorf("AUTH_API_KEY must be at least 32 characters")
	}
	if c.TLS.Enabled && c.TLS.ACMEEmail == "" {
		return fmt.Errorf("TLS_ACME_EMAIL is required when TLS is enabled")
	}
	return nil
}
