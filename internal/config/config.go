// Package config holds hydrctl configuration: which target to talk to, how
// long to wait for results, and where the durable replay guard lives.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"statehydrate/internal/logging"
)

// Config holds all hydrctl configuration.
type Config struct {
	// Target is the application under test.
	Target TargetConfig `yaml:"target"`

	// Replay configures the durable replay guard.
	Replay ReplayConfig `yaml:"replay"`

	// Logging controls category logger construction.
	Logging logging.Config `yaml:"logging"`
}

// TargetConfig locates the application under test.
type TargetConfig struct {
	// BaseURL of the application mounting the hydration endpoints.
	BaseURL string `yaml:"base_url"`
	// QueryKey overrides the hydrate query parameter name.
	QueryKey string `yaml:"query_key"`
	// AwaitTimeout bounds result polling, e.g. "10s".
	AwaitTimeout string `yaml:"await_timeout"`
}

// ReplayConfig locates the replay guard store.
type ReplayConfig struct {
	// DatabasePath is the SQLite guard file.
	DatabasePath string `yaml:"database_path"`
	// RedisAddr switches to the shared Redis guard when set.
	RedisAddr string `yaml:"redis_addr"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			BaseURL:      "http://127.0.0.1:8080",
			AwaitTimeout: "10s",
		},
		Replay: ReplayConfig{
			DatabasePath: filepath.Join(".hydrctl", "replay.db"),
		},
		Logging: logging.Config{Level: "info"},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides on top of file
// values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HYDRCTL_TARGET"); v != "" {
		c.Target.BaseURL = v
	}
	if v := os.Getenv("HYDRCTL_QUERY_KEY"); v != "" {
		c.Target.QueryKey = v
	}
	if v := os.Getenv("HYDRCTL_AWAIT_TIMEOUT"); v != "" {
		c.Target.AwaitTimeout = v
	}
	if v := os.Getenv("HYDRCTL_REPLAY_DB"); v != "" {
		c.Replay.DatabasePath = v
	}
	if v := os.Getenv("HYDRCTL_REDIS_ADDR"); v != "" {
		c.Replay.RedisAddr = v
	}
	if v := os.Getenv("HYDRCTL_DEBUG"); v == "1" || v == "true" {
		c.Logging.Debug = true
	}
}
