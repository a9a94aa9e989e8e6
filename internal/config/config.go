// Package config loads session configuration for tether.
// Values come from ~/.tether/config.yaml and can be overridden through
// TETHER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds the per-session settings consumed by the mediation layer.
type Config struct {
	// AgentID identifies this session in the usage log and the mailbox.
	AgentID string `yaml:"agent_id" envconfig:"AGENT_ID"`

	// Mode is the starting permission mode: "safe", "default", or "yolo".
	Mode string `yaml:"mode" envconfig:"MODE"`

	// DefaultTimeoutMs is the shell command timeout applied when a tool
	// call does not specify one.
	DefaultTimeoutMs int `yaml:"default_timeout_ms" envconfig:"DEFAULT_TIMEOUT_MS"`

	// MaxTimeoutMs caps per-call timeout requests.
	MaxTimeoutMs int `yaml:"max_timeout_ms" envconfig:"MAX_TIMEOUT_MS"`

	// LogLevel controls logging verbosity.
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		AgentID:          "tether",
		Mode:             "default",
		DefaultTimeoutMs: 120_000,
		MaxTimeoutMs:     600_000,
		LogLevel:         "info",
	}
}

// Load reads config from the given YAML file, then applies environment
// overrides. A missing file is not an error; defaults are used instead.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("tether", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment overrides: %w", err)
	}

	if cfg.DefaultTimeoutMs <= 0 {
		cfg.DefaultTimeoutMs = DefaultConfig().DefaultTimeoutMs
	}
	if cfg.MaxTimeoutMs < cfg.DefaultTimeoutMs {
		cfg.MaxTimeoutMs = cfg.DefaultTimeoutMs
	}

	return cfg, nil
}
