package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Operator-configurable limits and their defaults.
const (
	// DefaultTimeoutMs bounds one child process invocation.
	DefaultTimeoutMs = 300_000
	// DefaultMaxFileSizeBytes caps a single declared artifact.
	DefaultMaxFileSizeBytes = 100 << 20
	// DefaultRetentionMs is the age past which preserved context files become
	// eligible for garbage collection.
	DefaultRetentionMs = 3_600_000
	// DefaultPersonaCommand is the executable invoked for the next stage.
	DefaultPersonaCommand = "persona"
)

// Config captures the user-configurable settings shared across binaries.
type Config struct {
	StoreDir         string `json:"store_dir" yaml:"store_dir"`
	WorkingDir       string `json:"working_dir" yaml:"working_dir"`
	PersonaCommand   string `json:"persona_command" yaml:"persona_command"`
	TimeoutMs        int64  `json:"timeout_ms" yaml:"timeout_ms"`
	MaxFileSizeBytes int64  `json:"max_file_size_bytes" yaml:"max_file_size_bytes"`
	RetentionMs      int64  `json:"retention_ms" yaml:"retention_ms"`
	Interactive      bool   `json:"interactive" yaml:"interactive"`
	Verbose          bool   `json:"verbose" yaml:"verbose"`
}

// Default returns a Config populated with the documented defaults. The store
// directory lives under the system temp dir; the working directory defaults
// to the current one.
func Default() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return &Config{
		StoreDir:         filepath.Join(os.TempDir(), "baton-contexts"),
		WorkingDir:       wd,
		PersonaCommand:   DefaultPersonaCommand,
		TimeoutMs:        DefaultTimeoutMs,
		MaxFileSizeBytes: DefaultMaxFileSizeBytes,
		RetentionMs:      DefaultRetentionMs,
	}
}

// Load reads a JSON or YAML config file (selected by extension) over the
// defaults. A missing path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate rejects nonsensical limits.
func (c *Config) Validate() error {
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("config: timeout_ms must be positive, got %d", c.TimeoutMs)
	}
	if c.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("config: max_file_size_bytes must be positive, got %d", c.MaxFileSizeBytes)
	}
	if c.RetentionMs <= 0 {
		return fmt.Errorf("config: retention_ms must be positive, got %d", c.RetentionMs)
	}
	return nil
}

// Timeout returns the child process budget as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Retention returns the GC window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionMs) * time.Millisecond
}
