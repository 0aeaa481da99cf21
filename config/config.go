// Package config defines the Docket engine configuration.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Engine names selectable from configuration.
const (
	EngineStandard = "standard"
	EngineNoop     = "noop"
)

// Config is the top-level Docket configuration.
type Config struct {
	// DBPath is the SQLite file backing definitions and tasks.
	DBPath string `json:"db_path" yaml:"db_path" env:"DOCKET_DB_PATH"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level" env:"DOCKET_LOG_LEVEL"`

	// Engine selects the orchestrator implementation: "standard" runs
	// automation, "noop" disables it without call-site changes.
	Engine string `json:"engine" yaml:"engine" env:"DOCKET_ENGINE"`

	// StrictDependencies makes bundle items whose declared dependency
	// did not produce a task be skipped too. Off by default.
	StrictDependencies bool `json:"strict_dependencies" yaml:"strict_dependencies" env:"DOCKET_STRICT_DEPENDENCIES"`

	// Assignees maps role names to concrete identities. Unmapped roles
	// resolve to deterministic placeholders.
	Assignees map[string]string `json:"assignees,omitempty" yaml:"assignees"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DBPath:   "./docket.db",
		LogLevel: "info",
		Engine:   EngineStandard,
	}
}

// Load reads a YAML config file over the defaults and applies
// DOCKET_* environment overrides. An empty path skips the file and
// uses defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Engine != EngineStandard && cfg.Engine != EngineNoop {
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
	return cfg, nil
}
