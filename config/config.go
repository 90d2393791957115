// Package config provides configuration loading and management for edcheck.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/metacogma/edc-rule-validator-sub000/model"
	"github.com/metacogma/edc-rule-validator-sub000/rules"
)

// Config represents the complete edcheck configuration
type Config struct {
	Solver SolverConfig          `yaml:"solver"`
	Engine EngineConfig          `yaml:"engine"`
	Models *model.RegistryConfig `yaml:"models,omitempty"`
}

// SolverConfig configures the external SMT solver
type SolverConfig struct {
	// Binary is the z3 executable; resolved via PATH when not absolute
	Binary string `yaml:"binary"`
	// Timeout bounds a single solver check including process startup
	Timeout time.Duration `yaml:"timeout"`
	// MaxPairChecks bounds the pairwise rule-set scan (0 = unlimited)
	MaxPairChecks int `yaml:"max_pair_checks"`
}

// EngineConfig configures test generation orchestration
type EngineConfig struct {
	// Workers is the bounded worker count for parallel generation
	Workers int `yaml:"workers"`
	// Sequential disables the worker pool entirely
	Sequential bool `yaml:"sequential"`
	// Techniques restricts which generation techniques run (empty = all)
	Techniques []string `yaml:"techniques"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Solver: SolverConfig{
			Binary:        "z3",
			Timeout:       10 * time.Second,
			MaxPairChecks: 1000,
		},
		Engine: EngineConfig{
			Workers:    8,
			Sequential: false,
			Techniques: nil, // All techniques
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Solver.Binary == "" {
		return fmt.Errorf("solver.binary is required")
	}
	if c.Solver.Timeout <= 0 {
		return fmt.Errorf("solver.timeout must be positive")
	}
	if c.Solver.MaxPairChecks < 0 {
		return fmt.Errorf("solver.max_pair_checks must not be negative")
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be positive")
	}
	for _, t := range c.Engine.Techniques {
		if !rules.Technique(t).IsValid() {
			return fmt.Errorf("engine.techniques: unknown technique %q", t)
		}
	}
	return nil
}

// Registry builds the model registry from the Models section, falling
// back to defaults when the section is absent.
func (c *Config) Registry() *model.Registry {
	if c.Models == nil {
		return model.NewDefaultRegistry()
	}
	return model.RegistryFromConfig(c.Models)
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Solver
	if other.Solver.Binary != "" {
		c.Solver.Binary = other.Solver.Binary
	}
	if other.Solver.Timeout != 0 {
		c.Solver.Timeout = other.Solver.Timeout
	}
	if other.Solver.MaxPairChecks != 0 {
		c.Solver.MaxPairChecks = other.Solver.MaxPairChecks
	}

	// Engine
	if other.Engine.Workers != 0 {
		c.Engine.Workers = other.Engine.Workers
	}
	if other.Engine.Sequential {
		c.Engine.Sequential = true
	}
	if len(other.Engine.Techniques) > 0 {
		c.Engine.Techniques = other.Engine.Techniques
	}

	// Models
	if other.Models != nil {
		c.Models = other.Models
	}
}
