package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metacogma/edc-rule-validator-sub000/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "z3", cfg.Solver.Binary)
	assert.Equal(t, 10*time.Second, cfg.Solver.Timeout)
	assert.Equal(t, 1000, cfg.Solver.MaxPairChecks)
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.False(t, cfg.Engine.Sequential)
	assert.Empty(t, cfg.Engine.Techniques)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"missing binary", func(c *Config) { c.Solver.Binary = "" }, "solver.binary"},
		{"zero timeout", func(c *Config) { c.Solver.Timeout = 0 }, "solver.timeout"},
		{"negative pair budget", func(c *Config) { c.Solver.MaxPairChecks = -1 }, "max_pair_checks"},
		{"zero workers", func(c *Config) { c.Engine.Workers = 0 }, "engine.workers"},
		{"unknown technique", func(c *Config) { c.Engine.Techniques = []string{"psychic"} }, "unknown technique"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	cfg := DefaultConfig()
	cfg.Engine.Techniques = []string{"metamorphic", "symbolic", "adversarial", "causal", "llm"}
	assert.NoError(t, cfg.Validate())
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Merge(&Config{
		Solver: SolverConfig{Binary: "/opt/z3/bin/z3", Timeout: 30 * time.Second},
		Engine: EngineConfig{Sequential: true, Techniques: []string{"symbolic"}},
	})

	assert.Equal(t, "/opt/z3/bin/z3", base.Solver.Binary)
	assert.Equal(t, 30*time.Second, base.Solver.Timeout)
	assert.Equal(t, 1000, base.Solver.MaxPairChecks, "zero values never overwrite")
	assert.Equal(t, 8, base.Engine.Workers)
	assert.True(t, base.Engine.Sequential)
	assert.Equal(t, []string{"symbolic"}, base.Engine.Techniques)

	base.Merge(nil) // no-op
	assert.Equal(t, "/opt/z3/bin/z3", base.Solver.Binary)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
solver:
  binary: /usr/local/bin/z3
  timeout: 5s
  max_pair_checks: 50
engine:
  workers: 2
  techniques: [metamorphic, adversarial]
models:
  capabilities:
    mutation:
      preferred: [local-model]
  endpoints:
    local-model:
      provider: ollama
      url: http://localhost:11434/v1
      model: qwen2.5-coder:14b
      max_tokens: 128000
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/z3", cfg.Solver.Binary)
	assert.Equal(t, 5*time.Second, cfg.Solver.Timeout)
	assert.Equal(t, 50, cfg.Solver.MaxPairChecks)
	assert.Equal(t, 2, cfg.Engine.Workers)
	assert.Equal(t, []string{"metamorphic", "adversarial"}, cfg.Engine.Techniques)

	require.NotNil(t, cfg.Models)
	registry := cfg.Registry()
	assert.Equal(t, "local-model", registry.Resolve(model.CapabilityMutation))
	ep := registry.GetEndpoint("local-model")
	require.NotNil(t, ep)
	assert.Equal(t, 128000, ep.MaxTokens)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Solver.MaxPairChecks = 7
	cfg.Engine.Techniques = []string{"causal"}

	path := filepath.Join(t.TempDir(), "nested", "edcheck.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Solver.MaxPairChecks)
	assert.Equal(t, []string{"causal"}, loaded.Engine.Techniques)
}

func TestRegistry_DefaultsWhenUnconfigured(t *testing.T) {
	cfg := DefaultConfig()
	registry := cfg.Registry()
	require.NotNil(t, registry)
	assert.NotEmpty(t, registry.GetFallbackChain(model.CapabilityMutation))
}
