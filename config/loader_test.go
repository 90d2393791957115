package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

func TestLoader_DefaultsOnly(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())

	cfg, err := NewLoader(nil).Load()
	require.NoError(t, err)
	assert.Equal(t, "z3", cfg.Solver.Binary)
	assert.Equal(t, 8, cfg.Engine.Workers)
}

func TestLoader_UserConfigOverridesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	chdir(t, t.TempDir())

	userPath := filepath.Join(home, UserConfigDir, UserConfigFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte("solver:\n  timeout: 20s\n"), 0o644))

	cfg, err := NewLoader(nil).Load()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, cfg.Solver.Timeout)
	assert.Equal(t, "z3", cfg.Solver.Binary, "untouched keys keep defaults")
}

func TestLoader_ProjectConfigWins(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	userPath := filepath.Join(home, UserConfigDir, UserConfigFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte("engine:\n  workers: 2\n"), 0o644))

	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, ProjectConfigFile),
		[]byte("engine:\n  workers: 16\n"), 0o644))

	// The project file is found from a nested working directory.
	nested := filepath.Join(project, "studies", "sub000")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	chdir(t, nested)

	cfg, err := NewLoader(nil).Load()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Engine.Workers)
}

func TestLoader_InvalidMergedConfigFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, ProjectConfigFile),
		[]byte("engine:\n  techniques: [clairvoyant]\n"), 0o644))
	chdir(t, project)

	_, err := NewLoader(nil).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown technique")
}

func TestEnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	loader := NewLoader(nil)
	require.NoError(t, loader.EnsureUserConfig())

	path := filepath.Join(home, UserConfigDir, UserConfigFile)
	_, err := os.Stat(path)
	require.NoError(t, err)

	// Idempotent: an existing file is left alone.
	require.NoError(t, os.WriteFile(path, []byte("solver:\n  timeout: 99s\n"), 0o644))
	require.NoError(t, loader.EnsureUserConfig())
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 99*time.Second, cfg.Solver.Timeout)
}
