package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "tether", cfg.AgentID)
	assert.Equal(t, "default", cfg.Mode)
	assert.Equal(t, 120_000, cfg.DefaultTimeoutMs)
	assert.Equal(t, 600_000, cfg.MaxTimeoutMs)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"agent_id: worker-1\nmode: safe\ndefault_timeout_ms: 5000\nmax_timeout_ms: 30000\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "worker-1", cfg.AgentID)
	assert.Equal(t, "safe", cfg.Mode)
	assert.Equal(t, 5000, cfg.DefaultTimeoutMs)
	assert.Equal(t, 30000, cfg.MaxTimeoutMs)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: safe\n"), 0644))

	t.Setenv("TETHER_MODE", "yolo")
	t.Setenv("TETHER_AGENT_ID", "env-agent")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "yolo", cfg.Mode)
	assert.Equal(t, "env-agent", cfg.AgentID)
}

func TestMaxTimeoutClampedToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"default_timeout_ms: 60000\nmax_timeout_ms: 1000\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 60000, cfg.DefaultTimeoutMs)
	assert.Equal(t, 60000, cfg.MaxTimeoutMs)
}

func TestMalformedYAMLIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: [unclosed\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
