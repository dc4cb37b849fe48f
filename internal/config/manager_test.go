package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "vimlm"))
	require.NoError(t, err)
	return m
}

func TestLoadWritesDefaults(t *testing.T) {
	m := newManager(t)
	assert.False(t, m.Exists())

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, m.Exists())

	var onDisk Config
	data, err := os.ReadFile(m.GetConfigPath())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, *Default(), onDisk)
}

func TestLoadReplacesUnparseableFile(t *testing.T) {
	m := newManager(t)
	require.NoError(t, os.MkdirAll(m.Home(), 0755))
	require.NoError(t, os.WriteFile(m.GetConfigPath(), []byte("{not json"), 0644))

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	data, err := os.ReadFile(m.GetConfigPath())
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	m := newManager(t)
	require.NoError(t, os.MkdirAll(m.Home(), 0755))
	require.NoError(t, os.WriteFile(m.GetConfigPath(), []byte(`{"token_budget": 500, "debug": false}`), 0644))

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.TokenBudget)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "!@#$", cfg.Separator)
	assert.Equal(t, "ollama", cfg.Provider)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	m := newManager(t)
	require.NoError(t, os.MkdirAll(m.Home(), 0755))
	require.NoError(t, os.WriteFile(m.GetConfigPath(), []byte(`{"cache_backend": "redis"}`), 0644))

	_, err := m.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestSaveRoundTrip(t *testing.T) {
	m := newManager(t)
	cfg := Default()
	cfg.Provider = "anthropic"
	cfg.Ignore = []string{"*.lock"}
	require.NoError(t, m.Save(cfg))

	info, err := os.Stat(m.GetConfigPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPaths(t *testing.T) {
	m, err := NewManager("/h")
	require.NoError(t, err)
	assert.Equal(t, "/h/cfg.json", m.GetConfigPath())
	assert.Equal(t, "/h/log.json", m.LogPath())
	assert.Equal(t, "/h/watch_dir", m.MailboxPath())
}

func TestApplyEnv(t *testing.T) {
	t.Run("vimlm overrides", func(t *testing.T) {
		t.Setenv("VIMLM_PROVIDER", "LMStudio")
		t.Setenv("VIMLM_TOKEN_BUDGET", "4096")
		t.Setenv("VIMLM_DEBUG", "false")

		cfg := Default()
		require.NoError(t, ApplyEnv(cfg))
		assert.Equal(t, "lmstudio", cfg.Provider)
		assert.Equal(t, 4096, cfg.TokenBudget)
		assert.False(t, cfg.Debug)
	})

	t.Run("provider key fills gap", func(t *testing.T) {
		t.Setenv("VIMLM_PROVIDER", "openai")
		t.Setenv("OPENAI_API_KEY", "sk-env")

		cfg := Default()
		require.NoError(t, ApplyEnv(cfg))
		assert.Equal(t, "sk-env", cfg.APIKey)

		cfg = Default()
		cfg.APIKey = "sk-file"
		require.NoError(t, ApplyEnv(cfg))
		assert.Equal(t, "sk-file", cfg.APIKey)
	})

	t.Run("ollama host", func(t *testing.T) {
		t.Setenv("OLLAMA_HOST", "gpu-box:11434")

		cfg := Default()
		require.NoError(t, ApplyEnv(cfg))
		assert.Equal(t, "http://gpu-box:11434/v1", cfg.BaseURL)
	})

	t.Run("malformed number", func(t *testing.T) {
		t.Setenv("VIMLM_TOKEN_BUDGET", "lots")
		assert.Error(t, ApplyEnv(Default()))
	})
}

func TestLoadEnv(t *testing.T) {
	m := newManager(t)
	require.NoError(t, os.MkdirAll(m.Home(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(m.Home(), EnvFile), []byte("VIMLM_TEST_ONLY_VAR=from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("VIMLM_TEST_ONLY_VAR") })

	require.NoError(t, m.LoadEnv())
	assert.Equal(t, "from-dotenv", os.Getenv("VIMLM_TEST_ONLY_VAR"))
}
