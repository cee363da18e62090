package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "agent.toml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.IntervalSeconds)
	assert.Equal(t, 3001, cfg.HealthPort)
	assert.Equal(t, defaultDiskPath(), cfg.DiskPath)
	assert.False(t, cfg.IsConfigured())
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "agent.toml")

	cfg := DefaultConfig()
	cfg.ServerURL = "https://mon.example.com"
	cfg.Password = "secret"
	cfg.EntityID = "6f1c1d58-3c39-4f3b-9a43-0c1f6f1b2a10"
	cfg.IntervalSeconds = 30
	require.NoError(t, SaveConfig(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://mon.example.com", loaded.ServerURL)
	assert.Equal(t, "secret", loaded.Password)
	assert.Equal(t, cfg.EntityID, loaded.EntityID)
	assert.Equal(t, 30, loaded.IntervalSeconds)
	assert.Equal(t, path, loaded.Path())
	assert.NoError(t, loaded.Validate())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url = "https://file.example.com/"
password = "from-file"
interval_seconds = 20
`), 0600))

	t.Setenv("CORESIGHT_PASSWORD", "from-env")
	t.Setenv("CORESIGHT_INTERVAL_SECONDS", "5")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", cfg.ServerURL)
	assert.Equal(t, "from-env", cfg.Password)
	assert.Equal(t, 5, cfg.IntervalSeconds)
}

func TestLoadConfigLegacyEnv(t *testing.T) {
	t.Setenv("SERVER_ID", "6f1c1d58-3c39-4f3b-9a43-0c1f6f1b2a10")
	t.Setenv("BACKEND_HOST", "10.0.0.5")
	t.Setenv("HEALTH_PORT", "4000")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "agent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "6f1c1d58-3c39-4f3b-9a43-0c1f6f1b2a10", cfg.EntityID)
	assert.Equal(t, "http://10.0.0.5:3000", cfg.ServerURL)
	assert.Equal(t, 4000, cfg.HealthPort)

	t.Setenv("BACKEND_PORT", "8080")
	cfg, err = LoadConfig(filepath.Join(t.TempDir(), "agent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8080", cfg.ServerURL)
}

func TestLoadConfigParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.toml")
	require.NoError(t, os.WriteFile(path, []byte("server_url = "), 0600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ServerURL")
	assert.Contains(t, err.Error(), "Password")

	cfg.ServerURL = "https://mon.example.com"
	cfg.Password = "secret"
	require.NoError(t, cfg.Validate())

	cfg.EntityID = "web-1"
	assert.ErrorContains(t, cfg.Validate(), "EntityID")

	cfg.EntityID = ""
	cfg.IntervalSeconds = 0
	assert.ErrorContains(t, cfg.Validate(), "IntervalSeconds")
}
