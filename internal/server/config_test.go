package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.ListenAddr)
	assert.Equal(t, time.Hour, cfg.AlertCooldown())
	assert.Equal(t, time.Minute, cfg.ProbeInterval())
	assert.Equal(t, 90.0, cfg.Thresholds.CPU.Critical)
}

func TestServerConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "server.toml")
	cfg := DefaultServerConfig()
	cfg.ListenAddr = ":9000"
	cfg.RetentionDays = 30
	cfg.Thresholds.Disk.Critical = 95

	require.NoError(t, SaveServerConfig(cfg, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", loaded.ListenAddr)
	assert.Equal(t, 30*24*time.Hour, loaded.Retention())
	assert.Equal(t, 95.0, loaded.Thresholds.Disk.Critical)
}

func TestLoadServerConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr = ":8443"
alert_cooldown_minutes = 15

[thresholds.cpu]
warning = 60
critical = 85
`), 0600))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8443", cfg.ListenAddr)
	assert.Equal(t, 15*time.Minute, cfg.AlertCooldown())
	assert.Equal(t, 85.0, cfg.Thresholds.CPU.Critical)
	assert.Equal(t, 90.0, cfg.Thresholds.Memory.Critical)

	require.NoError(t, os.WriteFile(path, []byte("listen_addr = "), 0600))
	_, err = LoadServerConfig(path)
	assert.Error(t, err)
}

func TestServerConfigValidate(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.ErrorContains(t, cfg.Validate(), "ingest_password_hash")

	cfg.IngestPasswordHash = "x"
	cfg.AdminPasswordHash = "y"
	require.NoError(t, cfg.Validate())

	cfg.TLSMode = "autocert"
	assert.Error(t, cfg.Validate())
	cfg.Domain = "mon.example.com"
	assert.NoError(t, cfg.Validate())

	cfg.TLSMode = "bogus"
	assert.Error(t, cfg.Validate())
}
