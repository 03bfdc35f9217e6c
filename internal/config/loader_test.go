package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskmux.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadFromFile_WhenFileMissing_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8430, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 1*time.Second, cfg.Upstream.ReconnectMin)
	assert.Equal(t, 30*time.Second, cfg.Upstream.ReconnectMax)
	assert.Equal(t, 90, cfg.Database.RetentionDays)
	assert.Equal(t, 500, cfg.Tracker.MaxFinished)
}

func TestLoadFromFile_OverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 9001
  log_level: debug
upstream:
  base_url: http://localhost:7777
  reconnect_min: 2s
  reconnect_max: 1m
tracker:
  max_finished: 0
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "http://localhost:7777", cfg.Upstream.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Upstream.ReconnectMin)
	assert.Equal(t, 1*time.Minute, cfg.Upstream.ReconnectMax)
	assert.Equal(t, 0, cfg.Tracker.MaxFinished)

	// Untouched sections keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 90, cfg.Database.RetentionDays)
}

func TestLoadFromFile_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_UPSTREAM_URL", "http://localhost:4242")

	path := writeConfig(t, `
upstream:
  base_url: ${TEST_UPSTREAM_URL}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4242", cfg.Upstream.BaseURL)
}

func TestLoadFromFile_EnvTokenOverridesFile(t *testing.T) {
	t.Setenv("TASKMUX_UPSTREAM_TOKEN", "env-token")
	t.Setenv("TASKMUX_AUTH_TOKEN", "env-auth")

	path := writeConfig(t, `
server:
  auth_token: file-auth
upstream:
  token: file-token
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Upstream.Token)
	assert.Equal(t, "env-auth", cfg.Server.AuthToken)
}

func TestLoadFromFile_WhenInvalidYAML_ReturnsError(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "server: [not a map")

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadFromFile_WhenPortOutOfRange_ReturnsError(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 70000
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestLoadFromFile_WhenHostIsWildcard_ReturnsError(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  host: 0.0.0.0
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0.0.0.0")
}

func TestLoadFromFile_WhenReconnectBoundsInverted_ReturnsError(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
upstream:
  reconnect_min: 10s
  reconnect_max: 1s
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconnect_max")
}

func TestLoadFromFile_ExpandsHomeInDatabasePath(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
database:
  path: ~/taskmux-test.db
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "taskmux-test.db"), cfg.Database.Path)
}

func TestExpandHome(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".config"), ExpandHome("~/.config"))
	assert.Equal(t, "/absolute/path", ExpandHome("/absolute/path"))
	assert.Equal(t, "relative/path", ExpandHome("relative/path"))
}
