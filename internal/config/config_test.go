package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":50051", cfg.Server.GRPC.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.GRPC.KeepaliveTime)
	assert.Equal(t, "/ws", cfg.Server.WebSocket.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 2, cfg.Rules.CaptureSpiceReward)
	assert.Equal(t, 7, cfg.Rules.KwisatzHaderachThreshold)
	assert.Empty(t, cfg.Database.URL)
	assert.False(t, cfg.Replay.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  grpc:
    address: "127.0.0.1:6000"
  websocket:
    write_timeout: 3s
logging:
  level: debug
  format: console
rules:
  advanced_combat: true
  seed: 99
replay:
  enabled: true
  directory: /tmp/replays
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6000", cfg.Server.GRPC.Address)
	assert.Equal(t, 3*time.Second, cfg.Server.WebSocket.WriteTimeout)
	assert.Equal(t, ":8090", cfg.Server.WebSocket.Address, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Rules.AdvancedCombat)
	assert.Equal(t, int64(99), cfg.Rules.Seed)
	assert.Equal(t, "/tmp/replays", cfg.Replay.Directory)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DUNE_LOGGING_LEVEL", "warn")
	t.Setenv("DUNE_RULES_CAPTURE_SPICE_REWARD", "3")
	t.Setenv("DUNE_DATABASE_URL", "postgres://localhost/dune")

	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level, "environment wins over the file")
	assert.Equal(t, 3, cfg.Rules.CaptureSpiceReward)
	assert.Equal(t, "postgres://localhost/dune", cfg.Database.URL)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "logging:\n  level: loud\n  format: xml\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "logging.format")

	_, err = Load(writeConfig(t, "replay:\n  enabled: true\n  directory: \"\"\n"))
	assert.Error(t, err)
}

func TestRepoConfigFileLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Server.MaxSessions)
	assert.True(t, cfg.Replay.Enabled)
}
