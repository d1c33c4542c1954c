package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "wss", cfg.Client.Scheme)
	assert.Equal(t, 40*time.Second, cfg.Client.PingPeriod)
	assert.Equal(t, 15*time.Second, cfg.Client.TypingExpiry)
	assert.Equal(t, "none", cfg.Client.User.Thumbnail)
	assert.Equal(t, "/websockets/room", cfg.Server.WebSocketPath)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.False(t, cfg.Kafka.Enabled)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
CLIENT:
  HOST: chat.example.com
  USER:
    ID: u-1
    NAME: Ada
SERVER:
  PORT: "9000"
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("CLIENT_USER_NAME", "Grace")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "chat.example.com", cfg.Client.Host)
	assert.Equal(t, "u-1", cfg.Client.User.ID)
	assert.Equal(t, "Grace", cfg.Client.User.Name)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "wss://chat.example.com/websockets/room", cfg.Client.WebSocketURL())
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
