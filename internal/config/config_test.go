package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("app_name: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.AppName)
	assert.Equal(t, DefaultAddress, cfg.Server.Address)
	assert.Equal(t, DefaultMaxLineLength, cfg.Session.MaxLineLength)
	assert.Equal(t, DefaultMaxPayloadSize, cfg.Session.MaxPayloadSize)
	assert.Equal(t, DefaultWriteTimeout, cfg.Session.WriteTimeout.Std())
	assert.Equal(t, DefaultLogRetention, cfg.Log.Retention.Std())
	assert.False(t, cfg.Server.WebSocket.Enabled)
}

func TestParseDurations(t *testing.T) {
	doc := `
session:
  write_timeout: 5s
log:
  retention: 7d
metrics:
  enabled: true
  interval: 1m30s
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Session.WriteTimeout.Std())
	assert.Equal(t, 7*24*time.Hour, cfg.Log.Retention.Std())
	assert.Equal(t, 90*time.Second, cfg.Metrics.Interval.Std())
	assert.True(t, cfg.Metrics.Enabled)
}

func TestMatchCacheCanBeDisabled(t *testing.T) {
	cfg, err := Parse([]byte("router:\n  match_cache_size: -1\n"))
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Router.MatchCacheSize)

	cfg, err = Parse([]byte("app_name: test\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMatchCacheSize, cfg.Router.MatchCacheSize)

	_, err = Parse([]byte("router:\n  match_cache_size: -2\n"))
	assert.ErrorContains(t, err, "router.match_cache_size")
}

func TestParseRejectsBadDuration(t *testing.T) {
	_, err := Parse([]byte("session:\n  write_timeout: soon\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Session.MaxPayloadSize = -1
	cfg.Server.WebSocket.Enabled = true
	cfg.Server.WebSocket.Address = cfg.Server.Address

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.max_payload_size")
	assert.Contains(t, err.Error(), "server.websocket.address")
}

func TestReadConfigCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := ReadConfig(path)
	require.ErrorIs(t, err, ErrConfigCreated)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultAddress, cfg.Server.Address)
	assert.Equal(t, DefaultLogRetention, cfg.Log.Retention.Std())
}
