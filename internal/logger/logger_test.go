package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/life-stream-dev/life-stream-go-bus/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncHandlerFormatsRecords(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	h := newWriterHandler(&buf, slog.LevelInfo)
	log := slog.New(h).With("conn", "127.0.0.1:1").WithGroup("bus")

	log.Info("subscribed", "channel", "orders")
	log.Debug("hidden")
	require.NoError(t, h.Close())

	out := buf.String()
	assert.Contains(t, out, "| INFO  | subscribed")
	assert.Contains(t, out, "conn=127.0.0.1:1")
	assert.Contains(t, out, "bus.channel=orders")
	assert.NotContains(t, out, "hidden")
}

func TestAsyncHandlerFatalLevel(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	h := newWriterHandler(&buf, slog.LevelDebug)
	slog.New(h).Log(context.Background(), LevelFatal, "boom")
	require.NoError(t, h.Close())

	assert.Contains(t, buf.String(), "FATAL")
}

func TestAsyncHandlerWriteAfterClose(t *testing.T) {
	h := newWriterHandler(&bytes.Buffer{}, slog.LevelInfo)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	assert.NotPanics(t, func() { h.Write([]byte("late\n")) })
}

func TestAsyncHandlerRotatesIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "2000-01-01.log")
	require.NoError(t, os.WriteFile(stale, []byte("old\n"), 0644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	h := NewAsyncHandler(dir, 24*time.Hour, slog.LevelInfo)
	slog.New(h).Info("hello")
	require.NoError(t, h.Close())

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestInitLevelFollowsDebugMode(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	for _, debug := range []bool{false, true} {
		cfg := config.Default()
		cfg.DebugMode = debug
		cfg.Log.Directory = t.TempDir()

		callback := Init(cfg)
		assert.Equal(t, debug, slog.Default().Enabled(context.Background(), slog.LevelDebug))
		assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
		require.NoError(t, callback.Invoke(context.Background()))
	}
}
