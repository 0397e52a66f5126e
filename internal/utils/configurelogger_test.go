package utils

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreDefaultLogger(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })
}

func TestConfigureDefaultLoggerLevels(t *testing.T) {
	restoreDefaultLogger(t)

	tests := []struct {
		level   string
		enabled slog.Level
		muted   slog.Level
	}{
		{level: "error", enabled: slog.LevelError, muted: slog.LevelWarn},
		{level: "warn", enabled: slog.LevelWarn, muted: slog.LevelInfo},
		{level: "info", enabled: slog.LevelInfo, muted: slog.LevelDebug},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			f, err := ConfigureDefaultLogger(tt.level, "", slog.HandlerOptions{})
			require.NoError(t, err)
			assert.Nil(t, f)

			ctx := context.Background()
			assert.True(t, slog.Default().Enabled(ctx, tt.enabled))
			assert.False(t, slog.Default().Enabled(ctx, tt.muted))
		})
	}
}

func TestConfigureDefaultLoggerNone(t *testing.T) {
	restoreDefaultLogger(t)

	f, err := ConfigureDefaultLogger("none", "ignored.log", slog.HandlerOptions{})
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestConfigureDefaultLoggerUnknownLevel(t *testing.T) {
	restoreDefaultLogger(t)

	_, err := ConfigureDefaultLogger("verbose", "", slog.HandlerOptions{})
	assert.ErrorIs(t, err, errUnexpectedLogLevel)
}

func TestConfigureDefaultLoggerWritesJSONFile(t *testing.T) {
	restoreDefaultLogger(t)
	logFile := filepath.Join(t.TempDir(), "serialwav.log")

	f, err := ConfigureDefaultLogger("debug", logFile, slog.HandlerOptions{})
	require.NoError(t, err)
	require.NotNil(t, f)

	slog.Debug("chunk written", "bytes", 512)
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(raw, &record))
	assert.Equal(t, "chunk written", record["msg"])
	assert.Equal(t, float64(512), record["bytes"])
}
