package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/sableword/presswork/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	// Not parallel: Setup mutates the process-wide default logger.
	original := slog.Default()
	defer slog.SetDefault(original)

	t.Run("json format", func(t *testing.T) {
		logger, err := Setup(config.ServerConfig{LogLevel: "info", LogFormat: "json"})

		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.Same(t, logger, slog.Default(), "Setup should install the logger as default")
	})

	t.Run("console format", func(t *testing.T) {
		logger, err := Setup(config.ServerConfig{LogLevel: "debug", LogFormat: "console"})

		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := Setup(config.ServerConfig{LogLevel: "verbose", LogFormat: "json"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := Setup(config.ServerConfig{LogLevel: "info", LogFormat: "xml"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log format")
	})

	t.Run("level filtering", func(t *testing.T) {
		logger, err := Setup(config.ServerConfig{LogLevel: "warn", LogFormat: "json"})

		require.NoError(t, err)
		assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
		assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"", slog.LevelInfo, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tc := range cases {
		level, err := parseLevel(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "parseLevel(%q)", tc.in)
			continue
		}
		require.NoError(t, err, "parseLevel(%q)", tc.in)
		assert.Equal(t, tc.want, level, "parseLevel(%q)", tc.in)
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	t.Run("returns stored logger", func(t *testing.T) {
		t.Parallel()

		logger, _ := GetTestLogger(t)
		ctx := WithLogger(context.Background(), logger)

		assert.Same(t, logger, FromContext(ctx))
	})

	t.Run("falls back to default", func(t *testing.T) {
		t.Parallel()

		assert.NotNil(t, FromContext(context.Background()))
		assert.NotNil(t, FromContext(nil)) //nolint:staticcheck // nil context fallback is the point
	})
}

func TestLogBufferCapture(t *testing.T) {
	t.Parallel()

	logger, logBuf := GetTestLogger(t)

	logger.Info("job dispatched", "job_id", int64(7), "job_type", "source_fetch")

	AssertLogContains(t, logBuf, "job dispatched")

	entries, err := logBuf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "source_fetch", entries[0]["job_type"])
}
