// Package logger provides structured logging functionality for the application.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/sableword/presswork/internal/config"
)

// Setup initializes and configures the application's logging system based on
// the provided configuration. Production deployments use a structured JSON
// handler; the "console" format swaps in a colorized tint handler for local
// development. The configured logger is also installed as the slog default.
//
// Returns the configured logger and any error encountered during setup.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "console":
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	case "json", "":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	default:
		return nil, fmt.Errorf("invalid log format %q (expected json or console)", cfg.LogFormat)
	}

	logger := slog.New(handler)

	// Set this logger as the default for the application so components
	// without an injected logger still log structurally.
	slog.SetDefault(logger)

	return logger, nil
}

// parseLevel converts a configured level string to a slog.Level
// (case-insensitive).
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
}
