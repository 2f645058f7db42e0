// Package logger builds the process-wide slog.Logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLevel names the environment variable consulted by DefaultConfig.
const EnvLevel = "XYSCOPE_LOG_LEVEL"

// Config holds logger configuration.
type Config struct {
	Level  slog.Level
	Format string // "text" or "json"
	// Output defaults to stderr; stdout belongs to the terminal presenter.
	Output io.Writer
}

// New creates a configured slog.Logger.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.Level <= slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// DefaultConfig returns text output at the level named by XYSCOPE_LOG_LEVEL,
// or info when unset or invalid.
func DefaultConfig() Config {
	level := slog.LevelInfo
	if env := os.Getenv(EnvLevel); env != "" {
		if parsed, err := ParseLevel(env); err == nil {
			level = parsed
		}
	}
	return Config{Level: level, Format: "text"}
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
