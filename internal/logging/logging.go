// Package logging configures the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ParseLevel converts a textual or numeric level into a slog.Level.
// An empty value means info.
func ParseLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return slog.LevelInfo, nil
	}
	if strings.EqualFold(value, "warning") {
		value = "warn"
	}

	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// New builds a logger writing to w. Production logs are JSON, everything
// else uses the text handler.
func New(w io.Writer, level slog.Level, production bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if production {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup installs the default logger for the process and returns it.
// An invalid level falls back to info and is reported once.
func Setup(rawLevel string, production bool) *slog.Logger {
	level, err := ParseLevel(rawLevel)
	logger := New(os.Stderr, level, production)
	slog.SetDefault(logger)
	if err != nil {
		logger.Warn("invalid LOG_LEVEL, defaulting to info", "value", rawLevel)
	}
	return logger
}
