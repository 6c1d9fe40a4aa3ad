package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// newLogger creates an isolated slog.Logger; it does not touch the global
// default.
func newLogger(levelStr, formatStr string, outW io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch formatStr {
	case "json":
		handler = slog.NewJSONHandler(outW, handlerOpts)
	case "text", "":
		handler = slog.NewTextHandler(outW, handlerOpts)
	default:
		return nil, fmt.Errorf("invalid log format '%s': must be 'text' or 'json'", formatStr)
	}
	return slog.New(handler), nil
}

// parseLevel accepts debug, info, warn and error in any case.
func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "error":
		if err := level.UnmarshalText([]byte(s)); err != nil {
			return 0, err
		}
		return level, nil
	default:
		return 0, fmt.Errorf("invalid log level '%s': must be 'debug', 'info', 'warn', or 'error'", s)
	}
}
