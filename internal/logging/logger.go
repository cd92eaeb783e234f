// Package logging provides structured logging built on log/slog.
package logging

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger so call sites share one construction path.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the specified log level and format.
// level is one of "debug", "info", "warn", "error" (default info);
// format can be "json" or "text" (default is json).
func New(level, format string) *Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		// Add source location for errors and above
		AddSource: lvl <= slog.LevelError,
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Default returns the default logger (uses slog.Default).
func Default() *Logger {
	return &Logger{Logger: slog.Default()}
}

// With returns a new logger with the given attributes added.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ParseLevel converts a string log level to slog.Level.
// Valid values: "debug", "info", "warn", "error".
// Returns slog.LevelInfo for invalid values.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault installs l as the process-wide default logger.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

// Err returns a slog attribute for an error.
func Err(err error) slog.Attr {
	return slog.String("error", err.Error())
}
