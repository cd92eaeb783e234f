package logging

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"json at info", "info", "json"},
		{"text at debug", "debug", "text"},
		{"unknown level falls back to info", "verbose", "json"},
		{"unknown format falls back to json", "error", "logfmt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.level, tt.format)
			require.NotNil(t, log)
			require.NotNil(t, log.Logger)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"trace", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestSetDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	log := New("warn", "text")
	log.SetDefault()

	assert.Same(t, log.Logger, slog.Default())
	assert.Same(t, log.Logger, Default().Logger)
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("boom"))

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, "boom", attr.Value.String())
}
