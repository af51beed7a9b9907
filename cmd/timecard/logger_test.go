package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/timecard/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, parseLevel(in))
		})
	}
}

func TestColorHandler_WritesAttrs(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.With("component", "api").Info("login", "user", "alice", "status", 200)

	line := buf.String()
	assert.Contains(t, line, "INF login")
	assert.Contains(t, line, "component=api")
	assert.Contains(t, line, "user=alice")
	assert.Contains(t, line, "status=200")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestColorHandler_FiltersByLevel(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn"}, &buf)

	logger.Info("hidden")
	logger.Debug("hidden too")
	logger.Warn("shown")
	logger.Error("also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WRN shown")
	assert.Contains(t, out, "ERR also shown")
}

func TestColorHandler_Groups(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug"}, &buf)

	logger.WithGroup("req").Debug("done", "id", "abc", slog.Group("timing", "ms", 12))

	out := buf.String()
	assert.Contains(t, out, "DBG done")
	assert.Contains(t, out, "req.id=abc")
	assert.Contains(t, out, "req.timing.ms=12")
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("started", "addr", ":8080")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "started", rec["msg"])
	assert.Equal(t, ":8080", rec["addr"])
	assert.Equal(t, "INFO", rec["level"])
}
