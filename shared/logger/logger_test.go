package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel string
		wantCount int
	}{
		{name: "debug keeps everything", level: "debug", wantLevel: "DEBUG", wantCount: 4},
		{name: "info drops debug", level: "info", wantLevel: "INFO", wantCount: 3},
		{name: "warn drops info", level: "warn", wantLevel: "WARN", wantCount: 2},
		{name: "error keeps only errors", level: "error", wantLevel: "ERROR", wantCount: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			logger, err := New(&Config{Level: tt.level, Format: "json", writer: output})
			require.NoError(t, err)

			logger.Debug("Counter fetched", slog.Int("value", 10))
			logger.Info("Work order published", slog.String("work_order", "12/2025"))
			logger.Warn("File locked; retrying", slog.Int("attempt", 1))
			logger.Error("Publish failed", slog.String("error", "timeout"))

			entries := decodeLines(t, output)
			require.Len(t, entries, tt.wantCount)
			assert.Equal(t, tt.wantLevel, entries[0]["level"])
			assert.Contains(t, entries[0], "time")
		})
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{Level: "info", Format: "console", TimeFormat: time.RFC3339, writer: output})
	require.NoError(t, err)

	logger.Info("New xlsx detected", slog.String("path", "RN 0175 2025.xlsx"))

	// tint abbreviates levels
	assert.Contains(t, output.String(), "INF")
	assert.Contains(t, output.String(), "New xlsx detected")
	assert.Contains(t, output.String(), "RN 0175 2025.xlsx")
}

func TestNew_SourceLocation(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{Level: "info", Format: "json", EnableSource: true, writer: output})
	require.NoError(t, err)

	logger.Info("message with source")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	source, ok := entries[0]["source"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, source, "file")
	assert.Contains(t, source, "line")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	logger, err := New(&Config{Level: "info", Format: "console", Output: path})
	require.NoError(t, err)

	logger.Info("Started watching", slog.String("folder", "/srv/nalozi"))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Started watching")
	assert.NotContains(t, string(data), "\x1b[", "log files carry no colour codes")
}

func TestNew_FileOutputBadPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := New(&Config{Output: filepath.Join(blocker, "app.log")})
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{level: "debug", expected: slog.LevelDebug},
		{level: "info", expected: slog.LevelInfo},
		{level: "warn", expected: slog.LevelWarn},
		{level: "warning", expected: slog.LevelWarn},
		{level: "error", expected: slog.LevelError},
		{level: "DEBUG", expected: slog.LevelInfo},
		{level: "", expected: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestLogger_Derived(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{Level: "info", Format: "json", writer: output})
	require.NoError(t, err)

	logger.WithAttrs(slog.String("task_id", "t-1")).Info("attrs")
	logger.With(slog.String("path", "a.xlsx")).Info("with")
	logger.WithGroup("ftp").Info("group", slog.Int("attempt", 2))

	entries := decodeLines(t, output)
	require.Len(t, entries, 3)
	assert.Equal(t, "t-1", entries[0]["task_id"])
	assert.Equal(t, "a.xlsx", entries[1]["path"])
	group := entries[2]["ftp"].(map[string]interface{})
	assert.Equal(t, float64(2), group["attempt"])
}

func TestNewDefaultAndDiscard(t *testing.T) {
	require.NotNil(t, NewDefault().Logger)
	discard := NewDiscard()
	discard.Info("dropped")
	assert.NoError(t, discard.Close())
}
