package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withLevel(t *testing.T, l slog.Level) {
	t.Helper()
	prev := Level()
	SetLevel(l)
	t.Cleanup(func() { SetLevel(prev) })
}

func TestNewJSON(t *testing.T) {
	withLevel(t, slog.LevelInfo)

	var buf bytes.Buffer
	logger := New("pybox", Options{JSON: true, Stream: &buf})
	logger.Info("image exported", "path", "dist/image.tar")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "image exported", record["msg"])
	assert.Equal(t, "dist/image.tar", record["path"])
	assert.Equal(t, "pybox", record["logger"])
}

func TestSetLevelFilters(t *testing.T) {
	withLevel(t, slog.LevelWarn)

	var buf bytes.Buffer
	logger := New("pybox", Options{Stream: &buf})
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestSetLevelAffectsExistingLoggers(t *testing.T) {
	withLevel(t, slog.LevelInfo)

	var buf bytes.Buffer
	logger := New("pybox", Options{Stream: &buf})

	logger.Debug("before")
	SetLevel(slog.LevelDebug)
	logger.Debug("after")

	out := buf.String()
	assert.False(t, strings.Contains(out, "before"))
	assert.True(t, strings.Contains(out, "after"))
}

func TestZapLevel(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want slog.Level
	}{
		{slog.LevelDebug - 4, slog.LevelDebug},
		{slog.LevelDebug, slog.LevelDebug},
		{slog.LevelInfo, slog.LevelInfo},
		{slog.LevelWarn, slog.LevelWarn},
		{slog.LevelError, slog.LevelError},
		{slog.LevelError + 4, slog.LevelError},
	}

	for _, tt := range tests {
		withLevel(t, tt.in)
		assert.Equal(t, tt.want, Level(), "level %v", tt.in)
	}
}
