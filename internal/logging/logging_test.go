package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"raindrop_sync/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var linePattern = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] \[(SUCCESS|WARNING|ERROR)\] `)

func TestLineFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriters(zapcore.InfoLevel, zapcore.AddSync(&buf))

	logger.Info("Script started.")
	logger.Warn("Parent collection not found", zap.Int64("parent_id", 7))
	logger.Error("Script failed")
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.Regexp(t, linePattern, line)
	}
	assert.Contains(t, lines[0], "[SUCCESS] Script started.")
	assert.Contains(t, lines[1], "[WARNING] Parent collection not found")
	assert.Contains(t, lines[1], `"parent_id": 7`)
	assert.Contains(t, lines[2], "[ERROR] Script failed")
}

func TestNewAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")
	require.NoError(t, os.WriteFile(path, []byte("previous line\n"), 0o600))

	logger, cleanup, err := New(config.LogConfig{File: path, Level: "info", MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)
	logger.Info("appended")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "previous line\n"))
	assert.Contains(t, string(data), "[SUCCESS] appended")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(config.LogConfig{File: filepath.Join(t.TempDir(), "x.log"), Level: "loud"})
	assert.Error(t, err)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, "DEBUG", StatusOf(zapcore.DebugLevel))
	assert.Equal(t, "SUCCESS", StatusOf(zapcore.InfoLevel))
	assert.Equal(t, "WARNING", StatusOf(zapcore.WarnLevel))
	assert.Equal(t, "ERROR", StatusOf(zapcore.ErrorLevel))
	assert.Equal(t, "ERROR", StatusOf(zapcore.FatalLevel))
}
