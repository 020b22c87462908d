package cglog

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesToConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, registry, err := New(Config{
		LogDir:       dir,
		LogLevel:     "debug",
		ConsoleLevel: "warn",
		Console:      &console,
	})
	require.NoError(t, err)
	require.NotNil(t, registry)

	logger.Info("info line")  // below console level, should not reach console
	logger.Warn("warn line")  // at console level, should reach console

	require.NotContains(t, console.String(), "info line")
	require.Contains(t, console.String(), "warn line")

	data, err := os.ReadFile(filepath.Join(dir, "logs", "cloudgather.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "info line")
	require.Contains(t, string(data), "warn line")
}

func TestNewRoutesIntoLogRing(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, registry, err := New(Config{LogDir: dir, ConsoleLevel: "info", Console: &console})
	require.NoError(t, err)

	logger.Info("hello", slog.String("task_id", "t1"))

	lines := registry.Get("t1")
	require.Len(t, lines, 1)
	require.Equal(t, "hello", lines[0].Message)
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	level, err := parseLevel("")
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, level)
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	_, err := parseLevel("bogus")
	require.Error(t, err)
}
