// Package cglog wires up the two logging sinks named in the ambient
// logging design (console + rotating file, independently leveled) plus
// the Log Ring side channel, and hands callers a single *slog.Logger.
//
// Grounded on the teacher's root.go buildLogger (console slog.TextHandler
// construction, level-from-string parsing) and on firestige-Otus's
// internal/log/logger.go for pairing a structured logger with
// lumberjack-based file rotation. Unlike that example, CONSOLE_LEVEL and
// LOG_LEVEL are independent, so the two sinks cannot share one handler
// behind an io.MultiWriter — fanoutHandler dispatches to each sink only
// when that sink's own Enabled check passes. rotate.go drives lumberjack's
// Rotate at local midnight so retention is actually day-based, since
// lumberjack on its own only rotates at its MaxSize default.
package cglog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cloudgather/cloudgather/internal/logring"
)

// Config holds the settings needed to build a logger. Field names mirror
// the env vars documented in SPEC_FULL.md A.1.
type Config struct {
	// LogDir is the config directory; the rotating file sink writes to
	// LogDir/logs/cloudgather.log, matching the on-disk layout in
	// spec.md:137 ("logs/cloudgather.log ... under a config directory").
	LogDir string

	// LogLevel controls the file sink's verbosity. Defaults to "info".
	LogLevel string

	// ConsoleLevel controls the console sink's verbosity. Defaults to
	// "info".
	ConsoleLevel string

	// SaveDays is the retention window in days, mapped onto lumberjack's
	// MaxAge. Defaults to 7.
	SaveDays int

	// Console is where the console sink writes. Defaults to os.Stderr.
	Console io.Writer
}

// New builds the CloudGather logger: console + rotating file sinks fanned
// out behind a Log Ring observer. Callers get back the logger and the
// Registry backing its ring, so a control surface (or the CLI) can read
// per-task lines out later.
func New(cfg Config) (*slog.Logger, *logring.Registry, error) {
	consoleLevel, err := parseLevel(cfg.ConsoleLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("cglog: console level: %w", err)
	}

	fileLevel, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("cglog: log level: %w", err)
	}

	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}

	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: consoleLevel})

	saveDays := cfg.SaveDays
	if saveDays <= 0 {
		saveDays = 7
	}

	logDir := cfg.LogDir
	if logDir == "" {
		logDir = "."
	}

	fileSink := &lumberjack.Logger{
		Filename: filepath.Join(logDir, "logs", "cloudgather.log"),
		MaxAge:   saveDays,
		Compress: true,
	}

	startDailyRotation(fileSink)

	fileHandler := slog.NewJSONHandler(fileSink, &slog.HandlerOptions{Level: fileLevel})

	fanout := newFanoutHandler(consoleHandler, fileHandler)

	registry := logring.NewRegistry(logring.DefaultCapacity)
	ringed := logring.NewHandler(fanout, registry)

	return slog.New(ringed), registry, nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q: %w", s, err)
	}

	return level, nil
}
