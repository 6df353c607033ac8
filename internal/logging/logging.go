// Package logging builds the zerolog loggers used by the agent and the
// collector: console output plus an optional size-rotated log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Levels accepted in configuration files.
var Levels = []string{"trace", "debug", "info", "warn", "error"}

// Config selects the level and the rotated log file. An empty File logs to
// the console only.
type Config struct {
	Level          string
	File           string
	MaxFileSizeMB  int
	MaxBackupFiles int
	JSONConsole    bool
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ValidLevel reports whether level is one of Levels.
func ValidLevel(level string) bool {
	for _, l := range Levels {
		if l == level {
			return true
		}
	}
	return false
}

// New returns a logger writing to stdout and, when configured, to a
// lumberjack-rotated file. The returned closer releases the file.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339

	var console io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	if cfg.JSONConsole {
		console = os.Stdout
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return zerolog.Nop(), nil, fmt.Errorf("create log directory %s: %w", dir, err)
			}
		}
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxFileSizeMB,
			MaxBackups: cfg.MaxBackupFiles,
		}
		writers = append(writers, file)
		closer = file
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return logger, closer, nil
}

// Component tags every event from the returned logger with its source.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
