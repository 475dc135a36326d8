// Package logger builds the process-wide *slog.Logger.
//
// Output always goes to stdout. When a file is configured it is also written
// there through lumberjack, which rotates it by size and prunes old copies.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/lumberjack.v2"

	"github.com/f3-invigorate/invigorate/internal/config"
)

// New returns the logger and a closer for the rotated file (a no-op when
// logging only to stdout).
func New(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	return newWithStdout(cfg, os.Stdout)
}

func newWithStdout(cfg config.LogConfig, stdout io.Writer) (*slog.Logger, io.Closer) {
	writers := []io.Writer{stdout}
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			LocalTime:  true,
		}
		writers = append(writers, rotated)
		closer = rotated
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	out := io.MultiWriter(writers...)

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(h), closer
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
