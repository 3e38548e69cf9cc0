// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config contains logger configuration.
type Config struct {
	Level      string // debug, info, warn or error
	File       string // rotated log file; empty logs to stderr only
	MaxSize    int    // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	JSON       bool
	FileOnly   bool // do not mirror File to stderr
}

// DefaultFile returns ~/.local/state/querylens/querylens.log.
func DefaultFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "querylens", "querylens.log")
}

// Setup applies cfg to logger and returns a closer for the log file.
func Setup(logger *logrus.Logger, cfg Config) (io.Closer, error) {
	if cfg.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level := logrus.InfoLevel
	if cfg.Level != "" {
		l, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}
	logger.SetLevel(level)

	if cfg.File == "" {
		logger.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	rotated := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    orDefault(cfg.MaxSize, 10),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		MaxAge:     orDefault(cfg.MaxAge, 28),
		Compress:   cfg.Compress,
	}
	if cfg.FileOnly {
		logger.SetOutput(rotated)
	} else {
		logger.SetOutput(io.MultiWriter(rotated, os.Stderr))
	}
	return rotated, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
