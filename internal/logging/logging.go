package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/TobiSchelling/MeduzaReader/internal/config"
)

// Level is a minimum log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

var current = LevelInfo

// ParseLevel maps a config string to a Level, defaulting to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarning
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Setup configures the standard logger. When cfg.File is set, output is
// written to stderr and to a size-rotated file. The returned closer must be
// called on shutdown.
func Setup(cfg config.Logging, verbose bool) (io.Closer, error) {
	flags := log.LstdFlags
	if verbose {
		flags |= log.Lshortfile
	}
	log.SetFlags(flags)

	current = ParseLevel(cfg.Level)
	if verbose {
		current = LevelDebug
	}

	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Debugf logs only when the configured level is DEBUG.
func Debugf(format string, v ...any) {
	logf(LevelDebug, "DEBUG ", format, v...)
}

// Infof logs routine progress. It is silenced by WARNING and ERROR.
func Infof(format string, v ...any) {
	logf(LevelInfo, "", format, v...)
}

// Warnf logs a recovered failure.
func Warnf(format string, v ...any) {
	logf(LevelWarning, "WARNING ", format, v...)
}

// Errorf logs a failure that aborted an operation.
func Errorf(format string, v ...any) {
	logf(LevelError, "ERROR ", format, v...)
}

func logf(level Level, prefix, format string, v ...any) {
	if current <= level {
		log.Output(3, prefix+fmt.Sprintf(format, v...))
	}
}
