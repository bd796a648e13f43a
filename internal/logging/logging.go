// Package logging provides structured logging for the settlement core,
// wrapping charmbracelet/log the way Klingon-tech-klingdex's
// pkg/logging/logging.go does: a thin Logger type plus component-scoped
// child loggers, instead of bare log.Printf calls.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Level re-exports charmbracelet/log's level type.
type Level = log.Level

const (
	DebugLevel = log.DebugLevel
	InfoLevel  = log.InfoLevel
	WarnLevel  = log.WarnLevel
	ErrorLevel = log.ErrorLevel
	FatalLevel = log.FatalLevel
)

// Logger wraps charmbracelet/log with component naming.
type Logger struct {
	*log.Logger
}

// Config holds logger configuration.
type Config struct {
	Level  string
	Prefix string
	Output io.Writer
}

// DefaultConfig returns a default logging configuration: info level, no
// prefix, stderr output.
func DefaultConfig() *Config {
	return &Config{Level: "info", Output: os.Stderr}
}

// New creates a new logger with the given configuration.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	l := log.NewWithOptions(output, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          cfg.Prefix,
	})
	l.SetLevel(ParseLevel(cfg.Level))
	return &Logger{Logger: l}
}

// ParseLevel parses a string level, defaulting to info for anything
// unrecognised.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Component returns a child logger prefixed with name, inheriting this
// logger's level and output.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.Logger.WithPrefix(name)}
}

var defaultLogger = New(DefaultConfig())

// SetDefault replaces the package default logger (called once at startup
// after config is loaded).
func SetDefault(l *Logger) { defaultLogger = l }

// Default returns the package default logger.
func Default() *Logger { return defaultLogger }
