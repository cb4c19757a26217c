package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs a zerolog.Logger for the service. Development gets a
// console writer at debug level; everything else logs JSON at info.
func NewLogger(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", "videogen").
		Logger()

	if appEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger
}

// Logger is the service-wide logger type.
type Logger = zerolog.Logger

// Component returns a child logger tagged with the component name.
func Component(l Logger, name string) Logger {
	return l.With().Str("component", name).Logger()
}

// NopLogger discards everything. Used when callers pass no logger.
func NopLogger() Logger {
	return zerolog.New(io.Discard)
}
