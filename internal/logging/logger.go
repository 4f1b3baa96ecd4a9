// Package logging builds the zerolog loggers used by the pulse binaries.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level and format.
type Config struct {
	// Level is any zerolog level name; unknown names fall back to info.
	Level string
	// Pretty uses the colored console writer instead of JSON lines.
	Pretty bool
	// Output defaults to os.Stderr so command output on stdout stays clean.
	Output io.Writer
}

// DefaultConfig is info level, pretty, on stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Pretty: true, Output: os.Stderr}
}

// New returns a timestamped logger for cfg.
func New(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// NewWithComponent tags every event with component.
func NewWithComponent(cfg Config, component string) zerolog.Logger {
	return New(cfg).With().Str("component", component).Logger()
}
