package testutil

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
)

// Logger discards output. LoggerWithOutput routes it to t.Log instead.
func Logger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// LoggerWithOutput logs through t.Log so output shows up for failing tests.
func LoggerWithOutput(t testing.TB) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: testLogWriter{t}, NoColor: true}).
		With().Timestamp().Logger()
}

type testLogWriter struct {
	t testing.TB
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
