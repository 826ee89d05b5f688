// Package logger configures the structured logger shared by the agent core.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New creates the process logger. Output is JSON lines on stdout, which the
// hosting runtime ships to the log collector.
func New() zerolog.Logger {
	return zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "hearthledger").
		Logger()
}

// NewWithWriter creates a logger with a custom writer, used by tests.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
