// Package logging builds the root logger. Components receive a
// zerolog.Logger and scope it with a component field.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates the root logger. level is a zerolog level name (an
// unknown or empty level falls back to info); format is "json" for
// machine-readable output, anything else gets the console writer.
func New(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var output io.Writer = os.Stderr
	if format != "json" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		}
	}

	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}
