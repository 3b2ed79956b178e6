// Package logger constructs the zerolog root logger shared by all gateway
// components. Components receive a zerolog.Logger value (not a pointer)
// and derive sub-loggers with component fields.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates the root logger writing human-readable console output to
// stderr. Pass debug=true to include debug-level events; production runs
// at info level.
func New(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
