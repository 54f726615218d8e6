// Package logging builds the process-wide zerolog logger. Discovery
// renderers own stdout, so log output always goes to stderr to keep
// piped output clean.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Base returns the root logger for one invocation, writing to stderr.
// level accepts the zerolog names (debug, info, warn, error); anything
// unparsable falls back to info. format is "console" for human-readable
// lines, anything else means JSON.
func Base(app, level, format string) zerolog.Logger {
	return New(os.Stderr, app, level, format)
}

// New is Base with an explicit sink.
func New(out io.Writer, app, level, format string) zerolog.Logger {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		out = zerolog.ConsoleWriter{Out: out}
	}

	return zerolog.New(out).
		Level(parseLevel(level)).
		With().Timestamp().Str("app", app).Logger()
}

func parseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.InfoLevel
	}

	return lvl
}
