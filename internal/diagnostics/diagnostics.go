// Package diagnostics wraps rs/zerolog into the leveled, TTY-aware logger
// used across mutx, plus the per-invocation session id used to correlate
// log lines from a single CLI run. Grounded on the pack's zerolog usage
// (github.com/rs/zerolog/log, github.com/rs/zerolog.New(writer)) and on
// mattn/go-isatty + fatih/color for conditional coloring, both already
// imported by the teacher's demo command.
package diagnostics

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing to w at the given verbosity. verbosity
// counts repeated -v flags: 0 is Info, 1 is Debug, 2+ is Trace, matching the
// verbosity-count-to-level convention used across the pack's CLIs.
func New(w io.Writer, verbosity int) zerolog.Logger {
	level := levelFor(verbosity)

	out := w
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		out = zerolog.ConsoleWriter{Out: f, TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("session", uuid.NewString()[:8]).
		Logger()
}

func levelFor(verbosity int) zerolog.Level {
	switch {
	case verbosity >= 2:
		return zerolog.TraceLevel
	case verbosity == 1:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
