// Package obslog builds the structured diagnostics logger layered over the
// teacher's plain fmt.Printf search-stats stream (internal/sat/solver.go's
// printSearchStats), so outcomes can be grepped/alerted on independently of
// that human-readable progress report (SPEC_FULL.md §10). Within this module
// the only entry written through it is the Info-level "search finished"
// line of search.Driver.Solve; no component writes ERROR-level entries,
// including for InternalError statuses or failed portfolio workers.
package obslog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the logger New builds.
type Options struct {
	// Level is the minimum level that reaches Writer. Defaults to
	// zerolog.InfoLevel.
	Level zerolog.Level
	// Writer receives formatted records. Defaults to os.Stderr.
	Writer io.Writer
	// Pretty selects zerolog's human-readable console writer instead of raw
	// JSON lines; useful for cmd/lcgc's interactive use, off by default so
	// the default stays machine-parseable for operators.
	Pretty bool
}

// New builds a zerolog.Logger configured per opts, with a "component" field
// pre-bound so every reasoner/driver/portfolio log line is attributable.
func New(component string, opts Options) zerolog.Logger {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}
	w := opts.Writer
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: opts.Writer, TimeFormat: time.RFC3339}
	}
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// Nop returns a logger that discards everything, for tests and embedders
// that don't want kernel diagnostics on their own output streams.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
