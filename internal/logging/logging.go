// Package logging builds the zerolog loggers handed to every component.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Options controls logger construction.
type Options struct {
	Level   string // trace|debug|info|warn|error; empty means info
	Verbose bool   // forces debug when Level is empty
	Pretty  *bool  // nil: pretty only when Out is a terminal
	Out     io.Writer
}

// New returns a logger writing to opts.Out (stderr by default).
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	pretty := isTerminal(out)
	if opts.Pretty != nil {
		pretty = *opts.Pretty
	}
	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).
		Level(ParseLevel(opts.Level, opts.Verbose)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a level name to a zerolog level. Unknown names fall back to info.
func ParseLevel(name string, verbose bool) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		if verbose {
			return zerolog.DebugLevel
		}
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Nop returns a disabled logger, handy as a default for optional dependencies.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
