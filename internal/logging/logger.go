// Package logging builds the slog loggers shared by the CLI packages.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns a text logger on stderr at the given level.
// Stdout is reserved for command output. The "error" key is shortened to "err".
func New(level slog.Level) *slog.Logger {
	return NewWriter(os.Stderr, level)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LevelForVerbosity maps the -v count to a log level.
func LevelForVerbosity(v int) slog.Level {
	switch {
	case v >= 2:
		return slog.LevelDebug - 4
	case v == 1:
		return slog.LevelDebug
	default:
		return slog.LevelWarn
	}
}
