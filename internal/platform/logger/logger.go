package logger

import (
	"io"
	"log/slog"
	"os"
)

// Options selects the slog handler.
type Options struct {
	Debug bool
	// Text switches to the human-readable handler for local runs.
	Text   bool
	Output io.Writer
}

// New returns a structured logger writing JSON to stdout by default.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if opts.Debug {
		handlerOpts.Level = slog.LevelDebug
		handlerOpts.AddSource = true
	}

	var h slog.Handler
	if opts.Text {
		h = slog.NewTextHandler(out, handlerOpts)
	} else {
		h = slog.NewJSONHandler(out, handlerOpts)
	}
	return slog.New(h).With("service", "podium")
}
