package internal

import (
	"io"

	"github.com/starford/lectern/internal/notify"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	sinks     []notify.Sink
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sets the console log destination (stdout by default). The
// MCP stdio server needs stdout for the protocol and logs to stderr instead.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithSink adds a receiver for user notifications next to the log.
func WithSink(sink notify.Sink) Option {
	return func(a *application) {
		a.sinks = append(a.sinks, sink)
	}
}
