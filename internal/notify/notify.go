// Package notify delivers short user-facing messages with a severity.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Level is the severity of a notification.
type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Sink displays notifications. Implementations must not block.
type Sink interface {
	Notify(level Level, msg string)
}

// Func adapts a plain function to Sink.
type Func func(level Level, msg string)

func (f Func) Notify(level Level, msg string) { f(level, msg) }

// Discard drops every notification.
var Discard Sink = Func(func(Level, string) {})

// LogSink writes notifications to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Notify(level Level, msg string) {
	l := slog.LevelInfo
	switch level {
	case Warning:
		l = slog.LevelWarn
	case Error:
		l = slog.LevelError
	}
	s.Logger.Log(context.Background(), l, msg, slog.String("source", "notify"))
}

// Multi fans a notification out to every sink.
func Multi(sinks ...Sink) Sink {
	return Func(func(level Level, msg string) {
		for _, s := range sinks {
			s.Notify(level, msg)
		}
	})
}

// Once passes each key's first notification through and drops repeats, for
// notices that should appear once per session.
type Once struct {
	sink Sink
	mu   sync.Mutex
	seen map[string]bool
}

// NewOnce wraps sink.
func NewOnce(sink Sink) *Once {
	return &Once{sink: sink, seen: make(map[string]bool)}
}

// Notify forwards msg unless key was already used.
func (o *Once) Notify(key string, level Level, msg string) {
	o.mu.Lock()
	if o.seen[key] {
		o.mu.Unlock()
		return
	}
	o.seen[key] = true
	o.mu.Unlock()
	o.sink.Notify(level, msg)
}
