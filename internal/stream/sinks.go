package stream

import (
	"log/slog"

	"github.com/kode4food/flowrelay/pkg/log"
)

type (
	// UpdateSink receives each parsed event payload, in arrival order
	UpdateSink interface {
		Update(data any)
	}

	// CloseSink is told once that the session reached Closed
	CloseSink interface {
		Close(reason string)
	}

	// ErrorSink receives per-event parse errors and, at most once, the
	// transport error that moved the session to Errored
	ErrorSink interface {
		Error(err error)
	}

	// Sinks bundles the three destinations of a session's events
	Sinks struct {
		Update UpdateSink
		Close  CloseSink
		Error  ErrorSink
	}

	// UpdateFunc adapts a function to an UpdateSink
	UpdateFunc func(data any)

	// CloseFunc adapts a function to a CloseSink
	CloseFunc func(reason string)

	// ErrorFunc adapts a function to an ErrorSink
	ErrorFunc func(err error)

	logSink struct{}
)

func (f UpdateFunc) Update(data any) {
	f(data)
}

func (f CloseFunc) Close(reason string) {
	f(reason)
}

func (f ErrorFunc) Error(err error) {
	f(err)
}

func (logSink) Update(data any) {
	slog.Debug("Stream update", slog.Any("data", data))
}

func (logSink) Close(reason string) {
	slog.Info("Stream closed", slog.String("reason", reason))
}

func (logSink) Error(err error) {
	slog.Error("Stream error", log.Error(err))
}

// withDefaults fills any missing sink with one that logs
func (s Sinks) withDefaults() Sinks {
	if s.Update == nil {
		s.Update = logSink{}
	}
	if s.Close == nil {
		s.Close = logSink{}
	}
	if s.Error == nil {
		s.Error = logSink{}
	}
	return s
}
