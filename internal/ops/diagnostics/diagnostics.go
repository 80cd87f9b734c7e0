// Package diagnostics decouples business logic from the logging backend:
// components accept a Sink instead of importing zerolog directly, so a
// test can swap in a no-op sink and production wires a zerolog-backed one.
package diagnostics

import "github.com/rs/zerolog"

// Sink receives structured diagnostic events from engine components.
type Sink interface {
	Info(event string, fields map[string]any)
	Warn(event string, fields map[string]any)
	Error(event string, err error, fields map[string]any)
}

// ZerologSink adapts a zerolog.Logger to Sink.
type ZerologSink struct {
	Log zerolog.Logger
}

func NewZerologSink(log zerolog.Logger) ZerologSink { return ZerologSink{Log: log} }

func (s ZerologSink) Info(event string, fields map[string]any) {
	e := s.Log.Info()
	applyFields(e, fields)
	e.Msg(event)
}

func (s ZerologSink) Warn(event string, fields map[string]any) {
	e := s.Log.Warn()
	applyFields(e, fields)
	e.Msg(event)
}

func (s ZerologSink) Error(event string, err error, fields map[string]any) {
	e := s.Log.Error().Err(err)
	applyFields(e, fields)
	e.Msg(event)
}

func applyFields(e *zerolog.Event, fields map[string]any) {
	for k, v := range fields {
		e.Interface(k, v)
	}
}

// NoopSink discards every event; useful in tests that don't want log noise.
type NoopSink struct{}

func (NoopSink) Info(string, map[string]any)       {}
func (NoopSink) Warn(string, map[string]any)       {}
func (NoopSink) Error(string, error, map[string]any) {}
