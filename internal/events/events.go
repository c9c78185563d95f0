// Package events delivers engine notifications (catalog changes, completed
// synchronizations, issued certificates) to collaborators.
//
// Emitting never fails from the caller's point of view: a sink logs its own
// delivery errors. Payloads must not carry purchaser PII.
package events

import (
	"context"
	"log/slog"
	"sync"

	"audiolicense/pkg/contracts/domain"
)

// Sink receives fire-and-forget events
type Sink interface {
	Emit(ctx context.Context, event domain.Event)
}

// LogSink writes every event to the structured log
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs events at info level
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("component", "events"))}
}

// Emit implements Sink
func (s *LogSink) Emit(ctx context.Context, event domain.Event) {
	s.logger.InfoContext(ctx, "event emitted",
		slog.String("event", event.Name),
		slog.String("key", event.Key),
		slog.Any("payload", event.Payload))
}

// Multi fans an event out to several sinks in order
type Multi []Sink

// Emit implements Sink
func (m Multi) Emit(ctx context.Context, event domain.Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}

// Recorder keeps emitted events in memory
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements Sink
func (r *Recorder) Emit(_ context.Context, event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events with the given name
func (r *Recorder) Named(name string) []domain.Event {
	var out []domain.Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
