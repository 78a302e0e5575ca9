// Package sink delivers normalized events to downstream consumers: the
// database, the NATS broker, and live websocket clients. Delivery happens
// after deduplication so every sink sees each event exactly once per process.
package sink

import (
	"context"

	"github.com/arven/deadwatch/internal/domain"
)

// Sink receives normalized events accepted by the pipeline.
type Sink interface {
	Deliver(ctx context.Context, ev *domain.NormalizedEvent) error
}

// Func adapts a function to the Sink interface.
type Func func(ctx context.Context, ev *domain.NormalizedEvent) error

// Deliver calls f.
func (f Func) Deliver(ctx context.Context, ev *domain.NormalizedEvent) error {
	return f(ctx, ev)
}

// FilterKinds wraps next and silently drops events whose kind enabled
// reports as off. The database leg never goes through it; only the
// user-visible publish legs do.
func FilterKinds(next Sink, enabled func(kind string) bool) Sink {
	return Func(func(ctx context.Context, ev *domain.NormalizedEvent) error {
		if !enabled(ev.Kind) {
			return nil
		}
		return next.Deliver(ctx, ev)
	})
}

// Multi fans an event out to every sink in order. The first error stops
// delivery; the monitor retries the whole poll, so sinks must tolerate
// seeing an event again after a partial failure.
type Multi []Sink

// Deliver sends the event to each sink in order.
func (m Multi) Deliver(ctx context.Context, ev *domain.NormalizedEvent) error {
	for _, s := range m {
		if err := s.Deliver(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
