// Package events carries hsm.Event values out of the core to downstream
// subscribers — hand-history analytics, lobby displays — over an optional
// Kafka publisher. Both publisher implementations satisfy the same
// interface so the core never branches on whether Kafka is configured.
package events

import (
	"context"

	"holdem-core/internal/hsm"
)

// Record is one event wrapped with the table/hand context the HSM itself
// does not track.
type Record struct {
	TableID string
	HandID  string
	Event   hsm.Event
}

// Publisher publishes a batch of event records. It must never block a hand
// for longer than its own internal buffering allows; a slow or unreachable
// broker is handled by the implementation, not by callers.
type Publisher interface {
	Publish(ctx context.Context, records []Record) error
	Close() error
}

// NoopPublisher is used when neither a Kafka publisher nor a ClickHouse
// sink is available; it drops everything.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, []Record) error { return nil }
func (NoopPublisher) Close() error                             { return nil }

// Fanout publishes to every wrapped Publisher, continuing past individual
// failures so one slow sink (e.g. analytics) never blocks another (e.g.
// the Kafka stream) or a hand advancing.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, records []Record) error {
	var firstErr error
	for _, p := range f {
		if err := p.Publish(ctx, records); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f Fanout) Close() error {
	var firstErr error
	for _, p := range f {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
