// Package audit keeps an append-only trail of membership and lifecycle
// actions. Back-reference write failures land here too, so a reconciliation
// pass can replay them against the profile stores.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Store is the persistence sink for trail entries.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEvent(ctx context.Context, eventID int64) ([]Event, error)
}

// Publisher hands events to the background worker over a buffered channel.
// Emit never blocks the request path; when the buffer is full the entry is
// dropped and logged.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
	clock  func() time.Time
}

type PublisherOption func(*Publisher)

func WithClock(clock func() time.Time) PublisherOption {
	return func(p *Publisher) { p.clock = clock }
}

func NewPublisher(buffer int, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.clock()
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit inbox full, dropping entry",
			"action", event.Action,
			"event_id", event.EventID)
	}
}

// Inbox exposes the channel for the worker.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}
