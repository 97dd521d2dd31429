package store

import (
	"context"
	"sync"

	"pledgeit/internal/audit"
)

// InMemory is an append-only slice behind a mutex.
type InMemory struct {
	mu     sync.Mutex
	events []audit.Event
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemory) ListByEvent(ctx context.Context, eventID int64) ([]audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out, nil
}
