package audit

import (
	"context"
	"log/slog"
)

// Worker consumes trail entries from the publisher's channel and persists
// them. A failed append is logged and skipped; the trail is best-effort and
// must never wedge the process.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit append failed",
					"action", event.Action,
					"event_id", event.EventID,
					"error", err)
			}
		}
	}
}
