package store

import (
	"context"
	"database/sql"
	"fmt"

	"pledgeit/internal/audit"
)

// Schema creates the audit trail table.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_trail (
    id         BIGSERIAL PRIMARY KEY,
    occurred   TIMESTAMPTZ NOT NULL,
    actor      TEXT NOT NULL,
    action     TEXT NOT NULL,
    event_id   BIGINT NOT NULL,
    detail     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_trail_event ON audit_trail (event_id);
`

// Postgres persists trail entries to the audit_trail table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, event audit.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_trail (occurred, actor, action, event_id, detail)
         VALUES ($1, $2, $3, $4, $5)`,
		event.Timestamp, event.Actor, event.Action, event.EventID, event.Detail)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *Postgres) ListByEvent(ctx context.Context, eventID int64) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT occurred, actor, action, event_id, detail
         FROM audit_trail WHERE event_id = $1 ORDER BY id`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var e audit.Event
		if err := rows.Scan(&e.Timestamp, &e.Actor, &e.Action, &e.EventID, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
