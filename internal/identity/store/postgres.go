package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pledgeit/internal/identity/models"
	"pledgeit/pkg/platform/sentinel"
)

// Schema creates the account tables.
const Schema = `
CREATE TABLE IF NOT EXISTS volunteers (
	id                UUID PRIMARY KEY,
	first_name        TEXT NOT NULL,
	last_name         TEXT NOT NULL DEFAULT '',
	email             TEXT NOT NULL UNIQUE,
	password_hash     TEXT NOT NULL,
	city              TEXT NOT NULL DEFAULT '',
	skills            TEXT[] NOT NULL DEFAULT '{}',
	registered_events BIGINT[] NOT NULL DEFAULT '{}',
	attended_events   BIGINT[] NOT NULL DEFAULT '{}',
	created_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS organizations (
	id             UUID PRIMARY KEY,
	name           TEXT NOT NULL UNIQUE,
	email          TEXT NOT NULL UNIQUE,
	password_hash  TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	created_events BIGINT[] NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL
);
`

// VolunteerPostgres persists volunteers in PostgreSQL.
type VolunteerPostgres struct {
	db *sql.DB
}

func NewVolunteerPostgres(db *sql.DB) *VolunteerPostgres {
	return &VolunteerPostgres{db: db}
}

// EnsureSchema creates the account tables if missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}

func (s *VolunteerPostgres) Create(ctx context.Context, v *models.Volunteer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO volunteers (id, first_name, last_name, email, password_hash, city, skills, registered_events, attended_events, created_at)
		VALUES ($1, $2, $3, lower($4), $5, $6, $7, $8, $9, $10)`,
		v.ID, v.FirstName, v.LastName, v.Email, v.PasswordHash, v.City,
		pq.Array(v.Skills), pq.Array(v.RegisteredEvents), pq.Array(v.AttendedEvents), v.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create volunteer: %w", err)
	}
	return nil
}

func (s *VolunteerPostgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Volunteer, error) {
	return scanVolunteer(s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, password_hash, city, skills, registered_events, attended_events, created_at
		FROM volunteers WHERE id = $1`, id))
}

func (s *VolunteerPostgres) FindByEmail(ctx context.Context, email string) (*models.Volunteer, error) {
	return scanVolunteer(s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, password_hash, city, skills, registered_events, attended_events, created_at
		FROM volunteers WHERE email = lower($1)`, email))
}

// AddRegisteredEvent appends the back-reference; the WHERE clause makes it
// idempotent under retries.
func (s *VolunteerPostgres) AddRegisteredEvent(ctx context.Context, id uuid.UUID, eventID int64) error {
	return s.appendEvent(ctx, "registered_events", id, eventID)
}

func (s *VolunteerPostgres) RemoveRegisteredEvent(ctx context.Context, id uuid.UUID, eventID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE volunteers SET registered_events = array_remove(registered_events, $2)
		WHERE id = $1`, id, eventID)
	if err != nil {
		return fmt.Errorf("remove registered event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *VolunteerPostgres) AddAttendedEvent(ctx context.Context, id uuid.UUID, eventID int64) error {
	return s.appendEvent(ctx, "attended_events", id, eventID)
}

func (s *VolunteerPostgres) appendEvent(ctx context.Context, column string, id uuid.UUID, eventID int64) error {
	// column is one of two fixed names, never caller input.
	query := fmt.Sprintf(`
		UPDATE volunteers SET %[1]s = array_append(%[1]s, $2)
		WHERE id = $1 AND NOT ($2 = ANY(%[1]s))`, column)
	res, err := s.db.ExecContext(ctx, query, id, eventID)
	if err != nil {
		return fmt.Errorf("append %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either the volunteer is unknown or the id is already present;
		// distinguish for the caller.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT true FROM volunteers WHERE id = $1`, id).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return sentinel.ErrNotFound
			}
			return err
		}
	}
	return nil
}

// OrganizationPostgres persists organizations in PostgreSQL.
type OrganizationPostgres struct {
	db *sql.DB
}

func NewOrganizationPostgres(db *sql.DB) *OrganizationPostgres {
	return &OrganizationPostgres{db: db}
}

func (s *OrganizationPostgres) Create(ctx context.Context, o *models.Organization) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, email, password_hash, description, website, created_events, created_at)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8)`,
		o.ID, o.Name, o.Email, o.PasswordHash, o.Description, o.Website,
		pq.Array(o.CreatedEvents), o.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

func (s *OrganizationPostgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return scanOrganization(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, description, website, created_events, created_at
		FROM organizations WHERE id = $1`, id))
}

func (s *OrganizationPostgres) FindByEmail(ctx context.Context, email string) (*models.Organization, error) {
	return scanOrganization(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, description, website, created_events, created_at
		FROM organizations WHERE email = lower($1)`, email))
}

func (s *OrganizationPostgres) AddCreatedEvent(ctx context.Context, id uuid.UUID, eventID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE organizations SET created_events = array_append(created_events, $2)
		WHERE id = $1 AND NOT ($2 = ANY(created_events))`, id, eventID)
	if err != nil {
		return fmt.Errorf("append created event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT true FROM organizations WHERE id = $1`, id).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return sentinel.ErrNotFound
			}
			return err
		}
	}
	return nil
}

func (s *OrganizationPostgres) RemoveCreatedEvent(ctx context.Context, id uuid.UUID, eventID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE organizations SET created_events = array_remove(created_events, $2)
		WHERE id = $1`, id, eventID)
	if err != nil {
		return fmt.Errorf("remove created event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanVolunteer(row *sql.Row) (*models.Volunteer, error) {
	var (
		v          models.Volunteer
		skills     pq.StringArray
		registered pq.Int64Array
		attended   pq.Int64Array
	)
	err := row.Scan(&v.ID, &v.FirstName, &v.LastName, &v.Email, &v.PasswordHash,
		&v.City, &skills, &registered, &attended, &v.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan volunteer: %w", err)
	}
	v.Skills = []string(skills)
	v.RegisteredEvents = []int64(registered)
	v.AttendedEvents = []int64(attended)
	return &v, nil
}

func scanOrganization(row *sql.Row) (*models.Organization, error) {
	var (
		o       models.Organization
		created pq.Int64Array
	)
	err := row.Scan(&o.ID, &o.Name, &o.Email, &o.PasswordHash,
		&o.Description, &o.Website, &created, &o.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan organization: %w", err)
	}
	o.CreatedEvents = []int64(created)
	return &o, nil
}
