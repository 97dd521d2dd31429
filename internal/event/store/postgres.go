package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pledgeit/internal/event/models"
	"pledgeit/pkg/platform/sentinel"
)

// Schema creates the events table and the id sequence. The sequence is the
// monotonic counter behind NextID: ids are handed out atomically and never
// reused after deletes.
const Schema = `
CREATE SEQUENCE IF NOT EXISTS event_ids;

CREATE TABLE IF NOT EXISTS events (
	event_id               BIGINT PRIMARY KEY,
	name                   TEXT NOT NULL,
	organization_id        UUID NOT NULL,
	organization           TEXT NOT NULL,
	description            TEXT NOT NULL,
	category               TEXT NOT NULL,
	date                   DATE NOT NULL,
	time_of_day            TEXT NOT NULL,
	venue                  TEXT NOT NULL,
	city                   TEXT NOT NULL,
	address                TEXT NOT NULL,
	latitude               DOUBLE PRECISION,
	longitude              DOUBLE PRECISION,
	duration               TEXT NOT NULL,
	volunteer_requirements INT NOT NULL DEFAULT 0,
	skills_required        TEXT[] NOT NULL DEFAULT '{}',
	contact_email          TEXT NOT NULL,
	contact_name           TEXT NOT NULL,
	contact_number         TEXT NOT NULL,
	image_url              TEXT NOT NULL,
	registration_deadline  DATE NOT NULL,
	additional_notes       TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL,
	total_registered       INT NOT NULL DEFAULT 0,
	registered_volunteers  TEXT[] NOT NULL DEFAULT '{}',
	created_at             TIMESTAMPTZ NOT NULL,
	expire_at              TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS events_expire_at_idx ON events (expire_at);
CREATE INDEX IF NOT EXISTS events_organization_idx ON events (organization);
`

const eventColumns = `event_id, name, organization_id, organization, description, category,
	date, time_of_day, venue, city, address, latitude, longitude, duration,
	volunteer_requirements, skills_required, contact_email, contact_name, contact_number,
	image_url, registration_deadline, additional_notes, status, total_registered,
	registered_volunteers, created_at, expire_at`

// Postgres persists events in PostgreSQL. Membership mutations are single
// conditional UPDATE statements so the capacity check and the write are one
// atomic step at the database.
type Postgres struct {
	db    *sql.DB
	clock Clock
}

// PostgresOption configures a Postgres store.
type PostgresOption func(*Postgres)

// WithPostgresClock sets the clock used for TTL and deadline comparisons.
func WithPostgresClock(clock Clock) PostgresOption {
	return func(s *Postgres) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewPostgres constructs a PostgreSQL-backed event store.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	s := &Postgres{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the events table if missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

// NextID reserves the next sequential event id.
func (s *Postgres) NextID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT nextval('event_ids')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("next event id: %w", err)
	}
	return id, nil
}

// Create inserts a new event.
func (s *Postgres) Create(ctx context.Context, e *models.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)`,
		e.EventID, e.Name, e.OrganizationID, e.Organization, e.Description, string(e.Category),
		e.Date, e.TimeOfDay, e.Venue, e.City, e.Address, e.Latitude, e.Longitude, e.Duration,
		e.VolunteerRequirements, pq.Array(e.SkillsRequired), e.ContactEmail,
		e.ContactPerson.Name, e.ContactPerson.ContactNumber, e.ImageURL,
		e.RegistrationDeadline, e.AdditionalNotes, string(e.Status), e.TotalRegistered,
		pq.Array(volunteerStrings(e.RegisteredVolunteers)), e.CreatedAt, e.ExpireAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// FindByID returns one live event.
func (s *Postgres) FindByID(ctx context.Context, eventID int64) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE event_id = $1 AND expire_at > $2`, eventID, s.clock())
	return scanEvent(row)
}

// Update replaces the descriptive fields, leaving the membership counter and
// set to the conditional membership statements.
func (s *Postgres) Update(ctx context.Context, e *models.Event) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET
			name = $2, description = $3, category = $4, date = $5, time_of_day = $6,
			venue = $7, city = $8, address = $9, latitude = $10, longitude = $11,
			duration = $12, volunteer_requirements = $13, skills_required = $14,
			contact_email = $15, contact_name = $16, contact_number = $17,
			image_url = $18, registration_deadline = $19, additional_notes = $20,
			status = $21, expire_at = $22
		WHERE event_id = $1 AND expire_at > $23`,
		e.EventID, e.Name, e.Description, string(e.Category), e.Date, e.TimeOfDay,
		e.Venue, e.City, e.Address, e.Latitude, e.Longitude, e.Duration,
		e.VolunteerRequirements, pq.Array(e.SkillsRequired), e.ContactEmail,
		e.ContactPerson.Name, e.ContactPerson.ContactNumber, e.ImageURL,
		e.RegistrationDeadline, e.AdditionalNotes, string(e.Status), e.ExpireAt, s.clock())
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Delete removes an event.
func (s *Postgres) Delete(ctx context.Context, eventID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns all live events ordered by event id.
func (s *Postgres) List(ctx context.Context) ([]*models.Event, error) {
	return s.ListFiltered(ctx, &models.Filter{})
}

// ListFiltered translates the filter to a WHERE clause; all populated
// filters are AND-combined, matching the in-memory semantics.
func (s *Postgres) ListFiltered(ctx context.Context, filter *models.Filter) ([]*models.Event, error) {
	now := s.clock()
	where := []string{"expire_at > $1"}
	args := []any{now}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Category != "" {
		var clauses []string
		for _, entry := range strings.Split(filter.Category, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			clauses = append(clauses, "category ILIKE "+arg("%"+entry+"%"))
		}
		if len(clauses) > 0 {
			where = append(where, "("+strings.Join(clauses, " OR ")+")")
		}
	}
	if filter.Organization != "" {
		where = append(where, "organization = "+arg(filter.Organization))
	}
	if len(filter.Skills) > 0 {
		lowered := make([]string, 0, len(filter.Skills))
		for _, skill := range filter.Skills {
			lowered = append(lowered, strings.ToLower(strings.TrimSpace(skill)))
		}
		where = append(where,
			"EXISTS (SELECT 1 FROM unnest(skills_required) skill WHERE lower(skill) = ANY("+arg(pq.Array(lowered))+"))")
	}
	if filter.Search != "" {
		where = append(where, "name ILIKE "+arg("%"+filter.Search+"%"))
	}
	if !filter.Date.IsZero() {
		where = append(where, "date = "+arg(filter.Date))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if filter.City != "" {
		where = append(where, "city ILIKE "+arg("%"+filter.City+"%"))
	}
	if filter.UpcomingOnly {
		where = append(where, "date >= "+arg(models.DateOf(now)))
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY event_id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddVolunteer admits a volunteer with one conditional UPDATE: the WHERE
// clause carries the duplicate, deadline and capacity checks, so two
// concurrent joins can never both pass a full-capacity check. A zero
// rows-affected result is classified with a diagnostic read.
func (s *Postgres) AddVolunteer(ctx context.Context, eventID int64, volunteerID uuid.UUID, today time.Time) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE events SET
			registered_volunteers = array_append(registered_volunteers, $2),
			total_registered = total_registered + 1
		WHERE event_id = $1
		  AND expire_at > $3
		  AND NOT ($2 = ANY(registered_volunteers))
		  AND registration_deadline >= $4
		  AND (volunteer_requirements = 0 OR total_registered < volunteer_requirements)
		RETURNING `+eventColumns,
		eventID, volunteerID.String(), s.clock(), models.DateOf(today))
	e, err := scanEvent(row)
	if err == nil {
		return e, nil
	}
	if err != sentinel.ErrNotFound {
		return nil, err
	}
	return nil, s.classifyJoinFailure(ctx, eventID, volunteerID, today)
}

// classifyJoinFailure explains why the conditional admit matched no row.
// It is diagnostic only; the atomic UPDATE above is the source of truth.
func (s *Postgres) classifyJoinFailure(ctx context.Context, eventID int64, volunteerID uuid.UUID, today time.Time) error {
	var (
		member   bool
		deadline time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT $2 = ANY(registered_volunteers), registration_deadline
		FROM events WHERE event_id = $1 AND expire_at > $3`,
		eventID, volunteerID.String(), s.clock()).Scan(&member, &deadline)
	if err == sql.ErrNoRows {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("classify join failure: %w", err)
	}
	if member {
		return sentinel.ErrConflict
	}
	if models.DateOf(deadline).Before(models.DateOf(today)) {
		return sentinel.ErrDeadlinePassed
	}
	return sentinel.ErrCapacityFull
}

// RemoveVolunteer removes a volunteer with one conditional UPDATE. The
// counter is clamped at zero.
func (s *Postgres) RemoveVolunteer(ctx context.Context, eventID int64, volunteerID uuid.UUID) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE events SET
			registered_volunteers = array_remove(registered_volunteers, $2),
			total_registered = GREATEST(total_registered - 1, 0)
		WHERE event_id = $1
		  AND expire_at > $3
		  AND $2 = ANY(registered_volunteers)
		RETURNING `+eventColumns,
		eventID, volunteerID.String(), s.clock())
	e, err := scanEvent(row)
	if err == nil {
		return e, nil
	}
	if err != sentinel.ErrNotFound {
		return nil, err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT true FROM events WHERE event_id = $1 AND expire_at > $2`,
		eventID, s.clock()).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("classify leave failure: %w", err)
	}
	return nil, sentinel.ErrNotRegistered
}

// Count returns the number of live events.
func (s *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM events WHERE expire_at > $1`, s.clock()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// CountByCategory aggregates live events per category.
func (s *Postgres) CountByCategory(ctx context.Context) (map[models.Category]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, count(*) FROM events
		WHERE expire_at > $1 GROUP BY category`, s.clock())
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Category]int)
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		counts[models.Category(category)] = n
	}
	return counts, rows.Err()
}

// AutocompleteNames returns up to limit event names with the given prefix.
func (s *Postgres) AutocompleteNames(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM events
		WHERE expire_at > $1 AND name ILIKE $2 || '%'
		ORDER BY name LIMIT $3`, s.clock(), strings.TrimSpace(prefix), limit)
	if err != nil {
		return nil, fmt.Errorf("autocomplete events: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// PurgeExpired is the storage-layer TTL sweep.
func (s *Postgres) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE expire_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired events: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		e          models.Event
		category   string
		status     string
		skills     pq.StringArray
		volunteers pq.StringArray
	)
	err := row.Scan(
		&e.EventID, &e.Name, &e.OrganizationID, &e.Organization, &e.Description, &category,
		&e.Date, &e.TimeOfDay, &e.Venue, &e.City, &e.Address, &e.Latitude, &e.Longitude, &e.Duration,
		&e.VolunteerRequirements, &skills, &e.ContactEmail,
		&e.ContactPerson.Name, &e.ContactPerson.ContactNumber, &e.ImageURL,
		&e.RegistrationDeadline, &e.AdditionalNotes, &status, &e.TotalRegistered,
		&volunteers, &e.CreatedAt, &e.ExpireAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.Category = models.Category(category)
	e.Status = models.Status(status)
	e.SkillsRequired = []string(skills)
	e.RegisteredVolunteers = make([]uuid.UUID, 0, len(volunteers))
	for _, raw := range volunteers {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("scan registered volunteer %q: %w", raw, err)
		}
		e.RegisteredVolunteers = append(e.RegisteredVolunteers, id)
	}
	return &e, nil
}

func volunteerStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
