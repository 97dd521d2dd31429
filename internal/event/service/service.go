package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pledgeit/internal/audit"
	"pledgeit/internal/event/metrics"
	"pledgeit/internal/event/models"
	identitymodels "pledgeit/internal/identity/models"
	"pledgeit/internal/notify"
	"pledgeit/internal/platform/middleware"
	"pledgeit/internal/scantoken"
	dErrors "pledgeit/pkg/domain-errors"
	"pledgeit/pkg/platform/sentinel"
)

type EventStore interface {
	NextID(ctx context.Context) (int64, error)
	Create(ctx context.Context, e *models.Event) error
	FindByID(ctx context.Context, eventID int64) (*models.Event, error)
	Update(ctx context.Context, e *models.Event) error
	Delete(ctx context.Context, eventID int64) error
	List(ctx context.Context) ([]*models.Event, error)
	ListFiltered(ctx context.Context, filter *models.Filter) ([]*models.Event, error)
	Count(ctx context.Context) (int, error)
	CountByCategory(ctx context.Context) (map[models.Category]int, error)
	AutocompleteNames(ctx context.Context, prefix string, limit int) ([]string, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// OrganizationDirectory is the slice of the identity module the lifecycle
// manager needs: resolving the owning organization and maintaining its
// created-events back-reference.
type OrganizationDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*identitymodels.Organization, error)
	AddCreatedEvent(ctx context.Context, id uuid.UUID, eventID int64) error
	RemoveCreatedEvent(ctx context.Context, id uuid.UUID, eventID int64) error
}

// VolunteerDirectory resolves volunteer profiles for the roster view.
type VolunteerDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*identitymodels.Volunteer, error)
}

type Geocoder interface {
	Resolve(ctx context.Context, address string) (lat, lon float64, err error)
}

type MediaUploader interface {
	Store(data []byte, ext string) (url string, err error)
	Remove(url string) error
}

type ScanTokenStore interface {
	Put(ctx context.Context, token string, eventID int64, ttl time.Duration) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service is the event lifecycle manager. Creation is the only path that
// assigns ids and coordinates; membership mutation lives in the
// registration engine and reaches storage through the same EventStore.
type Service struct {
	events     EventStore
	orgs       OrganizationDirectory
	volunteers VolunteerDirectory
	geo        Geocoder
	media      MediaUploader

	logger     *slog.Logger
	metrics    *metrics.Metrics
	auditTrail AuditPublisher
	notifier   notify.Dispatcher
	scanTokens ScanTokenStore

	clock         func() time.Time
	notifyTimeout time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditTrail = publisher }
}

func WithNotifier(dispatcher notify.Dispatcher) Option {
	return func(s *Service) { s.notifier = dispatcher }
}

func WithScanTokens(store ScanTokenStore) Option {
	return func(s *Service) { s.scanTokens = store }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) { s.notifyTimeout = d }
}

// New constructs a Service.
func New(events EventStore, orgs OrganizationDirectory, volunteers VolunteerDirectory, geo Geocoder, media MediaUploader, opts ...Option) *Service {
	s := &Service{
		events:        events,
		orgs:          orgs,
		volunteers:    volunteers,
		geo:           geo,
		media:         media,
		logger:        slog.Default(),
		clock:         time.Now,
		notifyTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEvent validates, geocodes, stores the image, assigns the next
// sequential id and persists the event. Geocoding failure aborts creation;
// the back-reference on the organization profile and the confirmation email
// are best-effort.
func (s *Service) CreateEvent(ctx context.Context, orgID uuid.UUID, input *models.CreateEventInput) (*models.Event, error) {
	parsed, err := input.Parse()
	if err != nil {
		return nil, err
	}

	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}

	lat, lon, err := s.geo.Resolve(ctx, parsed.Address+", "+parsed.City)
	if err != nil {
		s.incrementGeocodeFailures()
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeValidation, "address %q could not be located", parsed.Address)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "geocoding service unavailable")
	}

	imageData, err := io.ReadAll(input.Image.Content)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "failed to read event image")
	}
	imageURL, err := s.media.Store(imageData, strings.ToLower(filepath.Ext(input.Image.Filename)))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store event image")
	}

	id, err := s.events.NextID(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate event id")
	}

	now := s.clock()
	event := &models.Event{
		EventID:               id,
		Name:                  parsed.Name,
		OrganizationID:        org.ID,
		Organization:          org.Name,
		Description:           parsed.Description,
		Category:              parsed.Category,
		Date:                  parsed.Date,
		TimeOfDay:             parsed.TimeOfDay,
		Venue:                 parsed.Venue,
		City:                  parsed.City,
		Address:               parsed.Address,
		Latitude:              &lat,
		Longitude:             &lon,
		Duration:              parsed.Duration,
		VolunteerRequirements: parsed.VolunteerRequirements,
		SkillsRequired:        parsed.SkillsRequired,
		ContactEmail:          parsed.ContactEmail,
		ContactPerson:         parsed.ContactPerson,
		ImageURL:              imageURL,
		RegistrationDeadline:  parsed.RegistrationDeadline,
		AdditionalNotes:       parsed.AdditionalNotes,
		Status:                models.StatusFor(parsed.RegistrationDeadline, now),
		RegisteredVolunteers:  []uuid.UUID{},
		CreatedAt:             now,
	}
	event.ExpireAt = event.StartAt().Add(24 * time.Hour)

	if err := s.events.Create(ctx, event); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create event")
	}

	// The event record is authoritative. A failed profile back-reference is
	// recorded for reconciliation, never surfaced to the caller.
	if err := s.orgs.AddCreatedEvent(ctx, org.ID, id); err != nil {
		s.logger.ErrorContext(ctx, "created-events back-reference failed",
			"event_id", id,
			"organization_id", org.ID,
			"request_id", middleware.GetRequestID(ctx),
			"error", err)
		s.emitAudit(ctx, audit.Event{
			Actor:   org.ID.String(),
			Action:  audit.ActionBackrefFailed,
			EventID: id,
			Detail:  "add created event: " + err.Error(),
		})
	}

	s.emitAudit(ctx, audit.Event{Actor: org.ID.String(), Action: audit.ActionEventCreated, EventID: id})
	s.incrementEventsCreated()
	s.dispatchAsync(ctx, s.creationNotice(ctx, event))

	return event, nil
}

// creationNotice builds the organizer email carrying the attendance QR
// code. The embedded scan token lives exactly as long as the event does.
func (s *Service) creationNotice(ctx context.Context, event *models.Event) notify.Message {
	msg := notify.Message{
		To:      event.ContactEmail,
		Subject: fmt.Sprintf("Your event %q is live", event.Name),
		Body: fmt.Sprintf(
			"Hi %s,\n\n%q is now open for volunteer registrations.\n\nDate: %s at %s\nVenue: %s, %s\n\nUse the attached QR code to check volunteers in at the venue.",
			event.ContactPerson.Name, event.Name,
			event.Date.Format("2006-01-02"), event.TimeOfDay,
			event.Venue, event.City),
	}
	if s.scanTokens == nil {
		return msg
	}
	token := scantoken.New()
	if err := s.scanTokens.Put(ctx, token, event.EventID, event.ExpireAt.Sub(s.clock())); err != nil {
		s.logger.WarnContext(ctx, "scan token issue failed, sending notice without QR",
			"event_id", event.EventID,
			"error", err)
		return msg
	}
	msg.QRPayload = token
	return msg
}

// GetEvent returns one event; expired events read as missing.
func (s *Service) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}
	return event, nil
}

// UpdateEvent applies a partial update after verifying ownership. Derived
// fields (status, expiry) are recomputed from the merged record; membership
// fields are never touched here.
func (s *Service) UpdateEvent(ctx context.Context, orgID uuid.UUID, eventID int64, update *models.EventUpdate) (*models.Event, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizationID != orgID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the organizing organization can modify this event")
	}

	if err := update.Apply(event, s.clock()); err != nil {
		return nil, err
	}
	if err := s.events.Update(ctx, event); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update event")
	}
	return s.GetEvent(ctx, eventID)
}

// DeleteEvent removes an owned event and best-effort cleans up the image
// and the organization back-reference.
func (s *Service) DeleteEvent(ctx context.Context, orgID uuid.UUID, eventID int64) error {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.OrganizationID != orgID {
		return dErrors.New(dErrors.CodeForbidden, "only the organizing organization can delete this event")
	}

	if err := s.events.Delete(ctx, eventID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete event")
	}

	if err := s.media.Remove(event.ImageURL); err != nil {
		s.logger.WarnContext(ctx, "orphaned event image",
			"event_id", eventID,
			"image_url", event.ImageURL,
			"error", err)
	}
	if err := s.orgs.RemoveCreatedEvent(ctx, orgID, eventID); err != nil {
		s.logger.ErrorContext(ctx, "created-events back-reference removal failed",
			"event_id", eventID,
			"organization_id", orgID,
			"request_id", middleware.GetRequestID(ctx),
			"error", err)
		s.emitAudit(ctx, audit.Event{
			Actor:   orgID.String(),
			Action:  audit.ActionBackrefFailed,
			EventID: eventID,
			Detail:  "remove created event: " + err.Error(),
		})
	}

	s.emitAudit(ctx, audit.Event{Actor: orgID.String(), Action: audit.ActionEventDeleted, EventID: eventID})
	s.incrementEventsDeleted()
	return nil
}

// ListEvents returns every live event ordered by id.
func (s *Service) ListEvents(ctx context.Context) ([]*models.Event, error) {
	start := s.clock()
	defer s.observeListEvents(start)

	events, err := s.events.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events")
	}
	return events, nil
}

// FilterEvents returns live events matching every provided criterion.
func (s *Service) FilterEvents(ctx context.Context, filter *models.Filter) ([]*models.Event, error) {
	start := s.clock()
	defer s.observeFilter(start)

	events, err := s.events.ListFiltered(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to filter events")
	}
	return events, nil
}

const (
	defaultAutocompleteLimit = 10
	maxAutocompleteLimit     = 25
)

// Autocomplete returns event names starting with the given prefix.
func (s *Service) Autocomplete(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = defaultAutocompleteLimit
	}
	if limit > maxAutocompleteLimit {
		limit = maxAutocompleteLimit
	}
	names, err := s.events.AutocompleteNames(ctx, strings.TrimSpace(prefix), limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to autocomplete event names")
	}
	return names, nil
}

// TotalEvents returns the number of live events.
func (s *Service) TotalEvents(ctx context.Context) (int, error) {
	count, err := s.events.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count events")
	}
	return count, nil
}

// CausesBreakdown returns live event counts per category, including zero
// rows for categories with no events so dashboards render a stable set.
func (s *Service) CausesBreakdown(ctx context.Context) (map[models.Category]int, error) {
	counts, err := s.events.CountByCategory(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count events by category")
	}
	for _, c := range models.Categories() {
		if _, ok := counts[c]; !ok {
			counts[c] = 0
		}
	}
	return counts, nil
}

// ListByOrganization returns the events an organization created, resolved
// from its profile back-references. Dangling references (already expired or
// reconciliation pending) are skipped.
func (s *Service) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*models.Event, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}

	results := make([]*models.Event, len(org.CreatedEvents))
	g, gctx := errgroup.WithContext(ctx)
	for i, eventID := range org.CreatedEvents {
		g.Go(func() error {
			event, err := s.events.FindByID(gctx, eventID)
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = event
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization events")
	}

	events := make([]*models.Event, 0, len(results))
	for _, e := range results {
		if e != nil {
			events = append(events, e)
		}
	}
	return events, nil
}

// RosterEntry is one volunteer on an event's registration roster.
type RosterEntry struct {
	VolunteerID uuid.UUID `json:"volunteer_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	City        string    `json:"city"`
	Skills      []string  `json:"skills"`
}

// Roster resolves the registered volunteers of an owned event into profile
// entries. Only the organizing organization may read it.
func (s *Service) Roster(ctx context.Context, orgID uuid.UUID, eventID int64) ([]RosterEntry, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizationID != orgID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the organizing organization can view the roster")
	}

	entries := make([]RosterEntry, len(event.RegisteredVolunteers))
	g, gctx := errgroup.WithContext(ctx)
	for i, volunteerID := range event.RegisteredVolunteers {
		g.Go(func() error {
			vol, err := s.volunteers.FindByID(gctx, volunteerID)
			if errors.Is(err, sentinel.ErrNotFound) {
				// Membership is authoritative; show the id even when the
				// profile is gone.
				entries[i] = RosterEntry{VolunteerID: volunteerID}
				return nil
			}
			if err != nil {
				return err
			}
			entries[i] = RosterEntry{
				VolunteerID: vol.ID,
				Name:        vol.DisplayName(),
				Email:       vol.Email,
				City:        vol.City,
				Skills:      vol.Skills,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve roster")
	}
	return entries, nil
}

// SweepExpired purges events past their TTL from storage.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	purged, err := s.events.PurgeExpired(ctx, s.clock())
	if err != nil {
		return 0, fmt.Errorf("purge expired events: %w", err)
	}
	if purged > 0 {
		s.logger.InfoContext(ctx, "purged expired events", "count", purged)
	}
	return purged, nil
}

// dispatchAsync sends a notification off the request path. Failures are
// logged and swallowed; delivery never gates a write.
func (s *Service) dispatchAsync(ctx context.Context, msg notify.Message) {
	if s.notifier == nil {
		return
	}
	requestID := middleware.GetRequestID(ctx)
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.Dispatch(sendCtx, msg); err != nil {
			s.logger.WarnContext(sendCtx, "notification dispatch failed",
				"to", msg.To,
				"subject", msg.Subject,
				"request_id", requestID,
				"error", err)
		}
	}()
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditTrail != nil {
		s.auditTrail.Emit(ctx, event)
	}
}

func (s *Service) incrementEventsCreated() {
	if s.metrics != nil {
		s.metrics.IncrementEventsCreated()
	}
}

func (s *Service) incrementEventsDeleted() {
	if s.metrics != nil {
		s.metrics.IncrementEventsDeleted()
	}
}

func (s *Service) incrementGeocodeFailures() {
	if s.metrics != nil {
		s.metrics.IncrementGeocodeFailures()
	}
}

func (s *Service) observeListEvents(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveListEvents(start)
	}
}

func (s *Service) observeFilter(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveFilter(start)
	}
}
