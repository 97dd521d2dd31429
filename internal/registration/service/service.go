package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pledgeit/internal/audit"
	"pledgeit/internal/event/models"
	identitymodels "pledgeit/internal/identity/models"
	"pledgeit/internal/notify"
	"pledgeit/internal/platform/middleware"
	"pledgeit/internal/registration/metrics"
	dErrors "pledgeit/pkg/domain-errors"
	"pledgeit/pkg/platform/sentinel"
)

// EventMembershipStore is the slice of event storage the registration
// engine touches. AddVolunteer and RemoveVolunteer are atomic conditional
// writes; every admission rule is checked and applied in one critical
// section so concurrent joins can never overshoot capacity.
type EventMembershipStore interface {
	FindByID(ctx context.Context, eventID int64) (*models.Event, error)
	AddVolunteer(ctx context.Context, eventID int64, volunteerID uuid.UUID, today time.Time) (*models.Event, error)
	RemoveVolunteer(ctx context.Context, eventID int64, volunteerID uuid.UUID) (*models.Event, error)
}

// VolunteerDirectory maintains the volunteer-side back-references. These
// writes are best-effort; the event record stays authoritative.
type VolunteerDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*identitymodels.Volunteer, error)
	AddRegisteredEvent(ctx context.Context, id uuid.UUID, eventID int64) error
	RemoveRegisteredEvent(ctx context.Context, id uuid.UUID, eventID int64) error
	AddAttendedEvent(ctx context.Context, id uuid.UUID, eventID int64) error
}

type ScanTokenResolver interface {
	Resolve(ctx context.Context, token string) (int64, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service is the registration engine: volunteer joins, withdrawals and
// venue check-ins.
type Service struct {
	events     EventMembershipStore
	volunteers VolunteerDirectory

	logger     *slog.Logger
	metrics    *metrics.Metrics
	auditTrail AuditPublisher
	notifier   notify.Dispatcher
	scanTokens ScanTokenResolver

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

func WithScanTokens(resolver ScanTokenResolver) Option {
	return func(s *Service) { s.scanTokens = resolver }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) { s.notifyTimeout = d }
}

// New constructs a Service.
func New(events EventMembershipStore, volunteers VolunteerDirectory, opts ...Option) *Service {
	s := &Service{
		events:        events,
		volunteers:    volunteers,
		logger:        slog.Default(),
		clock:         time.Now,
		notifyTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join registers a volunteer on an event. The store applies the admission
// rules (capacity, deadline, duplicates) atomically; this layer translates
// the outcome, maintains the profile back-reference and sends the
// confirmation email.
func (s *Service) Join(ctx context.Context, volunteerID uuid.UUID, eventID int64) (*models.Event, error) {
	vol, err := s.volunteers.FindByID(ctx, volunteerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "volunteer not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load volunteer")
	}

	event, err := s.events.AddVolunteer(ctx, eventID, volunteerID, s.clock())
	if err != nil {
		return nil, s.rejectJoin(err)
	}
	s.incrementJoinsAccepted()

	if err := s.volunteers.AddRegisteredEvent(ctx, volunteerID, eventID); err != nil {
		s.logger.ErrorContext(ctx, "registered-events back-reference failed",
			"event_id", eventID,
			"volunteer_id", volunteerID,
			"request_id", middleware.GetRequestID(ctx),
			"error", err)
		s.emitAudit(ctx, audit.Event{
			Actor:   volunteerID.String(),
			Action:  audit.ActionBackrefFailed,
			EventID: eventID,
			Detail:  "add registered event: " + err.Error(),
		})
	}

	s.emitAudit(ctx, audit.Event{Actor: volunteerID.String(), Action: audit.ActionVolunteerJoin, EventID: eventID})
	s.dispatchAsync(ctx, notify.Message{
		To:      vol.Email,
		Subject: fmt.Sprintf("You're registered for %q", event.Name),
		Body: fmt.Sprintf(
			"Hi %s,\n\nYou are confirmed for %q on %s at %s.\nVenue: %s, %s\n\nThe organizer will scan you in at the venue on the day of the event.",
			vol.DisplayName(), event.Name,
			event.Date.Format("2006-01-02"), event.TimeOfDay,
			event.Venue, event.City),
	})
	return event, nil
}

// rejectJoin translates store sentinels into caller-facing errors and
// counts the rejection reason.
func (s *Service) rejectJoin(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		s.incrementJoinsRejected("not_found")
		return dErrors.New(dErrors.CodeNotFound, "event not found")
	case errors.Is(err, sentinel.ErrConflict):
		s.incrementJoinsRejected("duplicate")
		return dErrors.New(dErrors.CodeConflict, "already registered for this event")
	case errors.Is(err, sentinel.ErrDeadlinePassed):
		s.incrementJoinsRejected("deadline")
		return dErrors.New(dErrors.CodeDeadlinePassed, "registration deadline has passed")
	case errors.Is(err, sentinel.ErrCapacityFull):
		s.incrementJoinsRejected("capacity")
		return dErrors.New(dErrors.CodeCapacityExceeded, "event has reached its volunteer capacity")
	default:
		s.incrementJoinsRejected("internal")
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register for event")
	}
}

// Leave withdraws a volunteer from an event.
func (s *Service) Leave(ctx context.Context, volunteerID uuid.UUID, eventID int64) (*models.Event, error) {
	event, err := s.events.RemoveVolunteer(ctx, eventID, volunteerID)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		case errors.Is(err, sentinel.ErrNotRegistered):
			return nil, dErrors.New(dErrors.CodeNotRegistered, "not registered for this event")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to withdraw from event")
		}
	}
	s.incrementLeaves()

	if err := s.volunteers.RemoveRegisteredEvent(ctx, volunteerID, eventID); err != nil {
		s.logger.ErrorContext(ctx, "registered-events back-reference removal failed",
			"event_id", eventID,
			"volunteer_id", volunteerID,
			"request_id", middleware.GetRequestID(ctx),
			"error", err)
		s.emitAudit(ctx, audit.Event{
			Actor:   volunteerID.String(),
			Action:  audit.ActionBackrefFailed,
			EventID: eventID,
			Detail:  "remove registered event: " + err.Error(),
		})
	}

	s.emitAudit(ctx, audit.Event{Actor: volunteerID.String(), Action: audit.ActionVolunteerLeave, EventID: eventID})
	return event, nil
}

// ConfirmAttendance checks a volunteer in at the venue. The caller must be
// the organizing organization; the volunteer must be registered and the
// scan must happen on the event's calendar date. A scan token, when
// supplied, must resolve to the same event.
func (s *Service) ConfirmAttendance(ctx context.Context, orgID uuid.UUID, eventID int64, volunteerID uuid.UUID, token string) error {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}
	if event.OrganizationID != orgID {
		return dErrors.New(dErrors.CodeForbidden, "only the organizing organization can confirm attendance")
	}
	if token != "" && s.scanTokens != nil {
		tokenEventID, err := s.scanTokens.Resolve(ctx, token)
		if err != nil || tokenEventID != eventID {
			return dErrors.New(dErrors.CodeValidation, "scan token does not match this event")
		}
	}
	if !event.IsRegistered(volunteerID) {
		return dErrors.New(dErrors.CodeNotRegistered, "volunteer is not registered for this event")
	}
	if !models.SameDay(event.Date, s.clock()) {
		return dErrors.New(dErrors.CodeWrongDay, "attendance can only be confirmed on the event date")
	}

	if err := s.volunteers.AddAttendedEvent(ctx, volunteerID, eventID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record attendance")
	}
	s.emitAudit(ctx, audit.Event{Actor: orgID.String(), Action: audit.ActionAttendance, EventID: eventID,
		Detail: "volunteer " + volunteerID.String()})
	s.incrementAttendanceConfirmed()

	// The confirmation is already recorded; the volunteer notice is
	// best-effort like every other send.
	vol, err := s.volunteers.FindByID(ctx, volunteerID)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping attendance notice, volunteer profile unavailable",
			"event_id", eventID,
			"volunteer_id", volunteerID,
			"error", err)
		return nil
	}
	s.dispatchAsync(ctx, notify.Message{
		To:      vol.Email,
		Subject: fmt.Sprintf("Attendance confirmed for %q", event.Name),
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour attendance at %q has been confirmed by %s. Thank you for volunteering!",
			vol.DisplayName(), event.Name, event.Organization),
	})
	return nil
}

// ListForVolunteer resolves the events a volunteer is registered for from
// the profile back-references. Dangling entries (expired events or pending
// reconciliation) are skipped.
func (s *Service) ListForVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]*models.Event, error) {
	vol, err := s.volunteers.FindByID(ctx, volunteerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "volunteer not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load volunteer")
	}

	results := make([]*models.Event, len(vol.RegisteredEvents))
	g, gctx := errgroup.WithContext(ctx)
	for i, eventID := range vol.RegisteredEvents {
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
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registered events")
	}

	events := make([]*models.Event, 0, len(results))
	for _, e := range results {
		if e != nil {
			events = append(events, e)
		}
	}
	return events, nil
}

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

func (s *Service) incrementJoinsAccepted() {
	if s.metrics != nil {
		s.metrics.IncrementJoinsAccepted()
	}
}

func (s *Service) incrementJoinsRejected(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementJoinsRejected(reason)
	}
}

func (s *Service) incrementLeaves() {
	if s.metrics != nil {
		s.metrics.IncrementLeaves()
	}
}

func (s *Service) incrementAttendanceConfirmed() {
	if s.metrics != nil {
		s.metrics.IncrementAttendanceConfirmed()
	}
}
