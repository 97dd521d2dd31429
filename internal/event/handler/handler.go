package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pledgeit/internal/event/models"
	"pledgeit/internal/event/service"
	"pledgeit/internal/platform/middleware"
	"pledgeit/internal/transport/shared"
	dErrors "pledgeit/pkg/domain-errors"
)

// maxUploadBytes caps the multipart create-event form, image included.
const maxUploadBytes = 10 << 20

// Service defines the lifecycle operations the HTTP layer exposes.
type Service interface {
	CreateEvent(ctx context.Context, orgID uuid.UUID, input *models.CreateEventInput) (*models.Event, error)
	GetEvent(ctx context.Context, eventID int64) (*models.Event, error)
	UpdateEvent(ctx context.Context, orgID uuid.UUID, eventID int64, update *models.EventUpdate) (*models.Event, error)
	DeleteEvent(ctx context.Context, orgID uuid.UUID, eventID int64) error
	ListEvents(ctx context.Context) ([]*models.Event, error)
	FilterEvents(ctx context.Context, filter *models.Filter) ([]*models.Event, error)
	Autocomplete(ctx context.Context, prefix string, limit int) ([]string, error)
	TotalEvents(ctx context.Context) (int, error)
	CausesBreakdown(ctx context.Context) (map[models.Category]int, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*models.Event, error)
	Roster(ctx context.Context, orgID uuid.UUID, eventID int64) ([]service.RosterEntry, error)
}

// Handler exposes the event lifecycle endpoints.
type Handler struct {
	events    Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

// New creates an event Handler.
func New(events Service, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{events: events, logger: logger, validator: validator}
}

// Register mounts the event routes. Discovery endpoints are public;
// lifecycle mutations and the roster require an organization token.
func (h *Handler) Register(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/filter", h.handleFilter)
		r.Get("/autocomplete", h.handleAutocomplete)
		r.Get("/total-events", h.handleTotal)
		r.Get("/{event_id}", h.handleGet)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.validator, h.logger))
			r.Use(middleware.RequireRole(middleware.RoleOrganization))
			r.Post("/", h.handleCreate)
			r.Put("/{event_id}", h.handleUpdate)
			r.Delete("/{event_id}", h.handleDelete)
			r.Get("/{event_id}/volunteers", h.handleRoster)
		})
	})

	r.With(
		middleware.RequireAuth(h.validator, h.logger),
		middleware.RequireRole(middleware.RoleOrganization),
	).Get("/organization/events", h.handleOrganizationEvents)

	r.Get("/dashboard/causes", h.handleCauses)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.logWarn(ctx, "invalid multipart form", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "expected multipart form data"))
		return
	}

	input := &models.CreateEventInput{
		Name:                  r.FormValue("event_name"),
		Description:           r.FormValue("description"),
		Category:              r.FormValue("category"),
		Date:                  r.FormValue("date"),
		Time:                  r.FormValue("time"),
		Venue:                 r.FormValue("venue"),
		City:                  r.FormValue("city"),
		Address:               r.FormValue("address"),
		Duration:              r.FormValue("duration"),
		VolunteerRequirements: r.FormValue("volunteer_requirements"),
		SkillsRequired:        splitList(r.FormValue("skills_required")),
		ContactEmail:          r.FormValue("contact_email"),
		ContactPersonName:     r.FormValue("contact_person_name"),
		ContactPersonNumber:   r.FormValue("contact_person_number"),
		RegistrationDeadline:  r.FormValue("registration_deadline"),
		AdditionalNotes:       r.FormValue("additional_notes"),
	}

	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		input.Image = &models.ImageUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Content:     file,
		}
	}

	event, err := h.events.CreateEvent(ctx, orgID, input)
	if err != nil {
		h.logFailure(ctx, "create event failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, event)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}
	event, err := h.events.GetEvent(r.Context(), eventID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	var update models.EventUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logWarn(ctx, "invalid update request body", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	event, err := h.events.UpdateEvent(ctx, orgID, eventID, &update)
	if err != nil {
		h.logFailure(ctx, "update event failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	if err := h.events.DeleteEvent(ctx, orgID, eventID); err != nil {
		h.logFailure(ctx, "delete event failed", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListEvents(r.Context())
	if err != nil {
		h.logFailure(r.Context(), "list events failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) handleFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := &models.Filter{
		Category:     q.Get("category"),
		Organization: q.Get("organization"),
		Skills:       splitList(q.Get("skills")),
		Search:       q.Get("search"),
		City:         q.Get("city"),
		UpcomingOnly: q.Get("upcoming") == "true",
	}
	if raw := q.Get("date"); raw != "" {
		date, err := models.ParseDate(raw)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		filter.Date = date
	}
	switch status := q.Get("status"); status {
	case "":
	case string(models.StatusOpen), string(models.StatusClosed):
		filter.Status = models.Status(status)
	default:
		shared.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", status))
		return
	}

	events, err := h.events.FilterEvents(ctx, filter)
	if err != nil {
		h.logFailure(ctx, "filter events failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	prefix := q.Get("search")
	if prefix == "" {
		prefix = q.Get("q")
	}
	names, err := h.events.Autocomplete(r.Context(), prefix, limit)
	if err != nil {
		h.logFailure(r.Context(), "autocomplete failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string][]string{"suggestions": names})
}

func (h *Handler) handleTotal(w http.ResponseWriter, r *http.Request) {
	total, err := h.events.TotalEvents(r.Context())
	if err != nil {
		h.logFailure(r.Context(), "count events failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"total_events": total})
}

func (h *Handler) handleCauses(w http.ResponseWriter, r *http.Request) {
	causes, err := h.events.CausesBreakdown(r.Context())
	if err != nil {
		h.logFailure(r.Context(), "causes breakdown failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, causes)
}

func (h *Handler) handleOrganizationEvents(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	events, err := h.events.ListByOrganization(r.Context(), orgID)
	if err != nil {
		h.logFailure(r.Context(), "list organization events failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) handleRoster(w http.ResponseWriter, r *http.Request) {
	orgID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}
	roster, err := h.events.Roster(r.Context(), orgID, eventID)
	if err != nil {
		h.logFailure(r.Context(), "roster lookup failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, roster)
}

// callerID extracts the authenticated caller's id from the context set by
// RequireAuth.
func (h *Handler) callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "caller id missing despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()))
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) eventID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "event_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		shared.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "invalid event id %q", raw))
		return 0, false
	}
	return id, true
}

func (h *Handler) logWarn(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error())
}

// logFailure logs service errors at a severity matching their code.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUpstream:
		h.logger.ErrorContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error())
	default:
		h.logWarn(ctx, msg, err)
	}
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
