package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pledgeit/internal/event/models"
	"pledgeit/internal/platform/middleware"
	"pledgeit/internal/transport/shared"
	dErrors "pledgeit/pkg/domain-errors"
)

// Service defines the registration operations the HTTP layer exposes.
type Service interface {
	Join(ctx context.Context, volunteerID uuid.UUID, eventID int64) (*models.Event, error)
	Leave(ctx context.Context, volunteerID uuid.UUID, eventID int64) (*models.Event, error)
	ConfirmAttendance(ctx context.Context, orgID uuid.UUID, eventID int64, volunteerID uuid.UUID, token string) error
	ListForVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]*models.Event, error)
}

// Handler exposes the registration endpoints.
type Handler struct {
	registrations Service
	logger        *slog.Logger
	validator     middleware.TokenValidator
}

// New creates a registration Handler.
func New(registrations Service, validator middleware.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{registrations: registrations, logger: logger, validator: validator}
}

// Register mounts the registration routes. Joins and withdrawals belong to
// volunteers; the scan endpoint belongs to the organizing organization.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))

		r.With(middleware.RequireRole(middleware.RoleVolunteer)).
			Post("/events/{event_id}/join", h.handleJoin)
		r.With(middleware.RequireRole(middleware.RoleVolunteer)).
			Post("/events/{event_id}/leave", h.handleLeave)
		r.With(middleware.RequireRole(middleware.RoleVolunteer)).
			Get("/volunteer/events", h.handleVolunteerEvents)
		r.With(middleware.RequireRole(middleware.RoleOrganization)).
			Post("/events/{event_id}/scan", h.handleScan)
	})
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	volunteerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	event, err := h.registrations.Join(ctx, volunteerID, eventID)
	if err != nil {
		h.logFailure(ctx, "join failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) handleLeave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	volunteerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	event, err := h.registrations.Leave(ctx, volunteerID, eventID)
	if err != nil {
		h.logFailure(ctx, "leave failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, event)
}

type scanRequest struct {
	VolunteerID uuid.UUID `json:"volunteer_id"`
	Token       string    `json:"token,omitempty"`
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.VolunteerID == uuid.Nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "volunteer_id is required"))
		return
	}

	if err := h.registrations.ConfirmAttendance(ctx, orgID, eventID, req.VolunteerID, req.Token); err != nil {
		h.logFailure(ctx, "attendance confirmation failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "attendance confirmed"})
}

func (h *Handler) handleVolunteerEvents(w http.ResponseWriter, r *http.Request) {
	volunteerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	events, err := h.registrations.ListForVolunteer(r.Context(), volunteerID)
	if err != nil {
		h.logFailure(r.Context(), "list volunteer events failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, events)
}

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

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeUpstream:
		h.logger.ErrorContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error())
	default:
		h.logger.WarnContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error())
	}
}
