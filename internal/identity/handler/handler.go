package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	identityModel "pledgeit/internal/identity/models"
	"pledgeit/internal/platform/middleware"
	"pledgeit/internal/transport/shared"
	dErrors "pledgeit/pkg/domain-errors"
)

// Service defines the identity operations the handler exposes.
type Service interface {
	RegisterVolunteer(ctx context.Context, req *identityModel.RegisterVolunteerRequest) (*identityModel.Volunteer, error)
	RegisterOrganization(ctx context.Context, req *identityModel.RegisterOrganizationRequest) (*identityModel.Organization, error)
	Login(ctx context.Context, req *identityModel.LoginRequest) (*identityModel.LoginResponse, error)
}

// Handler exposes the public signup and login endpoints.
type Handler struct {
	identity Service
	logger   *slog.Logger
}

func New(identity Service, logger *slog.Logger) *Handler {
	return &Handler{identity: identity, logger: logger}
}

// Register mounts the auth routes. They are the only unauthenticated
// endpoints besides the public event reads.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/volunteer/register", h.handleRegisterVolunteer)
	r.Post("/auth/organization/register", h.handleRegisterOrganization)
	r.Post("/auth/login", h.handleLogin)
}

func (h *Handler) handleRegisterVolunteer(w http.ResponseWriter, r *http.Request) {
	var req identityModel.RegisterVolunteerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	v, err := h.identity.RegisterVolunteer(r.Context(), &req)
	if err != nil {
		h.logWarn(r, "volunteer registration failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Volunteer registered successfully",
		"user_id": v.ID,
	})
}

func (h *Handler) handleRegisterOrganization(w http.ResponseWriter, r *http.Request) {
	var req identityModel.RegisterOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	o, err := h.identity.RegisterOrganization(r.Context(), &req)
	if err != nil {
		h.logWarn(r, "organization registration failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Organization registered successfully",
		"user_id": o.ID,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req identityModel.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	resp, err := h.identity.Login(r.Context(), &req)
	if err != nil {
		h.logWarn(r, "login failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) logWarn(r *http.Request, msg string, err error) {
	h.logger.WarnContext(r.Context(), msg,
		"error", err.Error(),
		"request_id", middleware.GetRequestID(r.Context()),
	)
}
