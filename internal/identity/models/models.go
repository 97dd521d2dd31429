package models

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"

	dErrors "pledgeit/pkg/domain-errors"
)

// Role distinguishes the two account kinds.
type Role string

const (
	RoleVolunteer    Role = "volunteer"
	RoleOrganization Role = "organization"
)

// Volunteer is a registrant account.
//
// Invariants:
//   - Email is unique across volunteers.
//   - RegisteredEvents mirrors the registered_volunteers membership on each
//     referenced event (bidirectional consistency; the event side is the
//     source of truth, see the registration engine).
//   - AttendedEvents is a subset of events the volunteer was registered for
//     when attendance was confirmed.
type Volunteer struct {
	ID               uuid.UUID `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	City             string    `json:"city"`
	Skills           []string  `json:"skills"`
	RegisteredEvents []int64   `json:"registered_events"`
	AttendedEvents   []int64   `json:"attended_events"`
	CreatedAt        time.Time `json:"created_at"`
}

// DisplayName is the volunteer's human-readable name.
func (v *Volunteer) DisplayName() string {
	return strings.TrimSpace(v.FirstName + " " + v.LastName)
}

// Organization is an event publisher account. Name doubles as the
// authorization key for event ownership checks.
type Organization struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Description   string    `json:"description"`
	Website       string    `json:"website"`
	CreatedEvents []int64   `json:"created_events"`
	CreatedAt     time.Time `json:"created_at"`
}

// RegisterVolunteerRequest is the volunteer signup payload.
type RegisterVolunteerRequest struct {
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	ConfirmPassword string   `json:"confirm_password"`
	City            string   `json:"city"`
	Skills          []string `json:"skills"`
}

func (r *RegisterVolunteerRequest) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" {
		return dErrors.New(dErrors.CodeValidation, "first_name is required")
	}
	if !govalidator.IsEmail(strings.TrimSpace(r.Email)) {
		return dErrors.New(dErrors.CodeValidation, "invalid email")
	}
	if len(r.Password) < 8 {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if r.Password != r.ConfirmPassword {
		return dErrors.New(dErrors.CodeValidation, "passwords do not match")
	}
	return nil
}

// RegisterOrganizationRequest is the organization signup payload.
type RegisterOrganizationRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Description string `json:"description"`
	Website     string `json:"website"`
}

func (r *RegisterOrganizationRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if !govalidator.IsEmail(strings.TrimSpace(r.Email)) {
		return dErrors.New(dErrors.CodeValidation, "invalid email")
	}
	if len(r.Password) < 8 {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if r.Website != "" && !govalidator.IsURL(r.Website) {
		return dErrors.New(dErrors.CodeValidation, "invalid website URL")
	}
	return nil
}

// LoginRequest authenticates either account kind by email.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token and the resolved identity.
type LoginResponse struct {
	Token  string    `json:"token"`
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
	Name   string    `json:"name"`
}
