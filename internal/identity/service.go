// Package identity is the gateway that resolves accounts to an opaque
// (user_id, role) pair. The rest of the system consumes it through bearer
// tokens and the auth middleware; nothing here knows about events.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pledgeit/internal/identity/models"
	dErrors "pledgeit/pkg/domain-errors"
	"pledgeit/pkg/platform/sentinel"
)

// VolunteerStore is the volunteer account persistence the service needs.
type VolunteerStore interface {
	Create(ctx context.Context, v *models.Volunteer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Volunteer, error)
	FindByEmail(ctx context.Context, email string) (*models.Volunteer, error)
}

// OrganizationStore is the organization account persistence the service needs.
type OrganizationStore interface {
	Create(ctx context.Context, o *models.Organization) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	FindByEmail(ctx context.Context, email string) (*models.Organization, error)
}

// Service registers accounts and exchanges credentials for bearer tokens.
type Service struct {
	volunteers    VolunteerStore
	organizations OrganizationStore
	tokens        *JWTService
}

func NewService(volunteers VolunteerStore, organizations OrganizationStore, tokens *JWTService) *Service {
	return &Service{volunteers: volunteers, organizations: organizations, tokens: tokens}
}

// RegisterVolunteer creates a volunteer account.
func (s *Service) RegisterVolunteer(ctx context.Context, req *models.RegisterVolunteerRequest) (*models.Volunteer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	v := &models.Volunteer{
		ID:           uuid.New(),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		City:         strings.TrimSpace(req.City),
		Skills:       req.Skills,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.volunteers.Create(ctx, v); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create volunteer")
	}
	return v, nil
}

// RegisterOrganization creates an organization account.
func (s *Service) RegisterOrganization(ctx context.Context, req *models.RegisterOrganizationRequest) (*models.Organization, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	o := &models.Organization{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		Description:  strings.TrimSpace(req.Description),
		Website:      strings.TrimSpace(req.Website),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.organizations.Create(ctx, o); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "organization name or email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create organization")
	}
	return o, nil
}

// Login authenticates either account kind by email and issues a token.
// Volunteer accounts are checked first; organization emails live in a
// separate namespace.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	if v, err := s.volunteers.FindByEmail(ctx, req.Email); err == nil {
		if bcrypt.CompareHashAndPassword([]byte(v.PasswordHash), []byte(req.Password)) != nil {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		token, err := s.tokens.GenerateToken(v.ID, models.RoleVolunteer, v.DisplayName())
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
		}
		return &models.LoginResponse{Token: token, UserID: v.ID, Role: models.RoleVolunteer, Name: v.DisplayName()}, nil
	}

	o, err := s.organizations.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up account")
	}
	if bcrypt.CompareHashAndPassword([]byte(o.PasswordHash), []byte(req.Password)) != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	token, err := s.tokens.GenerateToken(o.ID, models.RoleOrganization, o.Name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	return &models.LoginResponse{Token: token, UserID: o.ID, Role: models.RoleOrganization, Name: o.Name}, nil
}
