// Package store holds the volunteer and organization account stores.
// Back-reference mutations (registered_events, created_events) are
// idempotent so the registration engine's best-effort second write can be
// retried by a reconciliation pass.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"pledgeit/internal/identity/models"
	"pledgeit/pkg/platform/sentinel"
)

// VolunteerInMemory is a mutex-guarded volunteer store.
type VolunteerInMemory struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.Volunteer
	byEmail map[string]uuid.UUID
}

func NewVolunteerInMemory() *VolunteerInMemory {
	return &VolunteerInMemory{
		byID:    make(map[uuid.UUID]*models.Volunteer),
		byEmail: make(map[string]uuid.UUID),
	}
}

// Create persists a volunteer; email uniqueness is enforced here so the
// check and the write are one step.
func (s *VolunteerInMemory) Create(ctx context.Context, v *models.Volunteer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := emailKey(v.Email)
	if _, exists := s.byEmail[key]; exists {
		return sentinel.ErrConflict
	}
	s.byID[v.ID] = cloneVolunteer(v)
	s.byEmail[key] = v.ID
	return nil
}

func (s *VolunteerInMemory) FindByID(ctx context.Context, id uuid.UUID) (*models.Volunteer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneVolunteer(v), nil
}

func (s *VolunteerInMemory) FindByEmail(ctx context.Context, email string) (*models.Volunteer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneVolunteer(s.byID[id]), nil
}

// AddRegisteredEvent appends the event back-reference; adding an already
// present id is a no-op.
func (s *VolunteerInMemory) AddRegisteredEvent(ctx context.Context, id uuid.UUID, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	v.RegisteredEvents = appendUnique(v.RegisteredEvents, eventID)
	return nil
}

// RemoveRegisteredEvent drops the event back-reference; removing an absent
// id is a no-op.
func (s *VolunteerInMemory) RemoveRegisteredEvent(ctx context.Context, id uuid.UUID, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	v.RegisteredEvents = remove(v.RegisteredEvents, eventID)
	return nil
}

// AddAttendedEvent records a confirmed attendance.
func (s *VolunteerInMemory) AddAttendedEvent(ctx context.Context, id uuid.UUID, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	v.AttendedEvents = appendUnique(v.AttendedEvents, eventID)
	return nil
}

// OrganizationInMemory is a mutex-guarded organization store.
type OrganizationInMemory struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.Organization
	byEmail map[string]uuid.UUID
	byName  map[string]uuid.UUID
}

func NewOrganizationInMemory() *OrganizationInMemory {
	return &OrganizationInMemory{
		byID:    make(map[uuid.UUID]*models.Organization),
		byEmail: make(map[string]uuid.UUID),
		byName:  make(map[string]uuid.UUID),
	}
}

// Create persists an organization; email and name are both unique.
func (s *OrganizationInMemory) Create(ctx context.Context, o *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	emailK := emailKey(o.Email)
	nameK := strings.ToLower(strings.TrimSpace(o.Name))
	if _, exists := s.byEmail[emailK]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byName[nameK]; exists {
		return sentinel.ErrConflict
	}
	s.byID[o.ID] = cloneOrganization(o)
	s.byEmail[emailK] = o.ID
	s.byName[nameK] = o.ID
	return nil
}

func (s *OrganizationInMemory) FindByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneOrganization(o), nil
}

func (s *OrganizationInMemory) FindByEmail(ctx context.Context, email string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneOrganization(s.byID[id]), nil
}

// AddCreatedEvent appends the event back-reference.
func (s *OrganizationInMemory) AddCreatedEvent(ctx context.Context, id uuid.UUID, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	o.CreatedEvents = appendUnique(o.CreatedEvents, eventID)
	return nil
}

// RemoveCreatedEvent drops the event back-reference.
func (s *OrganizationInMemory) RemoveCreatedEvent(ctx context.Context, id uuid.UUID, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	o.CreatedEvents = remove(o.CreatedEvents, eventID)
	return nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func remove(ids []int64, id int64) []int64 {
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return kept
}

func cloneVolunteer(v *models.Volunteer) *models.Volunteer {
	out := *v
	out.Skills = append([]string(nil), v.Skills...)
	out.RegisteredEvents = append([]int64(nil), v.RegisteredEvents...)
	out.AttendedEvents = append([]int64(nil), v.AttendedEvents...)
	return &out
}

func cloneOrganization(o *models.Organization) *models.Organization {
	out := *o
	out.CreatedEvents = append([]int64(nil), o.CreatedEvents...)
	return &out
}
