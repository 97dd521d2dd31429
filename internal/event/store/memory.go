// Package store holds the event store implementations. The in-memory store
// is the default for tests and single-node runs; the postgres store backs
// production deployments. Both enforce the same contract: membership and
// counter mutations are single atomic conditional updates, and records past
// their TTL are invisible to reads.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pledgeit/internal/event/models"
	"pledgeit/pkg/platform/sentinel"
)

// Clock abstracts time.Now for testability.
type Clock func() time.Time

// InMemory is a mutex-guarded event store. The single critical section per
// operation is what makes the capacity check and the membership write
// atomic with respect to concurrent joins.
type InMemory struct {
	mu     sync.RWMutex
	events map[int64]*models.Event
	nextID int64
	clock  Clock
}

// InMemoryOption configures an InMemory store.
type InMemoryOption func(*InMemory)

// WithClock sets the clock used for TTL checks.
func WithClock(clock Clock) InMemoryOption {
	return func(s *InMemory) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewInMemory creates an empty in-memory event store.
func NewInMemory(opts ...InMemoryOption) *InMemory {
	s := &InMemory{
		events: make(map[int64]*models.Event),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextID returns the next sequential event id. The counter is monotonic and
// never reuses freed values, so external references (QR codes, links) stay
// stable across deletes.
func (s *InMemory) NextID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID, nil
}

// Create persists a new event. The id must be unused.
func (s *InMemory) Create(ctx context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[e.EventID]; exists {
		return sentinel.ErrConflict
	}
	s.events[e.EventID] = clone(e)
	return nil
}

// FindByID returns one live event.
func (s *InMemory) FindByID(ctx context.Context, eventID int64) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[eventID]
	if !ok || e.Expired(s.clock()) {
		return nil, sentinel.ErrNotFound
	}
	return clone(e), nil
}

// Update replaces the descriptive fields of an existing event. Membership
// fields (counter and volunteer set) are preserved from the stored record;
// they belong to the conditional membership operations.
func (s *InMemory) Update(ctx context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.events[e.EventID]
	if !ok || current.Expired(s.clock()) {
		return sentinel.ErrNotFound
	}
	next := clone(e)
	next.TotalRegistered = current.TotalRegistered
	next.RegisteredVolunteers = append([]uuid.UUID(nil), current.RegisteredVolunteers...)
	s.events[e.EventID] = next
	return nil
}

// Delete removes an event.
func (s *InMemory) Delete(ctx context.Context, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[eventID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.events, eventID)
	return nil
}

// List returns all live events ordered by event id.
func (s *InMemory) List(ctx context.Context) ([]*models.Event, error) {
	return s.ListFiltered(ctx, &models.Filter{})
}

// ListFiltered returns live events matching the filter, ordered by event id.
func (s *InMemory) ListFiltered(ctx context.Context, filter *models.Filter) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.clock()
	out := make([]*models.Event, 0)
	for _, e := range s.events {
		if e.Expired(now) {
			continue
		}
		if filter.Matches(e, now) {
			out = append(out, clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

// AddVolunteer atomically admits a volunteer: the duplicate, capacity and
// deadline checks and the membership+counter write happen under one lock so
// concurrent joins can never overshoot the cap. today anchors the deadline
// comparison. Returns the updated event on success.
func (s *InMemory) AddVolunteer(ctx context.Context, eventID int64, volunteerID uuid.UUID, today time.Time) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok || e.Expired(s.clock()) {
		return nil, sentinel.ErrNotFound
	}
	if e.IsRegistered(volunteerID) {
		return nil, sentinel.ErrConflict
	}
	if models.DateOf(e.RegistrationDeadline).Before(models.DateOf(today)) {
		return nil, sentinel.ErrDeadlinePassed
	}
	if !e.Unlimited() && e.TotalRegistered >= e.VolunteerRequirements {
		return nil, sentinel.ErrCapacityFull
	}
	e.RegisteredVolunteers = append(e.RegisteredVolunteers, volunteerID)
	e.TotalRegistered = len(e.RegisteredVolunteers)
	return clone(e), nil
}

// RemoveVolunteer atomically removes a volunteer from the membership set and
// decrements the counter. The counter never goes below zero because it is
// recomputed from the set.
func (s *InMemory) RemoveVolunteer(ctx context.Context, eventID int64, volunteerID uuid.UUID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok || e.Expired(s.clock()) {
		return nil, sentinel.ErrNotFound
	}
	kept := e.RegisteredVolunteers[:0]
	found := false
	for _, id := range e.RegisteredVolunteers {
		if id == volunteerID {
			found = true
			continue
		}
		kept = append(kept, id)
	}
	if !found {
		return nil, sentinel.ErrNotRegistered
	}
	e.RegisteredVolunteers = kept
	e.TotalRegistered = len(e.RegisteredVolunteers)
	return clone(e), nil
}

// Count returns the number of live events.
func (s *InMemory) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.clock()
	n := 0
	for _, e := range s.events {
		if !e.Expired(now) {
			n++
		}
	}
	return n, nil
}

// CountByCategory aggregates live events per category.
func (s *InMemory) CountByCategory(ctx context.Context) (map[models.Category]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.clock()
	counts := make(map[models.Category]int)
	for _, e := range s.events {
		if !e.Expired(now) {
			counts[e.Category]++
		}
	}
	return counts, nil
}

// AutocompleteNames returns up to limit event names starting with the
// prefix, case-insensitively, in alphabetical order.
func (s *InMemory) AutocompleteNames(ctx context.Context, prefix string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.clock()
	lower := strings.ToLower(strings.TrimSpace(prefix))
	names := make([]string, 0)
	for _, e := range s.events {
		if e.Expired(now) {
			continue
		}
		if strings.HasPrefix(strings.ToLower(e.Name), lower) {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

// PurgeExpired drops records past their TTL and reports how many were
// removed. Reads already hide expired records, so this is housekeeping
// rather than correctness.
func (s *InMemory) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for id, e := range s.events {
		if e.Expired(now) {
			delete(s.events, id)
			purged++
		}
	}
	return purged, nil
}

func clone(e *models.Event) *models.Event {
	out := *e
	out.RegisteredVolunteers = append([]uuid.UUID(nil), e.RegisteredVolunteers...)
	out.SkillsRequired = append([]string(nil), e.SkillsRequired...)
	if e.Latitude != nil {
		lat := *e.Latitude
		out.Latitude = &lat
	}
	if e.Longitude != nil {
		lon := *e.Longitude
		out.Longitude = &lon
	}
	return &out
}
