package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "pledgeit/pkg/domain-errors"
)

// Status reflects whether an event still accepts registrations. It is
// derived from the registration deadline at write time, not re-evaluated
// continuously: the value observed on a read is the one computed by the
// most recent create or update.
type Status string

const (
	StatusOpen   Status = "Open"
	StatusClosed Status = "Closed"
)

// StatusFor computes the status rule shared by create and update:
// Open while the registration deadline has not passed relative to today.
func StatusFor(deadline, today time.Time) Status {
	if DateOf(deadline).Before(DateOf(today)) {
		return StatusClosed
	}
	return StatusOpen
}

// Category is the fixed set of causes an event can be filed under.
type Category string

const (
	CategoryEnvironmental  Category = "Environmental"
	CategoryCommunity      Category = "Community Service"
	CategoryEducation      Category = "Education"
	CategoryHealthcare     Category = "Healthcare"
	CategoryAnimalWelfare  Category = "Animal Welfare"
	CategoryDisasterRelief Category = "Disaster Relief"
	CategoryLifestyle      Category = "Lifestyle & Culture"
	CategoryFundraising    Category = "Fundraising & Charity"
)

// Categories lists every valid category.
func Categories() []Category {
	return []Category{
		CategoryEnvironmental,
		CategoryCommunity,
		CategoryEducation,
		CategoryHealthcare,
		CategoryAnimalWelfare,
		CategoryDisasterRelief,
		CategoryLifestyle,
		CategoryFundraising,
	}
}

// ParseCategory resolves a user-supplied category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, nil
		}
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown category %q", s)
}

// ContactPerson is the human contact listed on an event.
type ContactPerson struct {
	Name          string `json:"name"`
	ContactNumber string `json:"contact_number"`
}

// Event is the aggregate root for one volunteer opportunity.
//
// Invariants:
//   - EventID is sequential, unique, and immutable once assigned; freed ids
//     are never reused.
//   - TotalRegistered always equals len(RegisteredVolunteers).
//   - When VolunteerRequirements > 0, len(RegisteredVolunteers) never
//     exceeds it. VolunteerRequirements == 0 means unlimited capacity.
//   - Status is Closed iff RegistrationDeadline < today at the most recent
//     write.
//   - ExpireAt = StartAt() + 24h and drives storage-layer purging; expired
//     events are invisible to reads.
//
// Membership mutations (RegisteredVolunteers, TotalRegistered) belong to the
// registration engine and must go through the store's conditional update so
// the capacity check and the write happen atomically.
type Event struct {
	EventID               int64         `json:"event_id"`
	Name                  string        `json:"event_name"`
	OrganizationID        uuid.UUID     `json:"organization_id"`
	Organization          string        `json:"organization"`
	Description           string        `json:"description"`
	Category              Category      `json:"category"`
	Date                  time.Time     `json:"date"`
	TimeOfDay             string        `json:"time"`
	Venue                 string        `json:"venue"`
	City                  string        `json:"city"`
	Address               string        `json:"address"`
	Latitude              *float64      `json:"latitude"`
	Longitude             *float64      `json:"longitude"`
	Duration              string        `json:"duration"`
	VolunteerRequirements int           `json:"volunteer_requirements"`
	SkillsRequired        []string      `json:"skills_required"`
	ContactEmail          string        `json:"contact_email"`
	ContactPerson         ContactPerson `json:"contact_person"`
	ImageURL              string        `json:"image_url"`
	RegistrationDeadline  time.Time     `json:"registration_deadline"`
	AdditionalNotes       string        `json:"additional_notes"`
	Status                Status        `json:"status"`
	TotalRegistered       int           `json:"total_registered_volunteers"`
	RegisteredVolunteers  []uuid.UUID   `json:"registered_volunteers"`
	CreatedAt             time.Time     `json:"created_at"`
	ExpireAt              time.Time     `json:"expire_at"`
}

// StartAt combines the calendar date and time-of-day into the event start
// instant. TimeOfDay is stored normalized as HH:MM:SS.
func (e *Event) StartAt() time.Time {
	tod, err := time.Parse("15:04:05", e.TimeOfDay)
	if err != nil {
		return e.Date
	}
	return time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC)
}

// IsRegistered reports whether the volunteer is in the membership set.
func (e *Event) IsRegistered(volunteerID uuid.UUID) bool {
	for _, id := range e.RegisteredVolunteers {
		if id == volunteerID {
			return true
		}
	}
	return false
}

// Unlimited reports whether the event has no capacity cap.
func (e *Event) Unlimited() bool { return e.VolunteerRequirements == 0 }

// Expired reports whether the event is past its TTL at the given instant.
func (e *Event) Expired(now time.Time) bool {
	return !e.ExpireAt.IsZero() && now.After(e.ExpireAt)
}

// DateOf truncates an instant to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two instants fall on the same UTC calendar date.
func SameDay(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, dErrors.Newf(dErrors.CodeValidation, "invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseTimeOfDay parses a time-of-day, accepting both HH:MM and HH:MM:SS,
// and returns the normalized HH:MM:SS form.
func ParseTimeOfDay(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) == len("15:04") {
		s += ":00"
	}
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid time %q, expected HH:MM or HH:MM:SS", s)
	}
	return t.Format("15:04:05"), nil
}
