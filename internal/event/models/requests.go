package models

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	dErrors "pledgeit/pkg/domain-errors"
)

// allowed image uploads: content type -> acceptable file extensions.
var allowedImageTypes = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
}

// ImageUpload carries the uploaded event image before it is handed to the
// media uploader. The content type must match the file extension.
type ImageUpload struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

func (u *ImageUpload) Validate() error {
	if u == nil || u.Content == nil {
		return dErrors.New(dErrors.CodeValidation, "event image is required")
	}
	exts, ok := allowedImageTypes[strings.ToLower(u.ContentType)]
	if !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unsupported image type %q, expected JPEG or PNG", u.ContentType)
	}
	ext := strings.ToLower(filepath.Ext(u.Filename))
	for _, allowed := range exts {
		if ext == allowed {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeValidation, "image extension %q does not match content type %q", ext, u.ContentType)
}

// CreateEventInput is the raw create-event form before parsing. String
// fields arrive as submitted; Parse trims, validates and produces the typed
// pieces the lifecycle manager persists.
type CreateEventInput struct {
	Name                  string
	Description           string
	Category              string
	Date                  string
	Time                  string
	Venue                 string
	City                  string
	Address               string
	Duration              string
	VolunteerRequirements string
	SkillsRequired        []string
	ContactEmail          string
	ContactPersonName     string
	ContactPersonNumber   string
	RegistrationDeadline  string
	AdditionalNotes       string
	Image                 *ImageUpload
}

// ParsedEvent is the validated form of CreateEventInput.
type ParsedEvent struct {
	Name                  string
	Description           string
	Category              Category
	Date                  time.Time
	TimeOfDay             string
	Venue                 string
	City                  string
	Address               string
	Duration              string
	VolunteerRequirements int
	SkillsRequired        []string
	ContactEmail          string
	ContactPerson         ContactPerson
	RegistrationDeadline  time.Time
	AdditionalNotes       string
}

// Parse validates every create-event precondition and returns the typed
// event fields. All required text fields must be non-empty after trimming.
func (in *CreateEventInput) Parse() (*ParsedEvent, error) {
	required := map[string]string{
		"event_name":            in.Name,
		"description":           in.Description,
		"category":              in.Category,
		"date":                  in.Date,
		"time":                  in.Time,
		"venue":                 in.Venue,
		"city":                  in.City,
		"address":               in.Address,
		"duration":              in.Duration,
		"contact_email":         in.ContactEmail,
		"contact_person_name":   in.ContactPersonName,
		"contact_person_number": in.ContactPersonNumber,
		"registration_deadline": in.RegistrationDeadline,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			return nil, dErrors.Newf(dErrors.CodeValidation, "%s is required", field)
		}
	}

	category, err := ParseCategory(in.Category)
	if err != nil {
		return nil, err
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return nil, err
	}
	timeOfDay, err := ParseTimeOfDay(in.Time)
	if err != nil {
		return nil, err
	}
	deadline, err := ParseDate(in.RegistrationDeadline)
	if err != nil {
		return nil, err
	}
	if !govalidator.IsEmail(strings.TrimSpace(in.ContactEmail)) {
		return nil, dErrors.Newf(dErrors.CodeValidation, "invalid contact_email %q", in.ContactEmail)
	}

	// Absent capacity defaults to 0, the unlimited sentinel.
	requirements := 0
	if raw := strings.TrimSpace(in.VolunteerRequirements); raw != "" {
		requirements, err = strconv.Atoi(raw)
		if err != nil || requirements < 0 {
			return nil, dErrors.Newf(dErrors.CodeValidation, "volunteer_requirements must be a non-negative integer, got %q", raw)
		}
	}

	if err := in.Image.Validate(); err != nil {
		return nil, err
	}

	return &ParsedEvent{
		Name:                  strings.TrimSpace(in.Name),
		Description:           strings.TrimSpace(in.Description),
		Category:              category,
		Date:                  date,
		TimeOfDay:             timeOfDay,
		Venue:                 strings.TrimSpace(in.Venue),
		City:                  strings.TrimSpace(in.City),
		Address:               strings.TrimSpace(in.Address),
		Duration:              strings.TrimSpace(in.Duration),
		VolunteerRequirements: requirements,
		SkillsRequired:        cleanSkills(in.SkillsRequired),
		ContactEmail:          strings.TrimSpace(in.ContactEmail),
		ContactPerson: ContactPerson{
			Name:          strings.TrimSpace(in.ContactPersonName),
			ContactNumber: strings.TrimSpace(in.ContactPersonNumber),
		},
		RegistrationDeadline: deadline,
		AdditionalNotes:      strings.TrimSpace(in.AdditionalNotes),
	}, nil
}

func cleanSkills(raw []string) []string {
	skills := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		skills = append(skills, s)
	}
	return skills
}

// EventUpdate is the tagged partial-update type: every field optional,
// absent fields untouched. Changing the deadline recomputes status with the
// same rule as creation.
type EventUpdate struct {
	Name                  *string   `json:"event_name,omitempty"`
	Description           *string   `json:"description,omitempty"`
	Category              *string   `json:"category,omitempty"`
	Date                  *string   `json:"date,omitempty"`
	Time                  *string   `json:"time,omitempty"`
	Venue                 *string   `json:"venue,omitempty"`
	City                  *string   `json:"city,omitempty"`
	Address               *string   `json:"address,omitempty"`
	Duration              *string   `json:"duration,omitempty"`
	VolunteerRequirements *int      `json:"volunteer_requirements,omitempty"`
	SkillsRequired        *[]string `json:"skills_required,omitempty"`
	ContactEmail          *string   `json:"contact_email,omitempty"`
	ContactPersonName     *string   `json:"contact_person_name,omitempty"`
	ContactPersonNumber   *string   `json:"contact_person_number,omitempty"`
	RegistrationDeadline  *string   `json:"registration_deadline,omitempty"`
	AdditionalNotes       *string   `json:"additional_notes,omitempty"`
}

// Apply copies the provided fields onto the event, recomputing derived
// values. now supplies "today" for the status rule.
func (u *EventUpdate) Apply(e *Event, now time.Time) error {
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return dErrors.New(dErrors.CodeValidation, "event_name cannot be blank")
		}
		e.Name = strings.TrimSpace(*u.Name)
	}
	if u.Description != nil {
		e.Description = strings.TrimSpace(*u.Description)
	}
	if u.Category != nil {
		category, err := ParseCategory(*u.Category)
		if err != nil {
			return err
		}
		e.Category = category
	}
	if u.Date != nil {
		date, err := ParseDate(*u.Date)
		if err != nil {
			return err
		}
		e.Date = date
	}
	if u.Time != nil {
		timeOfDay, err := ParseTimeOfDay(*u.Time)
		if err != nil {
			return err
		}
		e.TimeOfDay = timeOfDay
	}
	if u.Venue != nil {
		e.Venue = strings.TrimSpace(*u.Venue)
	}
	if u.City != nil {
		e.City = strings.TrimSpace(*u.City)
	}
	if u.Address != nil {
		e.Address = strings.TrimSpace(*u.Address)
	}
	if u.Duration != nil {
		e.Duration = strings.TrimSpace(*u.Duration)
	}
	if u.VolunteerRequirements != nil {
		if *u.VolunteerRequirements < 0 {
			return dErrors.New(dErrors.CodeValidation, "volunteer_requirements must be non-negative")
		}
		e.VolunteerRequirements = *u.VolunteerRequirements
	}
	if u.SkillsRequired != nil {
		e.SkillsRequired = cleanSkills(*u.SkillsRequired)
	}
	if u.ContactEmail != nil {
		if !govalidator.IsEmail(strings.TrimSpace(*u.ContactEmail)) {
			return dErrors.Newf(dErrors.CodeValidation, "invalid contact_email %q", *u.ContactEmail)
		}
		e.ContactEmail = strings.TrimSpace(*u.ContactEmail)
	}
	if u.ContactPersonName != nil {
		e.ContactPerson.Name = strings.TrimSpace(*u.ContactPersonName)
	}
	if u.ContactPersonNumber != nil {
		e.ContactPerson.ContactNumber = strings.TrimSpace(*u.ContactPersonNumber)
	}
	if u.AdditionalNotes != nil {
		e.AdditionalNotes = strings.TrimSpace(*u.AdditionalNotes)
	}
	if u.RegistrationDeadline != nil {
		deadline, err := ParseDate(*u.RegistrationDeadline)
		if err != nil {
			return err
		}
		e.RegistrationDeadline = deadline
		e.Status = StatusFor(deadline, now)
	}
	// Date or time changes move the TTL with the event start.
	if u.Date != nil || u.Time != nil {
		e.ExpireAt = e.StartAt().Add(24 * time.Hour)
	}
	return nil
}
