package models

import (
	"strings"
	"time"
)

// Filter selects events for the filtered list endpoint. Zero-valued fields
// impose no constraint; populated fields are AND-combined.
type Filter struct {
	// Category holds one or more comma-separated category names, matched
	// case-insensitively as substrings; an event matches if any entry hits.
	Category string
	// Organization is an exact organization-name match.
	Organization string
	// Skills matches events whose skill set intersects this set.
	Skills []string
	// Search is a case-insensitive substring match on the event name.
	Search string
	// Date is an exact calendar-date match when non-zero.
	Date time.Time
	// Status filters on the derived Open/Closed status.
	Status Status
	// City is a case-insensitive substring match.
	City string
	// UpcomingOnly keeps events whose date is today or later.
	UpcomingOnly bool
}

// Matches evaluates the filter against one event. today anchors the
// UpcomingOnly comparison.
func (f *Filter) Matches(e *Event, today time.Time) bool {
	if f.Category != "" && !matchesAnyCategory(e.Category, f.Category) {
		return false
	}
	if f.Organization != "" && e.Organization != f.Organization {
		return false
	}
	if len(f.Skills) > 0 && !intersects(e.SkillsRequired, f.Skills) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(f.Search)) {
		return false
	}
	if !f.Date.IsZero() && !SameDay(e.Date, f.Date) {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.City != "" && !strings.Contains(strings.ToLower(e.City), strings.ToLower(f.City)) {
		return false
	}
	if f.UpcomingOnly && DateOf(e.Date).Before(DateOf(today)) {
		return false
	}
	return true
}

func matchesAnyCategory(have Category, wanted string) bool {
	haystack := strings.ToLower(string(have))
	for _, entry := range strings.Split(wanted, ",") {
		needle := strings.ToLower(strings.TrimSpace(entry))
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func intersects(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, s := range have {
		set[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	for _, s := range want {
		if _, ok := set[strings.ToLower(strings.TrimSpace(s))]; ok {
			return true
		}
	}
	return false
}
