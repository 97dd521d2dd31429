package audit

import "time"

// Actions recorded on the trail. Reconciliation jobs replay the backref
// failures; the rest is operator-facing history.
const (
	ActionEventCreated   = "event_created"
	ActionEventDeleted   = "event_deleted"
	ActionVolunteerJoin  = "volunteer_join"
	ActionVolunteerLeave = "volunteer_leave"
	ActionAttendance     = "attendance_confirmed"
	ActionBackrefFailed  = "backref_failed"
)

// Event is one append-only trail entry. Keep it transport-agnostic so
// stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Actor     string
	Action    string
	EventID   int64
	Detail    string
}
