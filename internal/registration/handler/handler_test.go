package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pledgeit/internal/event/models"
	eventstore "pledgeit/internal/event/store"
	"pledgeit/internal/identity"
	identitymodels "pledgeit/internal/identity/models"
	identitystore "pledgeit/internal/identity/store"
	"pledgeit/internal/registration/service"
)

type fixture struct {
	router   http.Handler
	events   *eventstore.InMemory
	orgID    uuid.UUID
	volID    uuid.UUID
	orgToken string
	volToken string
	now      *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	f := &fixture{now: &now}
	clock := func() time.Time { return *f.now }

	f.events = eventstore.NewInMemory(eventstore.WithClock(clock))
	volunteers := identitystore.NewVolunteerInMemory()

	f.orgID = uuid.New()
	f.volID = uuid.New()
	require.NoError(t, volunteers.Create(context.Background(), &identitymodels.Volunteer{
		ID:        f.volID,
		FirstName: "Ana",
		LastName:  "Lima",
		Email:     "ana@example.com",
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(f.events, volunteers,
		service.WithLogger(logger),
		service.WithClock(clock),
	)

	tokens := identity.NewJWTService("test-signing-key")
	var err error
	f.orgToken, err = tokens.GenerateToken(f.orgID, identitymodels.RoleOrganization, "Green Earth")
	require.NoError(t, err)
	f.volToken, err = tokens.GenerateToken(f.volID, identitymodels.RoleVolunteer, "Ana Lima")
	require.NoError(t, err)

	r := chi.NewRouter()
	New(svc, tokens, logger).Register(r)
	f.router = r
	return f
}

func (f *fixture) seedEvent(t *testing.T) *models.Event {
	t.Helper()
	ctx := context.Background()
	id, err := f.events.NextID(ctx)
	require.NoError(t, err)

	event := &models.Event{
		EventID:              id,
		Name:                 "Beach Cleanup",
		OrganizationID:       f.orgID,
		Organization:         "Green Earth",
		Category:             models.CategoryEnvironmental,
		Date:                 time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC),
		TimeOfDay:            "09:30:00",
		RegistrationDeadline: time.Date(2026, 6, 18, 0, 0, 0, 0, time.UTC),
		Status:               models.StatusOpen,
		RegisteredVolunteers: []uuid.UUID{},
	}
	event.ExpireAt = event.StartAt().Add(24 * time.Hour)
	require.NoError(t, f.events.Create(ctx, event))
	return event
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestJoinAndLeaveEndpoints(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(t)

	rec := f.do(t, http.MethodPost, "/events/1/join", f.volToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var event models.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&event))
	assert.Equal(t, 1, event.TotalRegistered)

	// Joining twice conflicts.
	rec = f.do(t, http.MethodPost, "/events/1/join", f.volToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/events/1/leave", f.volToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Leaving again reports the missing registration.
	rec = f.do(t, http.MethodPost, "/events/1/leave", f.volToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinRequiresVolunteerRole(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(t)

	rec := f.do(t, http.MethodPost, "/events/1/join", f.orgToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/events/1/join", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScanEndpoint(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(t)
	rec := f.do(t, http.MethodPost, "/events/1/join", f.volToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	*f.now = time.Date(2026, 6, 20, 9, 45, 0, 0, time.UTC)

	rec = f.do(t, http.MethodPost, "/events/1/scan", f.orgToken,
		map[string]string{"volunteer_id": f.volID.String()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Volunteers cannot confirm attendance.
	rec = f.do(t, http.MethodPost, "/events/1/scan", f.volToken,
		map[string]string{"volunteer_id": f.volID.String()})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The volunteer id is mandatory.
	rec = f.do(t, http.MethodPost, "/events/1/scan", f.orgToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanWrongDay(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(t)
	rec := f.do(t, http.MethodPost, "/events/1/join", f.volToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/events/1/scan", f.orgToken,
		map[string]string{"volunteer_id": f.volID.String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVolunteerEventsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(t)
	rec := f.do(t, http.MethodPost, "/events/1/join", f.volToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/volunteer/events", f.volToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].EventID)
}
