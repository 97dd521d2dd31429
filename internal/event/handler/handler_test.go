package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pledgeit/internal/event/models"
	"pledgeit/internal/event/service"
	eventstore "pledgeit/internal/event/store"
	"pledgeit/internal/geo"
	"pledgeit/internal/identity"
	identitymodels "pledgeit/internal/identity/models"
	identitystore "pledgeit/internal/identity/store"
	"pledgeit/internal/media"
)

type fixture struct {
	router    http.Handler
	events    *eventstore.InMemory
	orgs      *identitystore.OrganizationInMemory
	orgID     uuid.UUID
	orgToken  string
	volToken  string
	volunteer uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	events := eventstore.NewInMemory(eventstore.WithClock(clock))
	orgs := identitystore.NewOrganizationInMemory()
	volunteers := identitystore.NewVolunteerInMemory()

	orgID := uuid.New()
	require.NoError(t, orgs.Create(context.Background(), &identitymodels.Organization{
		ID:    orgID,
		Name:  "Green Earth",
		Email: "org@greenearth.org",
	}))
	volID := uuid.New()
	require.NoError(t, volunteers.Create(context.Background(), &identitymodels.Volunteer{
		ID:        volID,
		FirstName: "Ana",
		LastName:  "Lima",
		Email:     "ana@example.com",
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(events, orgs, volunteers, &geo.Static{Lat: 1, Lon: 2}, media.Discard{},
		service.WithLogger(logger),
		service.WithClock(clock),
	)

	tokens := identity.NewJWTService("test-signing-key")
	orgToken, err := tokens.GenerateToken(orgID, identitymodels.RoleOrganization, "Green Earth")
	require.NoError(t, err)
	volToken, err := tokens.GenerateToken(volID, identitymodels.RoleVolunteer, "Ana Lima")
	require.NoError(t, err)

	r := chi.NewRouter()
	New(svc, tokens, logger).Register(r)
	return &fixture{
		router:    r,
		events:    events,
		orgs:      orgs,
		orgID:     orgID,
		orgToken:  orgToken,
		volToken:  volToken,
		volunteer: volID,
	}
}

func createForm(t *testing.T, name string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := map[string]string{
		"event_name":             name,
		"description":            "Beach cleanup along the north shore.",
		"category":               "Environmental",
		"date":                   "2026-06-20",
		"time":                   "09:30",
		"venue":                  "North Shore Beach",
		"city":                   "Springfield",
		"address":                "1 Shore Road",
		"duration":               "4 hours",
		"volunteer_requirements": "25",
		"skills_required":        "First Aid, Swimming",
		"contact_email":          "contact@greenearth.org",
		"contact_person_name":    "Dana Reyes",
		"contact_person_number":  "555-0134",
		"registration_deadline":  "2026-06-18",
	}
	for k, v := range fields {
		require.NoError(t, form.WriteField(k, v))
	}
	part, err := form.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="image"; filename="banner.png"`},
		"Content-Type":        {"image/png"},
	})
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, form.Close())
	return &buf, form.FormDataContentType()
}

func (f *fixture) createEvent(t *testing.T, name string) models.Event {
	t.Helper()
	body, contentType := createForm(t, name)
	req := httptest.NewRequest(http.MethodPost, "/events", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+f.orgToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var event models.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&event))
	return event
}

func TestCreateEventEndpoint(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "Beach Cleanup")

	assert.Equal(t, int64(1), event.EventID)
	assert.Equal(t, "Green Earth", event.Organization)
	assert.Equal(t, models.StatusOpen, event.Status)
	assert.ElementsMatch(t, []string{"First Aid", "Swimming"}, event.SkillsRequired)
}

func TestCreateEventRequiresOrganizationRole(t *testing.T) {
	f := newFixture(t)
	body, contentType := createForm(t, "Beach Cleanup")

	req := httptest.NewRequest(http.MethodPost, "/events", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+f.volToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// No token at all.
	req = httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(nil))
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateEventMissingField(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("event_name", "No Details"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/events", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+f.orgToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAndListEndpoints(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "Beach Cleanup")

	req := httptest.NewRequest(http.MethodGet, "/events/1", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, event.EventID, got.EventID)

	req = httptest.NewRequest(http.MethodGet, "/events", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	req = httptest.NewRequest(http.MethodGet, "/events/999", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/events/not-a-number", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFilterEndpoint(t *testing.T) {
	f := newFixture(t)
	f.createEvent(t, "Beach Cleanup")

	req := httptest.NewRequest(http.MethodGet, "/events/filter?category=environmental&city=spring", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	req = httptest.NewRequest(http.MethodGet, "/events/filter?category=education", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	list = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Empty(t, list)

	req = httptest.NewRequest(http.MethodGet, "/events/filter?status=Paused", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndDeleteEndpoints(t *testing.T) {
	f := newFixture(t)
	f.createEvent(t, "Beach Cleanup")

	payload, _ := json.Marshal(map[string]string{"event_name": "Beach Cleanup 2026"})
	req := httptest.NewRequest(http.MethodPut, "/events/1", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+f.orgToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Equal(t, "Beach Cleanup 2026", updated.Name)

	req = httptest.NewRequest(http.MethodDelete, "/events/1", nil)
	req.Header.Set("Authorization", "Bearer "+f.orgToken)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/events/1", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAggregateEndpoints(t *testing.T) {
	f := newFixture(t)
	f.createEvent(t, "Beach Cleanup")

	req := httptest.NewRequest(http.MethodGet, "/events/total-events", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var total map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&total))
	assert.Equal(t, 1, total["total_events"])

	req = httptest.NewRequest(http.MethodGet, "/events/autocomplete?search=bea", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var suggestions map[string][]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&suggestions))
	assert.Equal(t, []string{"Beach Cleanup"}, suggestions["suggestions"])

	// q is kept as an alias for search.
	req = httptest.NewRequest(http.MethodGet, "/events/autocomplete?q=bea", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	suggestions = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&suggestions))
	assert.Equal(t, []string{"Beach Cleanup"}, suggestions["suggestions"])

	req = httptest.NewRequest(http.MethodGet, "/dashboard/causes", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var causes map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&causes))
	assert.Equal(t, 1, causes["Environmental"])
	assert.Equal(t, 0, causes["Education"])
}

func TestRosterEndpoint(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "Beach Cleanup")
	_, err := f.events.AddVolunteer(context.Background(), event.EventID, f.volunteer,
		time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/events/1/volunteers", nil)
	req.Header.Set("Authorization", "Bearer "+f.orgToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var roster []service.RosterEntry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&roster))
	require.Len(t, roster, 1)
	assert.Equal(t, "Ana Lima", roster[0].Name)

	// Volunteers cannot read the roster.
	req = httptest.NewRequest(http.MethodGet, "/events/1/volunteers", nil)
	req.Header.Set("Authorization", "Bearer "+f.volToken)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOrganizationEventsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.createEvent(t, "Beach Cleanup")
	f.createEvent(t, "Tree Planting")

	req := httptest.NewRequest(http.MethodGet, "/organization/events", nil)
	req.Header.Set("Authorization", "Bearer "+f.orgToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 2)
}
