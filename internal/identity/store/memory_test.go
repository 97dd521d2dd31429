package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pledgeit/internal/identity/models"
	"pledgeit/pkg/platform/sentinel"
)

type IdentityStoreSuite struct {
	suite.Suite
	volunteers    *VolunteerInMemory
	organizations *OrganizationInMemory
}

func TestIdentityStoreSuite(t *testing.T) {
	suite.Run(t, new(IdentityStoreSuite))
}

func (s *IdentityStoreSuite) SetupTest() {
	s.volunteers = NewVolunteerInMemory()
	s.organizations = NewOrganizationInMemory()
}

func (s *IdentityStoreSuite) TestVolunteerCreateAndLookup() {
	ctx := context.Background()
	v := &models.Volunteer{ID: uuid.New(), FirstName: "Ana", LastName: "Lima", Email: "Ana@Example.com"}
	s.Require().NoError(s.volunteers.Create(ctx, v))

	s.Run("email lookup is case-insensitive", func() {
		got, err := s.volunteers.FindByEmail(ctx, "ana@example.com")
		s.Require().NoError(err)
		s.Equal(v.ID, got.ID)
	})

	s.Run("duplicate email conflicts", func() {
		dup := &models.Volunteer{ID: uuid.New(), FirstName: "Ana", Email: "ana@example.com"}
		s.ErrorIs(s.volunteers.Create(ctx, dup), sentinel.ErrConflict)
	})

	s.Run("unknown lookups miss", func() {
		_, err := s.volunteers.FindByID(ctx, uuid.New())
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.volunteers.FindByEmail(ctx, "nobody@example.com")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *IdentityStoreSuite) TestVolunteerBackReferences() {
	ctx := context.Background()
	v := &models.Volunteer{ID: uuid.New(), FirstName: "Ana", Email: "ana@example.com"}
	s.Require().NoError(s.volunteers.Create(ctx, v))

	s.Require().NoError(s.volunteers.AddRegisteredEvent(ctx, v.ID, 7))
	// Idempotent: a repeated add keeps a single entry.
	s.Require().NoError(s.volunteers.AddRegisteredEvent(ctx, v.ID, 7))
	s.Require().NoError(s.volunteers.AddAttendedEvent(ctx, v.ID, 7))

	got, err := s.volunteers.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal([]int64{7}, got.RegisteredEvents)
	s.Equal([]int64{7}, got.AttendedEvents)

	s.Require().NoError(s.volunteers.RemoveRegisteredEvent(ctx, v.ID, 7))
	got, err = s.volunteers.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Empty(got.RegisteredEvents)

	s.Run("unknown volunteer", func() {
		s.ErrorIs(s.volunteers.AddRegisteredEvent(ctx, uuid.New(), 7), sentinel.ErrNotFound)
	})
}

func (s *IdentityStoreSuite) TestOrganizationUniqueness() {
	ctx := context.Background()
	o := &models.Organization{ID: uuid.New(), Name: "Green Earth", Email: "org@greenearth.org"}
	s.Require().NoError(s.organizations.Create(ctx, o))

	s.Run("duplicate name conflicts", func() {
		dup := &models.Organization{ID: uuid.New(), Name: "Green Earth", Email: "other@greenearth.org"}
		s.ErrorIs(s.organizations.Create(ctx, dup), sentinel.ErrConflict)
	})

	s.Run("duplicate email conflicts", func() {
		dup := &models.Organization{ID: uuid.New(), Name: "Other Org", Email: "org@greenearth.org"}
		s.ErrorIs(s.organizations.Create(ctx, dup), sentinel.ErrConflict)
	})
}

func (s *IdentityStoreSuite) TestOrganizationBackReferences() {
	ctx := context.Background()
	o := &models.Organization{ID: uuid.New(), Name: "Green Earth", Email: "org@greenearth.org"}
	s.Require().NoError(s.organizations.Create(ctx, o))

	s.Require().NoError(s.organizations.AddCreatedEvent(ctx, o.ID, 3))
	s.Require().NoError(s.organizations.AddCreatedEvent(ctx, o.ID, 4))
	s.Require().NoError(s.organizations.RemoveCreatedEvent(ctx, o.ID, 3))

	got, err := s.organizations.FindByID(ctx, o.ID)
	s.Require().NoError(err)
	s.Equal([]int64{4}, got.CreatedEvents)
}

func (s *IdentityStoreSuite) TestClonesAreIsolated() {
	ctx := context.Background()
	v := &models.Volunteer{ID: uuid.New(), FirstName: "Ana", Email: "ana@example.com", Skills: []string{"First Aid"}}
	s.Require().NoError(s.volunteers.Create(ctx, v))

	got, err := s.volunteers.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	got.Skills[0] = "mutated"

	again, err := s.volunteers.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal("First Aid", again.Skills[0])
}
