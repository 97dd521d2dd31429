//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pledgeit/internal/identity/models"
	"pledgeit/pkg/platform/sentinel"
	"pledgeit/pkg/testutil/containers"
)

type PostgresIdentityStoreSuite struct {
	suite.Suite
	pg            *containers.PostgresContainer
	volunteers    *VolunteerPostgres
	organizations *OrganizationPostgres
}

func TestPostgresIdentityStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	suite.Run(t, new(PostgresIdentityStoreSuite))
}

func (s *PostgresIdentityStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(EnsureSchema(context.Background(), s.pg.DB))
	s.volunteers = NewVolunteerPostgres(s.pg.DB)
	s.organizations = NewOrganizationPostgres(s.pg.DB)
}

func (s *PostgresIdentityStoreSuite) SetupTest() {
	_, err := s.pg.DB.Exec(`TRUNCATE volunteers, organizations`)
	s.Require().NoError(err)
}

func (s *PostgresIdentityStoreSuite) TestVolunteerRoundTrip() {
	ctx := context.Background()
	v := &models.Volunteer{
		ID:        uuid.New(),
		FirstName: "Ana",
		LastName:  "Lima",
		Email:     "Ana@Example.com",
		City:      "Springfield",
		Skills:    []string{"First Aid"},
	}
	s.Require().NoError(s.volunteers.Create(ctx, v))

	got, err := s.volunteers.FindByEmail(ctx, "ana@example.com")
	s.Require().NoError(err)
	s.Equal(v.ID, got.ID)
	s.Equal([]string{"First Aid"}, got.Skills)

	s.Run("duplicate email conflicts", func() {
		dup := &models.Volunteer{ID: uuid.New(), FirstName: "Ana", Email: "ANA@example.com"}
		s.ErrorIs(s.volunteers.Create(ctx, dup), sentinel.ErrConflict)
	})
}

func (s *PostgresIdentityStoreSuite) TestVolunteerBackReferences() {
	ctx := context.Background()
	v := &models.Volunteer{ID: uuid.New(), FirstName: "Ana", Email: "ana@example.com"}
	s.Require().NoError(s.volunteers.Create(ctx, v))

	s.Require().NoError(s.volunteers.AddRegisteredEvent(ctx, v.ID, 7))
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
}

func (s *PostgresIdentityStoreSuite) TestOrganizationUniquenessAndBackReferences() {
	ctx := context.Background()
	o := &models.Organization{ID: uuid.New(), Name: "Green Earth", Email: "org@greenearth.org"}
	s.Require().NoError(s.organizations.Create(ctx, o))

	s.Run("duplicate name conflicts", func() {
		dup := &models.Organization{ID: uuid.New(), Name: "Green Earth", Email: "other@greenearth.org"}
		s.ErrorIs(s.organizations.Create(ctx, dup), sentinel.ErrConflict)
	})

	s.Require().NoError(s.organizations.AddCreatedEvent(ctx, o.ID, 3))
	s.Require().NoError(s.organizations.AddCreatedEvent(ctx, o.ID, 3))
	s.Require().NoError(s.organizations.AddCreatedEvent(ctx, o.ID, 4))
	s.Require().NoError(s.organizations.RemoveCreatedEvent(ctx, o.ID, 3))

	got, err := s.organizations.FindByID(ctx, o.ID)
	s.Require().NoError(err)
	s.Equal([]int64{4}, got.CreatedEvents)
}
