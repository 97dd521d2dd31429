package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestStatusFor(t *testing.T) {
	today := date("2025-06-15")

	assert.Equal(t, StatusOpen, StatusFor(date("2025-06-15"), today), "deadline today stays open")
	assert.Equal(t, StatusOpen, StatusFor(date("2025-06-16"), today))
	assert.Equal(t, StatusClosed, StatusFor(date("2025-06-14"), today))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("environmental")
	require.NoError(t, err)
	assert.Equal(t, CategoryEnvironmental, c)

	c, err = ParseCategory("  Fundraising & Charity ")
	require.NoError(t, err)
	assert.Equal(t, CategoryFundraising, c)

	_, err = ParseCategory("knitting")
	assert.Error(t, err)
}

func TestParseTimeOfDayNormalizesShortForm(t *testing.T) {
	got, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, "09:30:00", got)

	got, err = ParseTimeOfDay("17:45:30")
	require.NoError(t, err)
	assert.Equal(t, "17:45:30", got)

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestStartAtCombinesDateAndTime(t *testing.T) {
	e := &Event{Date: date("2025-06-20"), TimeOfDay: "14:30:00"}
	start := e.StartAt()
	assert.Equal(t, time.Date(2025, 6, 20, 14, 30, 0, 0, time.UTC), start)
}

func TestExpired(t *testing.T) {
	e := &Event{ExpireAt: date("2025-06-21").Add(14 * time.Hour)}
	assert.False(t, e.Expired(date("2025-06-21")))
	assert.True(t, e.Expired(date("2025-06-22")))
}

func TestCreateEventInputParse(t *testing.T) {
	valid := func() *CreateEventInput {
		return &CreateEventInput{
			Name:                 "Beach Cleanup",
			Description:          "Cleaning the shoreline",
			Category:             "Environmental",
			Date:                 "2025-07-01",
			Time:                 "08:00",
			Venue:                "Mount Lavinia Beach",
			City:                 "Colombo",
			Address:              "Mount Lavinia, Colombo",
			Duration:             "4 hours",
			ContactEmail:         "org@example.com",
			ContactPersonName:    "Amara Silva",
			ContactPersonNumber:  "+94771234567",
			RegistrationDeadline: "2025-06-28",
			SkillsRequired:       []string{"Teamwork", " teamwork ", "", "First Aid"},
			Image: &ImageUpload{
				Filename:    "banner.png",
				ContentType: "image/png",
				Content:     strings.NewReader("png-bytes"),
			},
		}
	}

	t.Run("valid input parses and normalizes", func(t *testing.T) {
		parsed, err := valid().Parse()
		require.NoError(t, err)
		assert.Equal(t, CategoryEnvironmental, parsed.Category)
		assert.Equal(t, "08:00:00", parsed.TimeOfDay)
		assert.Equal(t, 0, parsed.VolunteerRequirements, "absent capacity defaults to unlimited")
		assert.Equal(t, []string{"Teamwork", "First Aid"}, parsed.SkillsRequired)
	})

	t.Run("missing required field", func(t *testing.T) {
		in := valid()
		in.Venue = "   "
		_, err := in.Parse()
		assert.Error(t, err)
	})

	t.Run("bad email", func(t *testing.T) {
		in := valid()
		in.ContactEmail = "not-an-email"
		_, err := in.Parse()
		assert.Error(t, err)
	})

	t.Run("negative capacity", func(t *testing.T) {
		in := valid()
		in.VolunteerRequirements = "-3"
		_, err := in.Parse()
		assert.Error(t, err)
	})

	t.Run("capacity parses", func(t *testing.T) {
		in := valid()
		in.VolunteerRequirements = "25"
		parsed, err := in.Parse()
		require.NoError(t, err)
		assert.Equal(t, 25, parsed.VolunteerRequirements)
	})

	t.Run("image type must match extension", func(t *testing.T) {
		in := valid()
		in.Image.Filename = "banner.gif"
		_, err := in.Parse()
		assert.Error(t, err)

		in = valid()
		in.Image.ContentType = "image/gif"
		_, err = in.Parse()
		assert.Error(t, err)

		in = valid()
		in.Image = nil
		_, err = in.Parse()
		assert.Error(t, err)
	})

	t.Run("jpeg accepts both extensions", func(t *testing.T) {
		for _, name := range []string{"photo.jpg", "photo.jpeg"} {
			in := valid()
			in.Image.Filename = name
			in.Image.ContentType = "image/jpeg"
			_, err := in.Parse()
			assert.NoError(t, err, name)
		}
	})
}

func TestEventUpdateApply(t *testing.T) {
	now := date("2025-06-15")
	base := func() *Event {
		return &Event{
			Name:                 "Beach Cleanup",
			Category:             CategoryEnvironmental,
			Date:                 date("2025-07-01"),
			TimeOfDay:            "08:00:00",
			RegistrationDeadline: date("2025-06-28"),
			Status:               StatusOpen,
			ExpireAt:             date("2025-07-02").Add(8 * time.Hour),
		}
	}

	t.Run("absent fields untouched", func(t *testing.T) {
		e := base()
		desc := "Updated description"
		require.NoError(t, (&EventUpdate{Description: &desc}).Apply(e, now))
		assert.Equal(t, "Beach Cleanup", e.Name)
		assert.Equal(t, "Updated description", e.Description)
	})

	t.Run("deadline change recomputes status", func(t *testing.T) {
		e := base()
		past := "2025-06-01"
		require.NoError(t, (&EventUpdate{RegistrationDeadline: &past}).Apply(e, now))
		assert.Equal(t, StatusClosed, e.Status)

		future := "2025-06-20"
		require.NoError(t, (&EventUpdate{RegistrationDeadline: &future}).Apply(e, now))
		assert.Equal(t, StatusOpen, e.Status)
	})

	t.Run("date change moves expiry", func(t *testing.T) {
		e := base()
		newDate := "2025-08-10"
		require.NoError(t, (&EventUpdate{Date: &newDate}).Apply(e, now))
		assert.Equal(t, date("2025-08-11").Add(8*time.Hour), e.ExpireAt)
	})

	t.Run("blank name rejected", func(t *testing.T) {
		e := base()
		blank := "  "
		assert.Error(t, (&EventUpdate{Name: &blank}).Apply(e, now))
	})

	t.Run("negative capacity rejected", func(t *testing.T) {
		e := base()
		n := -1
		assert.Error(t, (&EventUpdate{VolunteerRequirements: &n}).Apply(e, now))
	})
}
