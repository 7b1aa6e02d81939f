package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baryshev/examroom/internal/core"
	"github.com/baryshev/examroom/internal/domain"
)

func TestCatalogCreateAssignsUniqueRoomCodes(t *testing.T) {
	c := core.NewCatalog()

	seen := make(map[domain.RoomCode]bool)
	for i := 0; i < 50; i++ {
		exam := c.Create("Midterm", 45, nil, time.Time{})
		require.NotEmpty(t, exam.ID)
		require.Len(t, string(exam.RoomCode), 6)
		for _, r := range exam.RoomCode {
			assert.Contains(t, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", string(r))
		}
		assert.False(t, seen[exam.RoomCode], "room code %s issued twice", exam.RoomCode)
		seen[exam.RoomCode] = true

		// Codes from the catalog are valid join targets.
		_, err := domain.ParseRoomCode(string(exam.RoomCode))
		assert.NoError(t, err)
	}
}

func TestCatalogGetAndList(t *testing.T) {
	c := core.NewCatalog()

	_, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Empty(t, c.List())

	when := time.Now().Add(time.Hour)
	exam := c.Create("Finals", 90, []domain.Question{
		{ID: "q1", Text: "2+2?", Options: []domain.Option{{ID: "a", Text: "4"}}},
	}, when)

	got, ok := c.Get(exam.ID)
	require.True(t, ok)
	assert.Equal(t, "Finals", got.Title)
	assert.Equal(t, 90, got.Duration)
	assert.Equal(t, when, got.ScheduledFor)
	require.Len(t, got.Questions, 1)

	assert.Len(t, c.List(), 1)
}
