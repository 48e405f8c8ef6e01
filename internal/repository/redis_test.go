package repository

import (
	"context"
	"testing"
	"time"

	"clinicbook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisSessionRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetSession", func(t *testing.T) {
		session := &models.WizardSession{
			UserID: 123,
			Step:   models.StepSelectDoctor,
			Draft: models.BookingDraft{
				Clinic: &models.Clinic{ID: "c1", Name: "City Clinic"},
			},
			PendingDoctorID: "d2",
		}

		err := repo.SetSession(ctx, session)
		require.NoError(t, err)

		got, err := repo.GetSession(ctx, 123)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, session.UserID, got.UserID)
		assert.Equal(t, session.Step, got.Step)
		assert.Equal(t, session.PendingDoctorID, got.PendingDoctorID)
		require.NotNil(t, got.Draft.Clinic)
		assert.Equal(t, "c1", got.Draft.Clinic.ID)
	})

	t.Run("GetNonExistentSession", func(t *testing.T) {
		got, err := repo.GetSession(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearSession", func(t *testing.T) {
		session := &models.WizardSession{UserID: 456, Step: models.StepSelectClinic}
		require.NoError(t, repo.SetSession(ctx, session))

		err := repo.ClearSession(ctx, 456)
		require.NoError(t, err)

		got, _ := repo.GetSession(ctx, 456)
		assert.Nil(t, got)
	})

	t.Run("SessionExpires", func(t *testing.T) {
		session := &models.WizardSession{UserID: 789, Step: models.StepSelectSlot}
		require.NoError(t, repo.SetSession(ctx, session))

		s.FastForward(2 * time.Hour)

		got, err := repo.GetSession(ctx, 789)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		userID := int64(321)
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(2 * time.Second)

		allowed, err = repo.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		nilRepo := NewRedisSessionRepository(nil, time.Hour)

		_, err := nilRepo.GetSession(ctx, 1)
		assert.Error(t, err)

		err = nilRepo.SetSession(ctx, &models.WizardSession{UserID: 1})
		assert.Error(t, err)
	})
}
