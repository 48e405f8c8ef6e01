package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinicbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySessionRepository struct {
	inner *MemorySessionRepository
	fail  bool
	calls int
}

func (f *flakySessionRepository) GetSession(ctx context.Context, userID int64) (*models.WizardSession, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("connection refused")
	}
	return f.inner.GetSession(ctx, userID)
}

func (f *flakySessionRepository) SetSession(ctx context.Context, session *models.WizardSession) error {
	f.calls++
	if f.fail {
		return errors.New("connection refused")
	}
	return f.inner.SetSession(ctx, session)
}

func (f *flakySessionRepository) ClearSession(ctx context.Context, userID int64) error {
	f.calls++
	if f.fail {
		return errors.New("connection refused")
	}
	return f.inner.ClearSession(ctx, userID)
}

func (f *flakySessionRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	f.calls++
	if f.fail {
		return false, errors.New("connection refused")
	}
	return f.inner.CheckRateLimit(ctx, userID, limit, window)
}

func TestFailoverSessionRepository(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("UsesPrimaryWhenHealthy", func(t *testing.T) {
		primary := &flakySessionRepository{inner: NewMemorySessionRepository()}
		fallback := NewMemorySessionRepository()
		repo := NewFailoverSessionRepository(primary, fallback, &logger)

		session := models.NewWizardSession(1)
		require.NoError(t, repo.SetSession(ctx, session))

		got, err := repo.GetSession(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, got)

		// nothing should have reached the fallback
		fromFallback, _ := fallback.GetSession(ctx, 1)
		assert.Nil(t, fromFallback)
	})

	t.Run("FallsBackOnPrimaryError", func(t *testing.T) {
		primary := &flakySessionRepository{inner: NewMemorySessionRepository(), fail: true}
		fallback := NewMemorySessionRepository()
		repo := NewFailoverSessionRepository(primary, fallback, &logger)

		session := models.NewWizardSession(2)
		session.Step = models.StepSelectSlot
		require.NoError(t, repo.SetSession(ctx, session))

		got, err := repo.GetSession(ctx, 2)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.StepSelectSlot, got.Step)
	})

	t.Run("StopsHittingPrimaryWhileDown", func(t *testing.T) {
		primary := &flakySessionRepository{inner: NewMemorySessionRepository(), fail: true}
		fallback := NewMemorySessionRepository()
		repo := NewFailoverSessionRepository(primary, fallback, &logger)

		require.NoError(t, repo.SetSession(ctx, models.NewWizardSession(3)))
		callsAfterFailure := primary.calls

		require.NoError(t, repo.SetSession(ctx, models.NewWizardSession(4)))
		require.NoError(t, repo.ClearSession(ctx, 4))

		assert.Equal(t, callsAfterFailure, primary.calls)
	})

	t.Run("RecoversAfterProbe", func(t *testing.T) {
		primary := &flakySessionRepository{inner: NewMemorySessionRepository(), fail: true}
		fallback := NewMemorySessionRepository()
		repo := NewFailoverSessionRepository(primary, fallback, &logger)

		// trip the breaker
		require.NoError(t, repo.SetSession(ctx, models.NewWizardSession(5)))
		assert.True(t, repo.isDown.Load())

		// primary comes back and the probe window elapses
		primary.fail = false
		repo.lastCheck = time.Now().Add(-2 * time.Minute)

		_, err := repo.GetSession(ctx, 5)
		require.NoError(t, err)
		assert.False(t, repo.isDown.Load())
	})

	t.Run("RateLimitFallsBack", func(t *testing.T) {
		primary := &flakySessionRepository{inner: NewMemorySessionRepository(), fail: true}
		fallback := NewMemorySessionRepository()
		repo := NewFailoverSessionRepository(primary, fallback, &logger)

		allowed, err := repo.CheckRateLimit(ctx, 6, 1, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, 6, 1, time.Second)
		require.NoError(t, err)
		assert.False(t, allowed)
	})
}
