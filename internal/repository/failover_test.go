package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"campusres/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetOutcome(ctx context.Context, key string) (*models.AdvisoryOutcome, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdvisoryOutcome), args.Error(1)
}

func (m *mockCache) SetOutcome(ctx context.Context, key string, outcome *models.AdvisoryOutcome, ttl time.Duration) error {
	args := m.Called(ctx, key, outcome, ttl)
	return args.Error(0)
}

func (m *mockCache) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, userID, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverAdvisoryCache(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	cache := NewFailoverAdvisoryCache(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		outcome := &models.AdvisoryOutcome{Key: "a", State: models.AdvisoryReady}
		primary.On("GetOutcome", ctx, "a").Return(outcome, nil).Once()

		got, err := cache.GetOutcome(ctx, "a")
		assert.NoError(t, err)
		assert.Equal(t, outcome, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryMissChecksFallback", func(t *testing.T) {
		outcome := &models.AdvisoryOutcome{Key: "b", State: models.AdvisoryLoading}
		primary.On("GetOutcome", ctx, "b").Return(nil, nil).Once()
		fallback.On("GetOutcome", ctx, "b").Return(outcome, nil).Once()

		got, err := cache.GetOutcome(ctx, "b")
		assert.NoError(t, err)
		assert.Equal(t, outcome, got)
		fallback.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		outcome := &models.AdvisoryOutcome{Key: "c"}
		primary.On("GetOutcome", ctx, "c").Return(nil, errors.New("fail")).Once()
		fallback.On("GetOutcome", ctx, "c").Return(outcome, nil).Once()

		got, err := cache.GetOutcome(ctx, "c")
		assert.NoError(t, err)
		assert.Equal(t, outcome, got)
		assert.True(t, cache.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("AlreadyDownSkipsPrimary", func(t *testing.T) {
		outcome := &models.AdvisoryOutcome{Key: "d"}
		fallback.On("SetOutcome", ctx, "d", outcome, time.Minute).Return(nil).Once()

		err := cache.SetOutcome(ctx, "d", outcome, time.Minute)
		assert.NoError(t, err)
		fallback.AssertExpectations(t)
		primary.AssertNotCalled(t, "SetOutcome", ctx, "d", outcome, time.Minute)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		cache.isDown.Store(true)
		cache.lastCheck = time.Now().Add(-2 * time.Minute)

		outcome := &models.AdvisoryOutcome{Key: "e"}
		primary.On("GetOutcome", ctx, "e").Return(outcome, nil).Once()

		got, err := cache.GetOutcome(ctx, "e")
		assert.NoError(t, err)
		assert.Equal(t, outcome, got)
		assert.False(t, cache.isDown.Load())
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		cache.isDown.Store(true)
		cache.lastCheck = time.Now().Add(-2 * time.Minute)

		primary.On("GetOutcome", ctx, "f").Return(nil, errors.New("still fail")).Once()
		fallback.On("GetOutcome", ctx, "f").Return(nil, nil).Once()

		got, err := cache.GetOutcome(ctx, "f")
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.True(t, cache.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("CheckRateLimitFailover", func(t *testing.T) {
		cache.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, int64(6), 10, time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("CheckRateLimit", ctx, int64(6), 10, time.Minute).Return(true, nil).Once()

		allowed, err := cache.CheckRateLimit(ctx, 6, 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, cache.isDown.Load())
	})
}
