package repository

import (
	"context"
	"testing"
	"time"

	"campusres/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisAdvisoryCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	cache := NewRedisAdvisoryCache(client)
	ctx := context.Background()

	t.Run("SetAndGetOutcome", func(t *testing.T) {
		outcome := &models.AdvisoryOutcome{
			Key:   "rec-1",
			State: models.AdvisoryReady,
			Recommend: &models.EquipmentRecommendation{
				EquipmentID:   3,
				Justification: "has HDMI",
			},
		}
		require.NoError(t, cache.SetOutcome(ctx, "rec-1", outcome, time.Hour))

		got, err := cache.GetOutcome(ctx, "rec-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.AdvisoryReady, got.State)
		require.NotNil(t, got.Recommend)
		assert.Equal(t, int64(3), got.Recommend.EquipmentID)
		assert.True(t, s.Exists("advisory:rec-1"))
	})

	t.Run("MissingOutcome", func(t *testing.T) {
		got, err := cache.GetOutcome(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("OutcomeExpires", func(t *testing.T) {
		require.NoError(t, cache.SetOutcome(ctx, "short", &models.AdvisoryOutcome{Key: "short"}, time.Second))
		s.FastForward(2 * time.Second)

		got, err := cache.GetOutcome(ctx, "short")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CorruptValue", func(t *testing.T) {
		require.NoError(t, s.Set("advisory:bad", "{not json"))
		_, err := cache.GetOutcome(ctx, "bad")
		assert.Error(t, err)
	})

	t.Run("RateLimit", func(t *testing.T) {
		allowed, err := cache.CheckRateLimit(ctx, 789, 2, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = cache.CheckRateLimit(ctx, 789, 2, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = cache.CheckRateLimit(ctx, 789, 2, time.Second)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(time.Second + time.Millisecond)

		allowed, err = cache.CheckRateLimit(ctx, 789, 2, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		c := NewRedisAdvisoryCache(nil)
		_, err := c.GetOutcome(ctx, "x")
		assert.ErrorContains(t, err, "redis client is nil")
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("ClosedServer", func(t *testing.T) {
		s2, err := miniredis.Run()
		require.NoError(t, err)
		c2 := redis.NewClient(&redis.Options{Addr: s2.Addr(), MaxRetries: -1})
		s2.Close()

		_, err = NewRedisAdvisoryCache(c2).GetOutcome(ctx, "x")
		assert.Error(t, err)
		assert.NoError(t, Close(c2))
	})
}
