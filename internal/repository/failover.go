package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"campusres/internal/domain"
	"campusres/internal/models"

	"github.com/rs/zerolog"
)

const failoverRetryAfter = time.Minute

// FailoverAdvisoryCache serves from primary until it errors, then from the
// fallback. The primary is retried once per failoverRetryAfter.
type FailoverAdvisoryCache struct {
	primary  domain.AdvisoryCache
	fallback domain.AdvisoryCache
	logger   *zerolog.Logger
	isDown   atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
	now       func() time.Time
}

func NewFailoverAdvisoryCache(primary, fallback domain.AdvisoryCache, logger *zerolog.Logger) *FailoverAdvisoryCache {
	return &FailoverAdvisoryCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverAdvisoryCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary advisory cache failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = r.now()
	r.mu.Unlock()
}

// usePrimary reports whether the call should go to the primary store.
func (r *FailoverAdvisoryCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.now().Sub(r.lastCheck) > failoverRetryAfter {
		r.lastCheck = r.now()
		return true
	}
	return false
}

func (r *FailoverAdvisoryCache) recovered() {
	if r.isDown.CompareAndSwap(true, false) {
		r.logger.Info().Msg("Primary advisory cache recovered")
	}
}

func (r *FailoverAdvisoryCache) GetOutcome(ctx context.Context, key string) (*models.AdvisoryOutcome, error) {
	if r.usePrimary() {
		outcome, err := r.primary.GetOutcome(ctx, key)
		if err == nil {
			r.recovered()
			if outcome != nil {
				return outcome, nil
			}
			// результат мог быть записан в fallback, пока primary лежал
			return r.fallback.GetOutcome(ctx, key)
		}
		r.markDown(err)
	}
	return r.fallback.GetOutcome(ctx, key)
}

func (r *FailoverAdvisoryCache) SetOutcome(ctx context.Context, key string, outcome *models.AdvisoryOutcome, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.SetOutcome(ctx, key, outcome, ttl)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetOutcome(ctx, key, outcome, ttl)
}

func (r *FailoverAdvisoryCache) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		if err == nil {
			r.recovered()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}
