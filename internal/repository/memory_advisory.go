package repository

import (
	"context"
	"sync"
	"time"

	"campusres/internal/models"
)

type advisoryEntry struct {
	outcome   models.AdvisoryOutcome
	expiresAt time.Time
}

// MemoryAdvisoryCache is the in-process advisory cache used when redis is
// not configured and as the failover target.
type MemoryAdvisoryCache struct {
	outcomes   sync.Map
	rateLimits sync.Map
	now        func() time.Time
}

func NewMemoryAdvisoryCache() *MemoryAdvisoryCache {
	return &MemoryAdvisoryCache{now: time.Now}
}

func (c *MemoryAdvisoryCache) GetOutcome(ctx context.Context, key string) (*models.AdvisoryOutcome, error) {
	val, ok := c.outcomes.Load(key)
	if !ok {
		return nil, nil
	}
	entry := val.(*advisoryEntry)
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.outcomes.Delete(key)
		return nil, nil
	}
	out := entry.outcome
	return &out, nil
}

func (c *MemoryAdvisoryCache) SetOutcome(ctx context.Context, key string, outcome *models.AdvisoryOutcome, ttl time.Duration) error {
	entry := &advisoryEntry{outcome: *outcome}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.outcomes.Store(key, entry)
	return nil
}

type rateLimitEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (c *MemoryAdvisoryCache) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	now := c.now()
	val, _ := c.rateLimits.LoadOrStore(userID, &rateLimitEntry{expiresAt: now.Add(window)})
	entry := val.(*rateLimitEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if now.After(entry.expiresAt) {
		entry.count = 0
		entry.expiresAt = now.Add(window)
	}
	entry.count++
	return entry.count <= limit, nil
}
