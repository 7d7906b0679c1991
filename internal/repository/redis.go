package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campusres/internal/config"
	"campusres/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	advisoryKeyPrefix  = "advisory:"
	rateLimitKeyPrefix = "advisory_rate:"
)

// RedisAdvisoryCache stores advisory outcomes as JSON values with a TTL.
type RedisAdvisoryCache struct {
	client *redis.Client
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisAdvisoryCache(client *redis.Client) *RedisAdvisoryCache {
	return &RedisAdvisoryCache{client: client}
}

func (r *RedisAdvisoryCache) GetOutcome(ctx context.Context, key string) (*models.AdvisoryOutcome, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, advisoryKeyPrefix+key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get advisory outcome from redis: %w", err)
	}

	var outcome models.AdvisoryOutcome
	if err := json.Unmarshal([]byte(val), &outcome); err != nil {
		return nil, fmt.Errorf("failed to unmarshal advisory outcome: %w", err)
	}
	return &outcome, nil
}

func (r *RedisAdvisoryCache) SetOutcome(ctx context.Context, key string, outcome *models.AdvisoryOutcome, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal advisory outcome: %w", err)
	}
	if err := r.client.Set(ctx, advisoryKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set advisory outcome in redis: %w", err)
	}
	return nil
}

func (r *RedisAdvisoryCache) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("%s%d", rateLimitKeyPrefix, userID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		r.client.Expire(ctx, key, window)
	}
	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
