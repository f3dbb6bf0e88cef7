package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dionfirmansyah/yonsense/internal/models"
	"github.com/go-redis/redis/v8"
)

// RedisRepository wraps the optional Redis client. A nil repository or
// client behaves as an always-empty cache.
type RedisRepository struct {
	Client *redis.Client
}

// NewRedisRepository creates a new RedisRepository.
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{Client: client}
}

// Enabled reports whether a client is configured.
func (r *RedisRepository) Enabled() bool {
	return r != nil && r.Client != nil
}

// Claim atomically sets key if absent and reports whether this caller set it.
// Without a client every claim succeeds.
func (r *RedisRepository) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if !r.Enabled() {
		return true, nil
	}
	return r.Client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// GetJSON fetches a JSON payload from Redis and unmarshals it into dest.
func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !r.Enabled() {
		return false, nil
	}
	data, err := r.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores a JSON payload in Redis with the provided TTL.
func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !r.Enabled() || ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.Client.SetEX(ctx, key, data, ttl).Err()
}

// CachedDispatchLog reads through Redis before falling back to the wrapped log.
type CachedDispatchLog struct {
	next  DispatchLog
	cache *RedisRepository
	ttl   time.Duration
}

// NewCachedDispatchLog wraps next with a Redis read-through cache.
func NewCachedDispatchLog(next DispatchLog, cache *RedisRepository, ttl time.Duration) *CachedDispatchLog {
	return &CachedDispatchLog{next: next, cache: cache, ttl: ttl}
}

func dispatchCacheKey(requestID string) string {
	return "push:dispatch:" + requestID
}

func (l *CachedDispatchLog) Save(ctx context.Context, rec *models.DispatchRecord) error {
	if err := l.next.Save(ctx, rec); err != nil {
		return err
	}
	_ = l.cache.SetJSON(ctx, dispatchCacheKey(rec.RequestID), rec, l.ttl)
	return nil
}

func (l *CachedDispatchLog) Get(ctx context.Context, requestID string) (*models.DispatchRecord, error) {
	var cached models.DispatchRecord
	if ok, err := l.cache.GetJSON(ctx, dispatchCacheKey(requestID), &cached); err == nil && ok {
		return &cached, nil
	}
	rec, err := l.next.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	_ = l.cache.SetJSON(ctx, dispatchCacheKey(requestID), rec, l.ttl)
	return rec, nil
}
