package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Manager is the Redis cache backend. Entries are shared by every process
// using the same Redis database and expire through Redis TTLs.
type Manager struct {
	rdb *redis.Client
}

// NewManager creates a Redis-backed store. It panics on a nil client.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{rdb: redisClient}
}

// Get returns the entry stored under key, or ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	raw, err := m.rdb.Get(ctx, key.String()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		CacheMisses.WithLabelValues(layerRedis).Inc()
		return nil, ErrCacheMiss
	case err != nil:
		return nil, m.fail("get", err)
	}

	entry := new(Entry)
	if err := json.Unmarshal(raw, entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	// Redis may keep a key for up to a second past its TTL.
	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.WithLabelValues(layerRedis).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(layerRedis).Inc()
	return entry, nil
}

// Set stores entry until its Expires time. Entries already expired are
// dropped.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return m.fail("set", err)
	}
	if err := m.rdb.Set(ctx, key.String(), raw, ttl).Err(); err != nil {
		return m.fail("set", err)
	}
	CacheStoredBytes.WithLabelValues(layerRedis).Add(float64(len(raw)))
	return nil
}

// Delete removes the entry stored under key.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.rdb.Del(ctx, key.String()).Err(); err != nil {
		return m.fail("delete", err)
	}
	return nil
}

func (m *Manager) fail(op string, err error) error {
	CacheErrors.WithLabelValues(op).Inc()
	return fmt.Errorf("redis %s: %w", op, err)
}
