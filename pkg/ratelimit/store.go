package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// stateStore persists State per API host.
type stateStore interface {
	// load returns nil, nil when nothing is stored for host.
	load(ctx context.Context, host string) (*State, error)
	save(ctx context.Context, host string, state *State) error
}

// redisStore shares state between processes through Redis.
type redisStore struct {
	client *redis.Client
}

func redisKey(host, suffix string) string {
	return RedisKeyPrefix + ":" + host + ":" + suffix
}

func (r *redisStore) load(ctx context.Context, host string) (*State, error) {
	remaining, err := r.client.Get(ctx, redisKey(host, RedisKeyRemaining)).Int()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get remaining: %w", err)
	}

	resetTimestamp, err := r.client.Get(ctx, redisKey(host, RedisKeyResetTimestamp)).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get reset timestamp: %w", err)
	}

	lastUpdateStr, err := r.client.Get(ctx, redisKey(host, RedisKeyLastUpdate)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	var lastUpdate time.Time
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &lastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	state := &State{
		Remaining:  remaining,
		ResetAt:    time.Unix(resetTimestamp, 0),
		LastUpdate: lastUpdate,
	}
	state.UpdateHealth()
	return state, nil
}

func (r *redisStore) save(ctx context.Context, host string, state *State) error {
	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	// Keys expire with the window so a stale budget never outlives it.
	ttl := state.TimeUntilReset() + time.Minute

	pipe := r.client.Pipeline()
	pipe.Set(ctx, redisKey(host, RedisKeyRemaining), state.Remaining, ttl)
	pipe.Set(ctx, redisKey(host, RedisKeyResetTimestamp), state.ResetAt.Unix(), ttl)
	pipe.Set(ctx, redisKey(host, RedisKeyLastUpdate), lastUpdateJSON, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}

// memoryStore keeps state for a single process.
type memoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func newMemoryStore() *memoryStore {
	return &memoryStore{states: make(map[string]State)}
}

func (m *memoryStore) load(_ context.Context, host string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[host]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (m *memoryStore) save(_ context.Context, host string, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[host] = *state
	return nil
}
