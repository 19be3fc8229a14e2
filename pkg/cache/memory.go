package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize is the default number of entries kept by Memory.
const DefaultMemorySize = 1024

// Memory is an in-process LRU cache backend.
type Memory struct {
	entries *lru.Cache[string, *Entry]
}

// NewMemory creates an LRU cache holding at most size entries.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &Memory{entries: entries}, nil
}

// Get retrieves a cache entry by key.
func (m *Memory) Get(_ context.Context, key Key) (*Entry, error) {
	k := key.String()
	entry, ok := m.entries.Get(k)
	if !ok {
		CacheMisses.WithLabelValues(layerMemory).Inc()
		return nil, ErrCacheMiss
	}
	if entry.IsExpired() {
		m.entries.Remove(k)
		CacheMisses.WithLabelValues(layerMemory).Inc()
		return nil, ErrCacheMiss
	}
	CacheHits.WithLabelValues(layerMemory).Inc()
	return entry, nil
}

// Set stores a cache entry unless it has already expired.
func (m *Memory) Set(_ context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if entry.TTL() <= 0 {
		return nil
	}
	m.entries.Add(key.String(), entry)
	CacheStoredBytes.WithLabelValues(layerMemory).Add(float64(len(entry.Data)))
	return nil
}

// Delete removes a cache entry.
func (m *Memory) Delete(_ context.Context, key Key) error {
	m.entries.Remove(key.String())
	return nil
}

// Len returns the number of cached entries, including expired ones not yet
// evicted.
func (m *Memory) Len() int {
	return m.entries.Len()
}
