// Package cache provides GraphQL response caching.
//
// GraphQL requests are POSTs to a single endpoint, so responses are keyed by
// endpoint, query text, variables and a credential scope rather than by URL.
// Caching is opt-in: the client only stores responses when a TTL is
// configured. It is mainly useful to resume an interrupted fetch without
// re-downloading the pages already seen.
//
// # Backends
//
//	// Shared between processes
//	store := cache.NewManager(redisClient)
//
//	// In-process LRU
//	store, err := cache.NewMemory(1024)
//
// Both implement Store:
//
//	key := cache.Key{Endpoint: endpoint, Query: query, Variables: vars}
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch, then
//		_ = store.Set(ctx, key, cache.NewEntry(body, 10*time.Minute))
//	}
//
// # Metrics
//
//   - gqlfetch_cache_hits_total{layer} - Cache hits
//   - gqlfetch_cache_misses_total{layer} - Cache misses
//   - gqlfetch_cache_stored_bytes_total{layer} - Bytes stored
//   - gqlfetch_cache_errors_total{operation} - Cache operation errors
package cache
