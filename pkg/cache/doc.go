// Package cache stores document content and page images in Redis.
//
// Document renditions are large and rarely change, so the documents handler
// can keep them in Redis for as long as the API's Expires header allows
// (5 minutes when absent). Metadata listings are never cached.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Scope: "svc-reader",
//		Path:  "api/documents/42/contents/1",
//		Query: url.Values{"dpi": []string{"300"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then:
//		entry, _ = cache.ResponseToEntry(resp)
//		_ = manager.Set(ctx, key, entry)
//	}
//
// # Metrics
//
//   - etrieve_cache_hits_total
//   - etrieve_cache_misses_total
//   - etrieve_cache_stored_bytes_total
//   - etrieve_cache_errors_total{operation}
package cache
