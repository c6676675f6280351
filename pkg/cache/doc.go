// Package cache provides the two caching layers of the price pipeline.
//
// The Manager is a Redis-backed transport cache for upstream GET responses.
// Each entry records when it was fetched and when it must be revalidated:
//
//   - A fresh entry (younger than the revalidation hint) is served directly
//   - A stale entry carrying an ETag or Last-Modified is revalidated with a
//     conditional request (If-None-Match / If-Modified-Since)
//   - Entries are kept in Redis for a retention period, after which they
//     expire and the next request is unconditional
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.KeyFromURL(req.URL)
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from upstream
//	}
//
//	if entry.NeedsRevalidation(time.Now()) && cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// The Memo is a short-lived, in-process map scoped to one logical request
// cycle. Concurrent callers asking for the same key share one computation;
// Reset drops everything at the end of the cycle.
//
// # Metrics
//
//   - agile_cache_hits_total{layer} - Cache hits ("redis", "memo")
//   - agile_cache_misses_total{layer} - Cache misses
//   - agile_cache_size_bytes{layer="redis"} - Bytes written to Redis
//   - agile_cache_revalidations_total{result} - Conditional requests by outcome
//   - agile_cache_errors_total{operation} - Cache operation errors
package cache
