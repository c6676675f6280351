package cache

import (
	"time"
)

// CacheEntry represents a cached upstream response.
type CacheEntry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// ETag for conditional requests (If-None-Match)
	ETag string `json:"etag"`

	// LastModified from the upstream Last-Modified header
	LastModified time.Time `json:"last_modified"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// CachedAt is when the response was fetched or last revalidated
	CachedAt time.Time `json:"cached_at"`

	// RevalidateAt is when the entry stops being fresh
	RevalidateAt time.Time `json:"revalidate_at"`

	// Expires is when the entry is dropped from the cache
	Expires time.Time `json:"expires"`
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// NeedsRevalidation reports whether the entry is stale at now.
func (e *CacheEntry) NeedsRevalidation(now time.Time) bool {
	return !now.Before(e.RevalidateAt)
}

// Refresh marks the entry as revalidated at now.
func (e *CacheEntry) Refresh(now time.Time, revalidate, retention time.Duration) {
	e.CachedAt = now
	e.RevalidateAt = now.Add(revalidate)
	if retention < revalidate {
		retention = revalidate
	}
	e.Expires = now.Add(retention)
}
