package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached upstream response.
type CacheKey struct {
	// Host is the upstream host (e.g., "api.octopus.energy")
	Host string

	// Endpoint is the request path
	Endpoint string

	// QueryParams are the query parameters
	QueryParams url.Values
}

// KeyFromURL builds the cache key for a request URL.
func KeyFromURL(u *url.URL) CacheKey {
	return CacheKey{
		Host:        u.Host,
		Endpoint:    u.Path,
		QueryParams: u.Query(),
	}
}

// String generates a deterministic cache key string.
// Format: agile:host:endpoint:query1=val1:query2=val2
//
// Example:
//
//	agile:api.octopus.energy:v1/products/AGILE-24-10-01/electricity-tariffs/E-1R-AGILE-24-10-01-C/standard-unit-rates:period_from=...:period_to=...
func (k CacheKey) String() string {
	parts := []string{"agile"}

	if k.Host != "" {
		parts = append(parts, strings.ToLower(k.Host))
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}
