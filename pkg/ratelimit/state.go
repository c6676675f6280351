// Package ratelimit bounds the call rate to a single upstream API and runs
// units of work with a per-call timeout and exponential-backoff retry.
//
// A Limiter keeps a sliding window of recent call timestamps. Before each
// attempt it waits until both the window budget and the minimum spacing
// between calls allow another request; waits longer than MaxWait fail fast
// with a RateLimitError instead of blocking the caller.
package ratelimit

import (
	"time"
)

// Defaults for a Limiter dedicated to the pricing API.
const (
	DefaultMaxRequests  = 60
	DefaultWindow       = 60 * time.Second
	DefaultMinInterval  = 100 * time.Millisecond
	DefaultMaxRetries   = 3
	DefaultCallTimeout  = 10 * time.Second
	DefaultBaseBackoff  = 1 * time.Second
	DefaultMaxBackoff   = 30 * time.Second
	DefaultMaxWait      = 60 * time.Second
	backoffJitterFactor = 0.1
)

// Config is the immutable configuration of a Limiter.
type Config struct {
	// MaxRequests is the number of calls allowed inside Window.
	MaxRequests int

	// Window is the sliding window duration.
	Window time.Duration

	// MinInterval is the minimum spacing between two consecutive calls.
	MinInterval time.Duration

	// MaxRetries is the number of additional attempts after the first failure.
	MaxRetries int

	// CallTimeout bounds a single attempt of the work unit.
	CallTimeout time.Duration

	// BaseBackoff and MaxBackoff shape the exponential retry delay.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// MaxWait is the longest the limiter will suspend a caller waiting for budget.
	MaxWait time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxRequests: DefaultMaxRequests,
		Window:      DefaultWindow,
		MinInterval: DefaultMinInterval,
		MaxRetries:  DefaultMaxRetries,
		CallTimeout: DefaultCallTimeout,
		BaseBackoff: DefaultBaseBackoff,
		MaxBackoff:  DefaultMaxBackoff,
		MaxWait:     DefaultMaxWait,
	}
}

// withDefaults fills zero durations and counts. MaxRetries and MinInterval
// keep explicit zero values.
func (c Config) withDefaults() Config {
	if c.MaxRequests <= 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.MinInterval < 0 {
		c.MinInterval = 0
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = DefaultBaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	return c
}

// Stats is a read-only snapshot of a Limiter.
type Stats struct {
	// RecentRequestCount is the number of calls still inside the window.
	RecentRequestCount int `json:"recent_request_count"`

	// Window is the sliding window duration.
	Window time.Duration `json:"window"`

	// CanMakeRequestNow is true when a call would start without waiting.
	CanMakeRequestNow bool `json:"can_make_request_now"`

	// NextAvailableTime is set when CanMakeRequestNow is false.
	NextAvailableTime *time.Time `json:"next_available_time,omitempty"`
}
