package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrRetryExhausted is returned when all retry attempts are exhausted.
// It is joined with the last underlying error.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// RateLimitError reports an exhausted request budget, either locally or
// signalled by the upstream API.
type RateLimitError struct {
	Message string

	// RetryAfter is a hint for when to try again. Zero when unknown.
	RetryAfter time.Duration

	Err error
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit: %s (retry after %ds)", e.Message, e.RetryAfterSeconds())
	}
	return fmt.Sprintf("rate limit: %s", e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (e *RateLimitError) RetryAfterSeconds() int {
	secs := int(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// TimeoutError reports that a single attempt exceeded its deadline.
type TimeoutError struct {
	Message string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Timeout, e.Message)
}

// statusCoder is implemented by errors that carry an upstream HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// isRetryable classifies an attempt failure. Timeouts, rate limits,
// cancellation and explicit 401/403/404 responses are final.
func isRetryable(err error) bool {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return false
	}

	var toErr *TimeoutError
	if errors.As(err, &toErr) {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.HTTPStatus() {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return false
		}
	}

	return true
}

// errorClass labels an error for metrics.
func errorClass(err error) string {
	var rlErr *RateLimitError
	var toErr *TimeoutError
	var sc statusCoder
	switch {
	case errors.As(err, &rlErr):
		return "rate_limit"
	case errors.As(err, &toErr):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &sc):
		return fmt.Sprintf("http_%d", sc.HTTPStatus())
	default:
		return "generic"
	}
}
