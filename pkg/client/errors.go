package client

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrorClass represents a classification of upstream HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors not covered below.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassAuth represents 401/403 responses.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassNotFound represents 404 responses.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures.
	ErrorClassNetwork ErrorClass = "network"
)

// Classify maps an HTTP status code to its ErrorClass.
func Classify(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrorClassAuth
	case status == http.StatusNotFound:
		return ErrorClassNotFound
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// APIError represents a non-2xx response or transport failure.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Class == ErrorClassNetwork {
		return fmt.Sprintf("pricing API request failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("pricing API %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the upstream status code, 0 for network errors.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// parseRetryAfter reads a Retry-After header given either as delta seconds
// or as an HTTP date. Returns 0 when absent or unparseable.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}

	return 0
}
