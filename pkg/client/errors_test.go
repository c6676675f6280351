package client

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{400, ErrorClassClient},
		{401, ErrorClassAuth},
		{403, ErrorClassAuth},
		{404, ErrorClassNotFound},
		{418, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			if got := Classify(tt.status); got != tt.expected {
				t.Errorf("Classify(%d) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 503, Class: ErrorClassServer, Message: "Service Unavailable"}

	if got, want := err.Error(), "pricing API server error (status 503): Service Unavailable"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if err.HTTPStatus() != 503 {
		t.Errorf("HTTPStatus() = %d", err.HTTPStatus())
	}

	cause := errors.New("connection refused")
	netErr := &APIError{Class: ErrorClassNetwork, Message: "GET /v1", Err: cause}
	if !errors.Is(netErr, cause) {
		t.Error("network APIError should unwrap to its cause")
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "30", 30 * time.Second},
		{"negative", "-5", 0},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"past date", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"garbage", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.value, now); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
