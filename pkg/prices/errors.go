package prices

import (
	"context"
	"errors"
	"fmt"

	"github.com/stuartb55/octopusagile/pkg/client"
	"github.com/stuartb55/octopusagile/pkg/ratelimit"
)

// ErrInvalidFormat is returned when an upstream page fails shape validation.
var ErrInvalidFormat = errors.New("invalid data format")

// NoCurrentPriceMessage is reported when no fetched period contains now.
const NoCurrentPriceMessage = "No current price found"

// errorMessage maps a fetch failure to the single sentence shown to users.
func errorMessage(err error) string {
	var (
		rlErr  *ratelimit.RateLimitError
		toErr  *ratelimit.TimeoutError
		apiErr *client.APIError
	)

	switch {
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.", rlErr.RetryAfterSeconds())
		}
		return "Rate limit exceeded. Please try again later."
	case errors.As(err, &toErr):
		return "Request timed out. Please try again."
	case errors.Is(err, ErrInvalidFormat):
		return "Received invalid data from the pricing API."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Request was cancelled before prices were loaded."
	case errors.As(err, &apiErr):
		switch apiErr.Class {
		case client.ErrorClassAuth:
			return fmt.Sprintf("Access to the pricing API was denied (status %d).", apiErr.StatusCode)
		case client.ErrorClassNotFound:
			return "Pricing data was not found for the configured tariff."
		case client.ErrorClassServer:
			return fmt.Sprintf("The pricing API is currently unavailable (status %d).", apiErr.StatusCode)
		case client.ErrorClassNetwork:
			return "Could not reach the pricing API."
		default:
			return fmt.Sprintf("The pricing API rejected the request (status %d).", apiErr.StatusCode)
		}
	default:
		return "Failed to fetch energy prices."
	}
}

// errorKind labels a fetch failure for metrics.
func errorKind(err error) string {
	var (
		rlErr  *ratelimit.RateLimitError
		toErr  *ratelimit.TimeoutError
		apiErr *client.APIError
	)

	switch {
	case errors.As(err, &rlErr):
		return "rate_limit"
	case errors.As(err, &toErr):
		return "timeout"
	case errors.Is(err, ErrInvalidFormat):
		return "format"
	case errors.As(err, &apiErr):
		return string(apiErr.Class)
	default:
		return "generic"
	}
}
