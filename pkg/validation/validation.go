// Package validation rejects malformed external input before it reaches the
// price pipeline: the user-facing days query parameter, decoded upstream
// payloads and pagination links.
package validation

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-openapi/strfmt"
)

// Sanity bounds for value_inc_vat. Negative prices are legitimate; values
// outside this range indicate a corrupt feed.
const (
	MinPriceIncVAT = -100.0
	MaxPriceIncVAT = 1000.0
)

// ValidationError reports bad user input for a named field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// DaysBounds configures ValidateDaysParameter.
type DaysBounds struct {
	Min     int
	Max     int
	Default int
}

// DefaultDaysBounds returns the bounds used by the dashboard query surface.
func DefaultDaysBounds() DaysBounds {
	return DaysBounds{Min: 1, Max: 30, Default: 3}
}

// QuickSelectDays are the day windows offered as quick-select options.
// Any other value inside DaysBounds is still accepted.
var QuickSelectDays = []int{1, 3, 7, 14, 30}

// ValidateDaysParameter parses the raw days query value. An empty value yields
// the default; non-numeric or out-of-range values fail with a ValidationError
// for field "days". The parsed value is never clamped.
func ValidateDaysParameter(raw string, bounds DaysBounds) (int, error) {
	if raw == "" {
		return bounds.Default, nil
	}

	days, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ValidationError{Field: "days", Message: fmt.Sprintf("%q is not a number", raw)}
	}

	if days < bounds.Min || days > bounds.Max {
		return 0, &ValidationError{
			Field:   "days",
			Message: fmt.Sprintf("must be between %d and %d, got %d", bounds.Min, bounds.Max, days),
		}
	}

	return days, nil
}

// ValidatePricePoint reports whether candidate, a decoded JSON object, is a
// usable unit rate record.
func ValidatePricePoint(candidate any) bool {
	obj, ok := candidate.(map[string]any)
	if !ok {
		return false
	}

	if _, ok := number(obj["value_exc_vat"]); !ok {
		return false
	}

	incVAT, ok := number(obj["value_inc_vat"])
	if !ok {
		return false
	}

	if !timestamp(obj["valid_from"]) || !timestamp(obj["valid_to"]) {
		return false
	}

	return incVAT >= MinPriceIncVAT && incVAT <= MaxPriceIncVAT
}

// ValidateAPIPage reports whether candidate, a decoded JSON object, is a
// well-formed page of unit rates. One bad record invalidates the whole page.
func ValidateAPIPage(candidate any) bool {
	obj, ok := candidate.(map[string]any)
	if !ok {
		return false
	}

	if _, ok := number(obj["count"]); !ok {
		return false
	}

	if !nullableString(obj, "next") || !nullableString(obj, "previous") {
		return false
	}

	results, ok := obj["results"].([]any)
	if !ok {
		return false
	}

	for _, r := range results {
		if !ValidatePricePoint(r) {
			return false
		}
	}

	return true
}

// ValidateURL reports whether rawURL uses https and points at exactly host.
func ValidateURL(rawURL, host string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "https" && host != "" && u.Host == host
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func timestamp(v any) bool {
	s, ok := v.(string)
	if !ok || s == "" {
		return false
	}
	_, err := strfmt.ParseDateTime(s)
	return err == nil
}

// nullableString requires key to be present and hold null or a string.
func nullableString(obj map[string]any, key string) bool {
	v, present := obj[key]
	if !present {
		return false
	}
	if v == nil {
		return true
	}
	_, ok := v.(string)
	return ok
}
