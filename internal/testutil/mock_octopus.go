// Package testutil provides a mock pricing API for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// RatesPath is the standard-unit-rates path for the default tariff.
const RatesPath = "/v1/products/AGILE-24-10-01/electricity-tariffs/E-1R-AGILE-24-10-01-C/standard-unit-rates/"

// Rate is one half-hour rate served by the mock.
type Rate struct {
	ValueExcVAT float64
	ValueIncVAT float64
	ValidFrom   time.Time
	ValidTo     time.Time
}

// MarshalJSON renders the rate the way the pricing API does.
func (r Rate) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"value_exc_vat": r.ValueExcVAT,
		"value_inc_vat": r.ValueIncVAT,
		"valid_from":    r.ValidFrom.UTC().Format(time.RFC3339),
		"valid_to":      r.ValidTo.UTC().Format(time.RFC3339),
	})
}

// SlotRates builds n consecutive half-hour rates starting at start.
// value returns the inc-VAT price for slot i; exc-VAT is derived at 5% VAT.
func SlotRates(start time.Time, n int, value func(i int) float64) []Rate {
	rates := make([]Rate, n)
	for i := range rates {
		from := start.Add(time.Duration(i) * 30 * time.Minute)
		inc := value(i)
		rates[i] = Rate{
			ValueExcVAT: inc / 1.05,
			ValueIncVAT: inc,
			ValidFrom:   from,
			ValidTo:     from.Add(30 * time.Minute),
		}
	}
	return rates
}

// MockResponse defines a fixed response for a path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOctopus is a TLS mock of the pricing API. The rates endpoint pages
// through the configured rates using absolute next links.
type MockOctopus struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	rates    []Rate
	pageSize int
	nextURL  string
	etag     string

	requestCount     int
	conditionalCount int
	lastQuery        url.Values
}

// NewMockOctopus starts a mock server serving no rates.
func NewMockOctopus() *MockOctopus {
	mock := &MockOctopus{
		handlers: make(map[string]http.HandlerFunc),
		pageSize: 100,
	}

	mock.server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.lastQuery = r.URL.Query()
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.conditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		if r.URL.Path == RatesPath {
			mock.ratesHandler(w, r)
			return
		}

		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the server root URL.
func (m *MockOctopus) URL() string {
	return m.server.URL
}

// BaseURL returns the API base URL including the version prefix.
func (m *MockOctopus) BaseURL() string {
	return m.server.URL + "/v1"
}

// Client returns an HTTP client that trusts the mock's certificate.
func (m *MockOctopus) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockOctopus) Close() {
	m.server.Close()
}

// SetRates replaces the served rates, split into pages of pageSize.
func (m *MockOctopus) SetRates(rates []Rate, pageSize int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates = rates
	if pageSize > 0 {
		m.pageSize = pageSize
	}
}

// SetNextURL forces every page except the last to link to next.
func (m *MockOctopus) SetNextURL(next string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextURL = next
}

// SetETag makes the rates endpoint answer If-None-Match with 304.
func (m *MockOctopus) SetETag(etag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etag = etag
}

// SetHandler overrides the handler for a path.
func (m *MockOctopus) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockOctopus) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests received.
func (m *MockOctopus) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// ConditionalCount returns the number of conditional requests received.
func (m *MockOctopus) ConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditionalCount
}

// LastQuery returns the query of the most recent request.
func (m *MockOctopus) LastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

func (m *MockOctopus) ratesHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	rates := m.rates
	pageSize := m.pageSize
	forcedNext := m.nextURL
	etag := m.etag
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")

	if etag != "" {
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}

	start := (page - 1) * pageSize
	if start > len(rates) {
		start = len(rates)
	}
	end := start + pageSize
	if end > len(rates) {
		end = len(rates)
	}

	var next, previous *string
	if end < len(rates) {
		link := forcedNext
		if link == "" {
			query := r.URL.Query()
			query.Set("page", strconv.Itoa(page+1))
			link = fmt.Sprintf("%s%s?%s", m.server.URL, RatesPath, query.Encode())
		}
		next = &link
	}
	if page > 1 {
		query := r.URL.Query()
		query.Set("page", strconv.Itoa(page-1))
		link := fmt.Sprintf("%s%s?%s", m.server.URL, RatesPath, query.Encode())
		previous = &link
	}

	results := []Rate{}
	if len(rates) > 0 {
		results = rates[start:end]
	}

	json.NewEncoder(w).Encode(map[string]any{
		"count":    len(rates),
		"next":     next,
		"previous": previous,
		"results":  results,
	})
}
