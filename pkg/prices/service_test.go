package prices

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stuartb55/octopusagile/internal/testutil"
	"github.com/stuartb55/octopusagile/pkg/client"
	"github.com/stuartb55/octopusagile/pkg/ratelimit"
)

var fixedNow = time.Date(2025, 1, 15, 10, 20, 0, 0, time.UTC)

func newTestService(t *testing.T, mock *testutil.MockOctopus, tweak func(*ratelimit.Config)) *Service {
	t.Helper()

	c, err := client.New(client.DefaultConfig("agile-test/1.0"))
	require.NoError(t, err)
	c.SetHTTPClient(mock.Client())

	rlCfg := ratelimit.Config{
		MaxRequests: 100,
		Window:      time.Minute,
		MaxRetries:  0,
		CallTimeout: 5 * time.Second,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
	}
	if tweak != nil {
		tweak(&rlCfg)
	}
	limiter := ratelimit.New("test", rlCfg, zerolog.Nop())

	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.BaseURL = mock.BaseURL()
	cfg.Revalidate = 0
	cfg.Location = london

	svc, err := NewService(c, limiter, cfg)
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func flat(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

func TestNewService_Validation(t *testing.T) {
	limiter := ratelimit.New("test", ratelimit.DefaultConfig(), zerolog.Nop())
	c, _ := client.New(client.DefaultConfig("agile-test/1.0"))

	_, err := NewService(nil, limiter, DefaultConfig())
	assert.Error(t, err)

	_, err = NewService(c, nil, DefaultConfig())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.BaseURL = "http://api.octopus.energy/v1"
	_, err = NewService(c, limiter, cfg)
	assert.Error(t, err, "plain http base url must be rejected")
}

func TestService_ClampDays(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	svc := newTestService(t, mock, nil)

	tests := []struct{ in, want int }{
		{-5, 1}, {0, 1}, {1, 1}, {14, 14}, {30, 30}, {31, 30}, {500, 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, svc.ClampDays(tt.in), "ClampDays(%d)", tt.in)
	}
}

func TestService_Window(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	svc := newTestService(t, mock, nil)

	t.Run("winter", func(t *testing.T) {
		from, to := svc.Window(3)
		assert.Equal(t, "2025-01-12T00:00:00.000Z", from.UTC().Format(isoLayout))
		assert.Equal(t, "2025-01-16T23:59:59.999Z", to.UTC().Format(isoLayout))
	})

	t.Run("summer time", func(t *testing.T) {
		svc.now = func() time.Time { return time.Date(2025, 7, 15, 9, 0, 0, 0, time.UTC) }
		defer func() { svc.now = func() time.Time { return fixedNow } }()

		from, to := svc.Window(1)
		assert.Equal(t, "2025-07-13T23:00:00.000Z", from.UTC().Format(isoLayout))
		assert.Equal(t, "2025-07-16T22:59:59.999Z", to.UTC().Format(isoLayout))
	})
}

func TestService_RatesURL(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	svc := newTestService(t, mock, nil)

	from, to := svc.Window(1)
	got := svc.RatesURL(from, to)
	want := mock.URL() + testutil.RatesPath +
		"?period_from=2025-01-14T00%3A00%3A00.000Z&period_to=2025-01-16T23%3A59%3A59.999Z"
	assert.Equal(t, want, got)
}

func TestGetEnergyPrices_FollowsPages(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	mock.SetRates(testutil.SlotRates(fixedNow.Truncate(24*time.Hour), 120, flat(15)), 50)

	svc := newTestService(t, mock, nil)
	result := svc.GetEnergyPrices(context.Background(), 3)

	require.True(t, result.OK(), result.Error)
	assert.Len(t, result.Data, 120)
	assert.Equal(t, 3, mock.RequestCount())
	assert.Equal(t, "2025-01-12T00:00:00.000Z", mock.LastQuery().Get("period_from"))
	assert.False(t, result.IsLoading)
}

func TestGetEnergyPrices_EmptyIsSuccess(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()

	result := newTestService(t, mock, nil).GetEnergyPrices(context.Background(), 1)

	require.True(t, result.OK())
	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Data)
}

func TestGetEnergyPrices_ForeignNextStopsSilently(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	mock.SetRates(testutil.SlotRates(fixedNow, 96, flat(20)), 48)
	mock.SetNextURL("https://evil.example/v1/next")

	result := newTestService(t, mock, nil).GetEnergyPrices(context.Background(), 1)

	require.True(t, result.OK(), result.Error)
	assert.Len(t, result.Data, 48)
	assert.Equal(t, 1, mock.RequestCount())
}

func TestGetEnergyPrices_InvalidPage(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	mock.SetResponse(testutil.RatesPath, testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body: `{"count":1,"next":null,"previous":null,"results":[
			{"value_exc_vat":4761.9,"value_inc_vat":5000,"valid_from":"2025-01-15T00:00:00Z","valid_to":"2025-01-15T00:30:00Z"}]}`,
	})

	result := newTestService(t, mock, nil).GetEnergyPrices(context.Background(), 1)

	assert.False(t, result.OK())
	assert.Nil(t, result.Data)
	assert.Equal(t, "Received invalid data from the pricing API.", result.Error)
}

func TestGetEnergyPrices_StatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		resp     testutil.MockResponse
		requests int
		message  string
	}{
		{
			name:     "rate limited upstream",
			resp:     testutil.MockResponse{StatusCode: http.StatusTooManyRequests, Headers: map[string]string{"Retry-After": "30"}},
			requests: 1,
			message:  "Rate limit exceeded. Please try again in 30 seconds.",
		},
		{
			name:     "not found is final",
			resp:     testutil.MockResponse{StatusCode: http.StatusNotFound},
			requests: 1,
			message:  "Pricing data was not found for the configured tariff.",
		},
		{
			name:     "forbidden is final",
			resp:     testutil.MockResponse{StatusCode: http.StatusForbidden},
			requests: 1,
			message:  "Access to the pricing API was denied (status 403).",
		},
		{
			name:     "server error is retried",
			resp:     testutil.MockResponse{StatusCode: http.StatusServiceUnavailable},
			requests: 3,
			message:  "The pricing API is currently unavailable (status 503).",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockOctopus()
			defer mock.Close()
			mock.SetResponse(testutil.RatesPath, tt.resp)

			svc := newTestService(t, mock, func(c *ratelimit.Config) { c.MaxRetries = 2 })
			result := svc.GetEnergyPrices(context.Background(), 1)

			assert.False(t, result.OK())
			assert.Equal(t, tt.message, result.Error)
			assert.Equal(t, tt.requests, mock.RequestCount())
		})
	}
}

func TestGetEnergyPrices_Timeout(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	mock.SetResponse(testutil.RatesPath, testutil.MockResponse{StatusCode: http.StatusOK, Delay: 3 * time.Second})

	svc := newTestService(t, mock, func(c *ratelimit.Config) {
		c.CallTimeout = 300 * time.Millisecond
		c.MaxRetries = 3
	})
	result := svc.GetEnergyPrices(context.Background(), 1)

	assert.Equal(t, "Request timed out. Please try again.", result.Error)
	assert.Equal(t, 1, mock.RequestCount())
}

func TestGetCurrentPrice(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	mock.SetRates(testutil.SlotRates(start, 48, func(i int) float64 { return float64(i) }), 100)

	result := newTestService(t, mock, nil).GetCurrentPrice(context.Background())

	require.True(t, result.OK(), result.Error)
	// 10:20 falls in the 10:00 slot, index 20
	assert.Equal(t, 20.0, result.Data.ValueIncVAT)
	assert.Equal(t, time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC), result.Data.ValidFrom.UTC())
}

func TestGetCurrentPrice_NoneMatches(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	mock.SetRates(testutil.SlotRates(fixedNow.Add(time.Hour), 4, flat(10)), 100)

	result := newTestService(t, mock, nil).GetCurrentPrice(context.Background())

	assert.Nil(t, result.Data)
	assert.Equal(t, NoCurrentPriceMessage, result.Error)
}

func TestGetCurrentPrice_PropagatesFetchError(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	mock.SetResponse(testutil.RatesPath, testutil.MockResponse{StatusCode: http.StatusNotFound})

	result := newTestService(t, mock, nil).GetCurrentPrice(context.Background())

	assert.Nil(t, result.Data)
	assert.Equal(t, "Pricing data was not found for the configured tariff.", result.Error)
}

func TestCycle_MemoizesByDays(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	mock.SetRates(testutil.SlotRates(fixedNow, 10, flat(12)), 100)

	svc := newTestService(t, mock, nil)
	cycle := svc.NewCycle()
	ctx := context.Background()

	first := cycle.GetEnergyPrices(ctx, 1)
	second := cycle.GetEnergyPrices(ctx, 0) // clamps to 1
	cycle.GetCurrentPrice(ctx)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, mock.RequestCount())

	cycle.GetEnergyPrices(ctx, 7)
	assert.Equal(t, 2, mock.RequestCount())

	cycle.Reset()
	cycle.GetEnergyPrices(ctx, 1)
	assert.Equal(t, 3, mock.RequestCount())
}

func TestCycle_ConcurrentCallersShareFetch(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	mock.SetRates(testutil.SlotRates(fixedNow, 10, flat(12)), 100)

	cycle := newTestService(t, mock, nil).NewCycle()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cycle.GetEnergyPrices(context.Background(), 3)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, mock.RequestCount())
}

func TestCycle_DistinctCyclesDoNotShare(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()

	svc := newTestService(t, mock, nil)
	a, b := svc.NewCycle(), svc.NewCycle()

	assert.NotEqual(t, a.ID, b.ID)
	a.GetEnergyPrices(context.Background(), 1)
	b.GetEnergyPrices(context.Background(), 1)
	assert.Equal(t, 2, mock.RequestCount())
}

func TestFetchResult_MarshalJSON(t *testing.T) {
	ok, err := json.Marshal(Succeeded([]PricePoint{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"error":null,"isLoading":false}`, string(ok))

	failed, err := json.Marshal(Failed[[]PricePoint]("boom"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":null,"error":"boom","isLoading":false}`, string(failed))
}
