//go:build integration

package prices

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/stuartb55/octopusagile/internal/testutil"
	"github.com/stuartb55/octopusagile/pkg/cache"
	"github.com/stuartb55/octopusagile/pkg/client"
	"github.com/stuartb55/octopusagile/pkg/ratelimit"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(ctx)
	})

	return redisClient
}

// newCachedService builds a service whose transport is backed by Redis.
func newCachedService(t *testing.T, mock *testutil.MockOctopus, revalidate time.Duration, retries int) *Service {
	t.Helper()

	cfg := client.DefaultConfig("agile-integration/1.0")
	cfg.Cache = cache.NewManager(setupRedis(t))
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	c.SetHTTPClient(mock.Client())

	limiter := ratelimit.New("integration", ratelimit.Config{
		MaxRequests: 100,
		Window:      time.Minute,
		MaxRetries:  retries,
		CallTimeout: 5 * time.Second,
		BaseBackoff: 10 * time.Millisecond,
		MaxBackoff:  50 * time.Millisecond,
	}, zerolog.Nop())

	pricesCfg := DefaultConfig()
	pricesCfg.BaseURL = mock.BaseURL()
	pricesCfg.Revalidate = revalidate

	svc, err := NewService(c, limiter, pricesCfg)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	svc.now = func() time.Time { return fixedNow }
	return svc
}

// TestIntegration_FullRequestFlow covers limiter, cache miss, upstream and
// cache store, then a fresh cache hit on the next cycle.
func TestIntegration_FullRequestFlow(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	mock.SetRates(testutil.SlotRates(fixedNow.Truncate(24*time.Hour), 96, flat(12.5)), 48)

	svc := newCachedService(t, mock, time.Minute, 0)
	ctx := context.Background()

	first := svc.NewCycle().GetEnergyPrices(ctx, 1)
	if !first.OK() {
		t.Fatalf("first fetch failed: %s", first.Error)
	}
	if len(first.Data) != 96 {
		t.Errorf("first fetch points = %d, want 96", len(first.Data))
	}
	if mock.RequestCount() != 2 {
		t.Errorf("after first fetch: upstream requests = %d, want 2", mock.RequestCount())
	}

	second := svc.NewCycle().GetEnergyPrices(ctx, 1)
	if !second.OK() {
		t.Fatalf("second fetch failed: %s", second.Error)
	}
	if len(second.Data) != 96 {
		t.Errorf("second fetch points = %d, want 96", len(second.Data))
	}
	if mock.RequestCount() != 2 {
		t.Errorf("after second fetch: upstream requests = %d, want 2 (served from cache)", mock.RequestCount())
	}
}

// TestIntegration_NotModified revalidates stale entries with If-None-Match.
func TestIntegration_NotModified(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	mock.SetRates(testutil.SlotRates(fixedNow.Truncate(24*time.Hour), 48, flat(20)), 48)
	mock.SetETag(`"rates-v1"`)

	svc := newCachedService(t, mock, 200*time.Millisecond, 0)
	ctx := context.Background()

	if result := svc.GetEnergyPrices(ctx, 1); !result.OK() {
		t.Fatalf("first fetch failed: %s", result.Error)
	}

	time.Sleep(300 * time.Millisecond)

	result := svc.GetEnergyPrices(ctx, 1)
	if !result.OK() {
		t.Fatalf("revalidated fetch failed: %s", result.Error)
	}
	if len(result.Data) != 48 {
		t.Errorf("revalidated points = %d, want 48", len(result.Data))
	}
	if mock.RequestCount() != 2 {
		t.Errorf("upstream requests = %d, want 2", mock.RequestCount())
	}
	if mock.ConditionalCount() != 1 {
		t.Errorf("conditional requests = %d, want 1", mock.ConditionalCount())
	}
}

// TestIntegration_Retry5xxErrors verifies server errors are retried and
// nothing is cached.
func TestIntegration_Retry5xxErrors(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	mock.SetResponse(testutil.RatesPath, testutil.MockResponse{StatusCode: http.StatusBadGateway})

	svc := newCachedService(t, mock, time.Minute, 2)

	result := svc.GetEnergyPrices(context.Background(), 1)
	if result.OK() {
		t.Fatal("expected failure")
	}
	if want := "The pricing API is currently unavailable (status 502)."; result.Error != want {
		t.Errorf("error = %q, want %q", result.Error, want)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("upstream requests = %d, want 3", mock.RequestCount())
	}
}

// TestIntegration_NoRetry4xxErrors verifies 404 is final.
func TestIntegration_NoRetry4xxErrors(t *testing.T) {
	mock := testutil.NewMockOctopus()
	defer mock.Close()
	mock.SetResponse(testutil.RatesPath, testutil.MockResponse{StatusCode: http.StatusNotFound})

	svc := newCachedService(t, mock, time.Minute, 3)

	if result := svc.GetEnergyPrices(context.Background(), 1); result.OK() {
		t.Fatal("expected failure")
	}
	if mock.RequestCount() != 1 {
		t.Errorf("upstream requests = %d, want 1", mock.RequestCount())
	}
}
