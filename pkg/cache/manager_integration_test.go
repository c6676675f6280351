//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedisContainer(t *testing.T) *redis.Client {
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

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})

	t.Cleanup(func() {
		client.Close()
		container.Terminate(ctx)
	})

	return client
}

func TestIntegration_ManagerExpiry(t *testing.T) {
	manager := NewManager(setupRedisContainer(t))
	ctx := context.Background()
	key := CacheKey{Host: "api.octopus.energy", Endpoint: "/v1/rates/"}

	entry := &CacheEntry{Data: []byte(`{}`), StatusCode: 200}
	entry.Refresh(time.Now(), time.Second, 2*time.Second)

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := manager.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.StatusCode != 200 {
		t.Errorf("StatusCode = %d", got.StatusCode)
	}

	time.Sleep(2500 * time.Millisecond)

	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss after retention, got %v", err)
	}
}
