package external

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mito-cohort-pipeline/internal/domain"
)

func TestNewRedisNameCache_InvalidURL(t *testing.T) {
	_, err := NewRedisNameCache(domain.CacheConfig{RedisURL: "not-a-url"})
	assert.Error(t, err)
}

func TestRedisNameCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}

	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}()

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	cache, err := NewRedisNameCache(domain.CacheConfig{
		RedisURL:    fmt.Sprintf("redis://%s:%s/0", host, port.Port()),
		TTL:         time.Minute,
		PoolSize:    5,
		PoolTimeout: 5 * time.Second,
		MaxRetries:  1,
	})
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Ping(ctx))

	_, ok, err := cache.Get(ctx, "HP:0001250")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "HP:0001250", "Seizure", 0))
	require.NoError(t, cache.Set(ctx, "HP:0000001", "", time.Minute))

	name, ok, err := cache.Get(ctx, "HP:0001250")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Seizure", name)

	name, ok, err = cache.Get(ctx, "HP:0000001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, name)

	require.NoError(t, cache.Invalidate(ctx, "HP:0001250"))
	_, ok, err = cache.Get(ctx, "HP:0001250")
	require.NoError(t, err)
	assert.False(t, ok)
}
