//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client := Wrap(goredis.NewClient(&goredis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())}))
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.HealthCheck(ctx))
	return client
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(startRedis(t))
	key := "ratelimit:127.0.0.1:/v1/imports/story"

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}
	allowed, err := limiter.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	remaining, err := limiter.Remaining(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	require.NoError(t, limiter.Reset(ctx, key))
	remaining, err = limiter.Remaining(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}
