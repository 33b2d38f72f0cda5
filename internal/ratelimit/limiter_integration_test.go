//go:build integration

package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/gapline/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestBurstIsEnforcedPerTenant(t *testing.T) {
	client := startRedis(t)
	limiter := newAIActionLimiter(client, config.RateLimitConfig{AIActionRate: 0.01, AIActionBurst: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, 1, 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := limiter.Allow(ctx, 1, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)

	other, err := limiter.Allow(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestExpensiveActionsDrainFaster(t *testing.T) {
	client := startRedis(t)
	limiter := newAIActionLimiter(client, config.RateLimitConfig{AIActionRate: 0.01, AIActionBurst: 10})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, 1, 5)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := limiter.Allow(ctx, 1, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestActionLockIsExclusive(t *testing.T) {
	client := startRedis(t)
	limiter := newAIActionLimiter(client, config.RateLimitConfig{AIActionRate: 1, AIActionBurst: 1, AIActionLockTTLSeconds: 5})
	ctx := context.Background()

	token, ok, err := limiter.TryLockAction(ctx, 1, "generate_playbook")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = limiter.TryLockAction(ctx, 1, "generate_playbook")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, limiter.ReleaseAction(ctx, 1, "generate_playbook", token))
	_, ok, err = limiter.TryLockAction(ctx, 1, "generate_playbook")
	require.NoError(t, err)
	assert.True(t, ok)
}
