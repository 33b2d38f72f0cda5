package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/gapline/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	limiter, err := NewAIActionLimiter(fxtest.NewLifecycle(t), config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, limiter.Enabled())

	ctx := context.Background()
	res, err := limiter.Allow(ctx, 1, 5)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	token, ok, err := limiter.TryLockAction(ctx, 1, "generate_playbook")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, token)
	assert.NoError(t, limiter.ReleaseAction(ctx, 1, "generate_playbook", token))
}

func TestNilLimiterIsDisabled(t *testing.T) {
	var limiter *AIActionLimiter
	res, err := limiter.Allow(context.Background(), 9, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestEnabledLimiterValidatesConfig(t *testing.T) {
	cases := map[string]config.RateLimitConfig{
		"missing addr": {Enabled: true, RedisAddr: " ", AIActionRate: 1, AIActionBurst: 1},
		"zero rate":    {Enabled: true, RedisAddr: "localhost:6379", AIActionRate: 0, AIActionBurst: 1},
		"zero burst":   {Enabled: true, RedisAddr: "localhost:6379", AIActionRate: 1, AIActionBurst: 0},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewAIActionLimiter(fxtest.NewLifecycle(t), config.Config{RateLimit: cfg}, zap.NewNop())
			require.Error(t, err)
			assert.True(t, errors.Is(err, config.ErrConfiguration))
		})
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "ai:action:tenant:42", TenantKey(42))
	assert.Equal(t, "ai:action:lock:42:draft_email", LockKey(42, " Draft_Email "))
}

func TestRetryAfter(t *testing.T) {
	assert.Zero(t, RetryAfter(true, 0, 1, 1))
	assert.Zero(t, RetryAfter(false, 0, 0, 1))
	assert.Equal(t, 2*time.Second, RetryAfter(false, 0, 0.5, 1))
	assert.Equal(t, 500*time.Millisecond, RetryAfter(false, 0.5, 1, 1))
	assert.Equal(t, 8*time.Second, RetryAfter(false, 1, 0.5, 5))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 40*time.Second, bucketTTL(0.5, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestScriptReplyConversion(t *testing.T) {
	assert.EqualValues(t, 1, toInt64(int64(1)))
	assert.EqualValues(t, 7, toInt64("7"))
	assert.Zero(t, toInt64(3.9))
	assert.InDelta(t, 2.5, toFloat64("2.5"), 1e-9)
	assert.InDelta(t, 4, toFloat64(int64(4)), 1e-9)
	assert.Zero(t, toFloat64("nope"))
}

func TestTakeValidatesArguments(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Take(context.Background(), "k", 1, 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
