package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/gapline/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyAIActionTenant = "ai:action:tenant:%s"
	keyAIActionLock   = "ai:action:lock:%s:%s"
)

var (
	ErrNotConfigured = errors.New("rate_limiter_not_configured")
	// ErrUnavailable wraps redis failures so callers can answer 503.
	ErrUnavailable = errors.New("rate_limiter_unavailable")
)

// AIActionLimiter bounds bursts of AI actions per tenant and serializes the same
// action for one tenant. A disabled limiter allows everything.
type AIActionLimiter struct {
	enabled bool

	bucket *TokenBucket
	locks  actionLocks
	rate   float64
	burst  int
}

func NewAIActionLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*AIActionLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		log.Named("ratelimit").Info("ai action rate limiting disabled")
		return &AIActionLimiter{}, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, fmt.Errorf("%w: rate limit redis addr is required", config.ErrConfiguration)
	}
	if limitCfg.AIActionRate <= 0 || limitCfg.AIActionBurst <= 0 {
		return nil, fmt.Errorf("%w: ai action rate limit must be positive", config.ErrConfiguration)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return newAIActionLimiter(client, limitCfg), nil
}

func newAIActionLimiter(client redis.Cmdable, cfg config.RateLimitConfig) *AIActionLimiter {
	lockTTL := time.Duration(cfg.AIActionLockTTLSeconds) * time.Second
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	return &AIActionLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locks:   actionLocks{client: client, ttl: lockTTL},
		rate:    cfg.AIActionRate,
		burst:   cfg.AIActionBurst,
	}
}

func (l *AIActionLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow spends cost tokens (the action's credit cost) from the tenant's bucket.
func (l *AIActionLimiter) Allow(ctx context.Context, tenantID snowflake.ID, cost int) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	res, err := l.bucket.Take(ctx, TenantKey(tenantID), l.rate, l.burst, cost)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res, nil
}

// TryLockAction claims the action for the tenant until released or the TTL passes.
func (l *AIActionLimiter) TryLockAction(ctx context.Context, tenantID snowflake.ID, action string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	token, ok, err := l.locks.claim(ctx, LockKey(tenantID, action))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return token, ok, nil
}

func (l *AIActionLimiter) ReleaseAction(ctx context.Context, tenantID snowflake.ID, action, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locks.release(ctx, LockKey(tenantID, action), token)
}

func TenantKey(tenantID snowflake.ID) string {
	return fmt.Sprintf(keyAIActionTenant, tenantID.String())
}

func LockKey(tenantID snowflake.ID, action string) string {
	return fmt.Sprintf(keyAIActionLock, tenantID.String(), strings.ToLower(strings.TrimSpace(action)))
}
