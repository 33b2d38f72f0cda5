package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// The bucket refills at ARGV[1] tokens per second up to ARGV[2] and a request takes
// ARGV[4] tokens at once, so expensive AI actions drain it faster than cheap ones.
// Remaining tokens are returned as a string to keep the fraction.
const weightedBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local t = redis.call("TIME")
local now = (t[1] * 1000) + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
if now > ts then
  tokens = math.min(burst, tokens + ((now - ts) / 1000) * rate)
end

local allowed = 0
if tokens >= cost then
  allowed = 1
  tokens = tokens - cost
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {allowed, tostring(tokens), now}
`

type TokenBucket struct {
	client redis.Scripter
	script *redis.Script
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

func NewTokenBucket(client redis.Scripter) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client, script: redis.NewScript(weightedBucketScript)}
}

// Take removes cost tokens from the bucket at key. A cost above burst is clamped to
// burst so the action is still possible from a full bucket.
func (t *TokenBucket) Take(ctx context.Context, key string, rate float64, burst, cost int) (*RateLimitResult, error) {
	switch {
	case t == nil || t.client == nil:
		return nil, ErrNotConfigured
	case key == "":
		return nil, errors.New("rate limiter key is empty")
	case rate <= 0 || burst <= 0:
		return nil, errors.New("rate limiter rate and burst must be positive")
	}
	cost = min(max(cost, 1), burst)

	raw, err := t.script.Run(ctx, t.client, []string{key},
		rate, burst, bucketTTL(rate, burst).Milliseconds(), cost,
	).Slice()
	if err != nil {
		return nil, err
	}
	if len(raw) != 3 {
		return nil, errors.New("invalid rate limit script response")
	}

	allowed := toInt64(raw[0]) == 1
	remaining := toFloat64(raw[1])
	retryAfter := RetryAfter(allowed, remaining, rate, cost)
	return &RateLimitResult{
		Allowed:    allowed,
		Limit:      burst,
		Remaining:  int(remaining),
		ResetTime:  time.UnixMilli(toInt64(raw[2])).Add(retryAfter),
		RetryAfter: retryAfter,
	}, nil
}

// RetryAfter is how long the bucket needs to refill enough for cost.
func RetryAfter(allowed bool, remaining, rate float64, cost int) time.Duration {
	if allowed || rate <= 0 {
		return 0
	}
	missing := float64(cost) - remaining
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / rate * float64(time.Second))
}

// bucketTTL lets an idle bucket expire once it would have refilled twice over.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Max(1, math.Ceil(2*float64(burst)/rate))
	return time.Duration(seconds) * time.Second
}

func toInt64(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch val := v.(type) {
	case int64:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
