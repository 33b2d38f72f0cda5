package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	redis "github.com/redis/go-redis/v9"
)

// Only the holder's token may delete the key, so a slow request whose lock already
// expired cannot release a newer holder's claim.
var releaseIfHolder = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// actionLocks claims one in-flight run of an AI action per tenant.
type actionLocks struct {
	client redis.Cmdable
	ttl    time.Duration
}

func (l actionLocks) claim(ctx context.Context, key string) (string, bool, error) {
	if l.client == nil {
		return "", false, ErrNotConfigured
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}

	token := ulid.Make().String()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l actionLocks) release(ctx context.Context, key, token string) error {
	if l.client == nil || key == "" || token == "" {
		return nil
	}
	return releaseIfHolder.Run(ctx, l.client, []string{key}, token).Err()
}
