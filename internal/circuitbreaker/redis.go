package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// GuardedRedis wraps a Redis client with a breaker so session persistence
// degrades to the in-memory cache instead of stalling episodes when Redis is
// down.
type GuardedRedis struct {
	client *redis.Client
	b      *Breaker
}

// NewGuardedRedis wraps the given client. Settings follow the defaults but
// trip faster, since every episode step may touch the session store.
func NewGuardedRedis(client *redis.Client, logger *zap.Logger) *GuardedRedis {
	settings := DefaultSettings()
	settings.FailureThreshold = 3
	settings.Cooldown = 15 * time.Second
	return &GuardedRedis{
		client: client,
		b:      New("redis", settings, logger),
	}
}

// Ping checks connectivity through the breaker.
func (g *GuardedRedis) Ping(ctx context.Context) error {
	return g.b.Execute(ctx, func() error {
		return g.client.Ping(ctx).Err()
	})
}

// Get fetches a key. A missing key is not a breaker failure; it is reported
// as redis.Nil like the raw client does.
func (g *GuardedRedis) Get(ctx context.Context, key string) (string, error) {
	var val string
	missing := false
	err := g.b.Execute(ctx, func() error {
		v, err := g.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			missing = true
			return nil
		}
		val = v
		return err
	})
	if err != nil {
		return "", err
	}
	if missing {
		return "", redis.Nil
	}
	return val, nil
}

// Set stores a key with expiration.
func (g *GuardedRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return g.b.Execute(ctx, func() error {
		return g.client.Set(ctx, key, value, expiration).Err()
	})
}

// Del removes keys.
func (g *GuardedRedis) Del(ctx context.Context, keys ...string) error {
	return g.b.Execute(ctx, func() error {
		return g.client.Del(ctx, keys...).Err()
	})
}

// Open reports whether the breaker currently refuses requests.
func (g *GuardedRedis) Open() bool {
	return g.b.State() == StateOpen
}

// Close releases the underlying client.
func (g *GuardedRedis) Close() error {
	return g.client.Close()
}
