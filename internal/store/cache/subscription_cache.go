// Package cache provides Redis-backed read-through caches.
//
// Subscription status is stored as:
//
//	Key:   paid:<identity>
//	Value: "1" or "0"
//	TTL:   configured cache lifetime
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const paidPrefix = "paid:"

// PaidTierSource is the authoritative subscription lookup.
type PaidTierSource interface {
	IsPaidTier(ctx context.Context, identity string) (bool, error)
}

// SubscriptionCache caches PaidTierSource answers in Redis. Redis failures
// fall through to the source.
type SubscriptionCache struct {
	client *redis.Client
	source PaidTierSource
	ttl    time.Duration
	log    *zap.Logger
}

func NewSubscriptionCache(client *redis.Client, source PaidTierSource, ttl time.Duration, log *zap.Logger) *SubscriptionCache {
	return &SubscriptionCache{client: client, source: source, ttl: ttl, log: log}
}

func (c *SubscriptionCache) IsPaidTier(ctx context.Context, identity string) (bool, error) {
	key := paidPrefix + identity

	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return val == "1", nil
	case !errors.Is(err, redis.Nil):
		c.log.Warn("subscription cache read failed", zap.String("identity", identity), zap.Error(err))
	}

	paid, err := c.source.IsPaidTier(ctx, identity)
	if err != nil {
		return false, err
	}

	v := "0"
	if paid {
		v = "1"
	}
	if err := c.client.Set(ctx, key, v, c.ttl).Err(); err != nil {
		c.log.Warn("subscription cache write failed", zap.String("identity", identity), zap.Error(err))
	}
	return paid, nil
}

// Invalidate drops the cached answer for identity.
func (c *SubscriptionCache) Invalidate(ctx context.Context, identity string) error {
	return c.client.Del(ctx, paidPrefix+identity).Err()
}
