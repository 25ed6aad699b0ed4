package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache implements ports.IdempotencyCache using Redis. It fronts
// the durable idempotency_keys table: a hit replays the stored response
// without touching PostgreSQL.
type IdempotencyCache struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: "idem:",
	}
}

func (c *IdempotencyCache) key(merchantID uuid.UUID, key string) string {
	return c.prefix + merchantID.String() + ":" + key
}

// Get retrieves a cached response by merchant and idempotency key.
// Returns nil, nil if the key does not exist.
func (c *IdempotencyCache) Get(ctx context.Context, merchantID uuid.UUID, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(merchantID, key)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}
	return val, nil
}

// Set stores a response in the idempotency cache with TTL.
func (c *IdempotencyCache) Set(ctx context.Context, merchantID uuid.UUID, key string, response []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(merchantID, key), response, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}

func (c *IdempotencyCache) inflightKey(merchantID uuid.UUID, key string) string {
	return c.prefix + "inflight:" + merchantID.String() + ":" + key
}

// Reserve claims the in-flight marker with SET NX. The first caller wins;
// a concurrent duplicate sees false and backs off instead of racing the
// insert into a unique-key violation.
func (c *IdempotencyCache) Reserve(ctx context.Context, merchantID uuid.UUID, key string, ttl time.Duration) (bool, error) {
	result, err := c.client.SetArgs(ctx, c.inflightKey(merchantID, key), 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists, the claim is held elsewhere.
			return false, nil
		}
		return false, fmt.Errorf("redis idempotency reserve: %w", err)
	}
	return result == "OK", nil
}

// Unreserve drops the in-flight marker.
func (c *IdempotencyCache) Unreserve(ctx context.Context, merchantID uuid.UUID, key string) error {
	if err := c.client.Del(ctx, c.inflightKey(merchantID, key)).Err(); err != nil {
		return fmt.Errorf("redis idempotency unreserve: %w", err)
	}
	return nil
}
