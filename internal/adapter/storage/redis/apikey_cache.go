package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payflow/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// cachedKey is the envelope stored per key_id. Both the key and its owning
// merchant travel together so a cache hit needs no database round trip.
type cachedKey struct {
	Key      *domain.ApiKey   `json:"key"`
	Merchant *domain.Merchant `json:"merchant"`
}

// ApiKeyCache implements ports.ApiKeyCache using Redis.
type ApiKeyCache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewApiKeyCache creates a new Redis-backed API key cache.
func NewApiKeyCache(client *goredis.Client, ttl time.Duration) *ApiKeyCache {
	return &ApiKeyCache{
		client: client,
		prefix: "apikey:",
		ttl:    ttl,
	}
}

// Get retrieves a cached key and merchant by key_id.
// Returns nil, nil, nil if the key is not cached.
func (c *ApiKeyCache) Get(ctx context.Context, keyID string) (*domain.ApiKey, *domain.Merchant, error) {
	val, err := c.client.Get(ctx, c.prefix+keyID).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("redis apikey get: %w", err)
	}

	var entry cachedKey
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, nil, fmt.Errorf("decode cached apikey: %w", err)
	}
	return entry.Key, entry.Merchant, nil
}

// Set caches a resolved key with its merchant.
func (c *ApiKeyCache) Set(ctx context.Context, key *domain.ApiKey, merchant *domain.Merchant) error {
	val, err := json.Marshal(cachedKey{Key: key, Merchant: merchant})
	if err != nil {
		return fmt.Errorf("encode cached apikey: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key.KeyID, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis apikey set: %w", err)
	}
	return nil
}

// Delete evicts a key, used on revocation so the old secret stops working
// within one TTL at worst and immediately on this node.
func (c *ApiKeyCache) Delete(ctx context.Context, keyID string) error {
	if err := c.client.Del(ctx, c.prefix+keyID).Err(); err != nil {
		return fmt.Errorf("redis apikey delete: %w", err)
	}
	return nil
}
