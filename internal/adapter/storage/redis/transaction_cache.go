package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payflow/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// TransactionCache implements ports.TransactionCache using Redis.
type TransactionCache struct {
	client *goredis.Client
	prefix string
}

// NewTransactionCache creates a new Redis-backed transaction cache.
func NewTransactionCache(client *goredis.Client) *TransactionCache {
	return &TransactionCache{
		client: client,
		prefix: "txn:",
	}
}

// Get retrieves a cached transaction by id.
// Returns nil, nil if the transaction is not cached.
func (c *TransactionCache) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	val, err := c.client.Get(ctx, c.prefix+id.String()).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis transaction get: %w", err)
	}

	txn := &domain.Transaction{}
	if err := json.Unmarshal(val, txn); err != nil {
		return nil, fmt.Errorf("decode cached transaction: %w", err)
	}
	return txn, nil
}

// Set caches a transaction with TTL.
func (c *TransactionCache) Set(ctx context.Context, transaction *domain.Transaction, ttl time.Duration) error {
	val, err := json.Marshal(transaction)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+transaction.ID.String(), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis transaction set: %w", err)
	}
	return nil
}

// Delete evicts a transaction, used after a status change so readers never
// see a stale refund state.
func (c *TransactionCache) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, c.prefix+id.String()).Err(); err != nil {
		return fmt.Errorf("redis transaction delete: %w", err)
	}
	return nil
}
