package postgres

import (
	"context"
	"errors"
	"fmt"

	"payflow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create inserts an idempotency record within a database transaction. The
// primary key (merchant_id, key) turns a concurrent duplicate into a unique
// violation, which the order service maps to a replay.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error {
	query := `INSERT INTO idempotency_keys (merchant_id, key, request_hash, order_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query,
		rec.MerchantID, rec.Key, rec.RequestHash, rec.OrderID, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

// Get fetches an idempotency record by merchant and key.
func (r *IdempotencyRepo) Get(ctx context.Context, merchantID uuid.UUID, key string) (*domain.IdempotencyRecord, error) {
	query := `SELECT merchant_id, key, request_hash, order_id, created_at, expires_at
		FROM idempotency_keys WHERE merchant_id = $1 AND key = $2`

	rec := &domain.IdempotencyRecord{}
	err := r.pool.QueryRow(ctx, query, merchantID, key).Scan(
		&rec.MerchantID, &rec.Key, &rec.RequestHash, &rec.OrderID, &rec.CreatedAt, &rec.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return rec, nil
}
