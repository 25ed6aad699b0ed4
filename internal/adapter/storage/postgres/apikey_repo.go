package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payflow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ApiKeyRepo implements ports.ApiKeyRepository.
type ApiKeyRepo struct {
	pool Pool
}

// NewApiKeyRepo creates a new ApiKeyRepo.
func NewApiKeyRepo(pool Pool) *ApiKeyRepo {
	return &ApiKeyRepo{pool: pool}
}

// Create inserts a new API key into the database.
func (r *ApiKeyRepo) Create(ctx context.Context, k *domain.ApiKey) error {
	query := `INSERT INTO api_keys (id, merchant_id, key_id, key_secret_hash, label, active, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		k.ID, k.MerchantID, k.KeyID, k.KeySecretHash,
		k.Label, k.Active, k.CreatedAt, k.LastUsedAt,
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetByKeyID fetches an API key by its public key_id.
func (r *ApiKeyRepo) GetByKeyID(ctx context.Context, keyID string) (*domain.ApiKey, error) {
	query := `SELECT id, merchant_id, key_id, key_secret_hash, label, active, created_at, last_used_at
		FROM api_keys WHERE key_id = $1`

	k := &domain.ApiKey{}
	err := r.pool.QueryRow(ctx, query, keyID).Scan(
		&k.ID, &k.MerchantID, &k.KeyID, &k.KeySecretHash,
		&k.Label, &k.Active, &k.CreatedAt, &k.LastUsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return k, nil
}

// Revoke flips active=false. Returns false when no row matched, which covers
// both unknown keys and keys owned by another merchant.
func (r *ApiKeyRepo) Revoke(ctx context.Context, merchantID uuid.UUID, keyID string) (bool, error) {
	query := `UPDATE api_keys SET active = FALSE WHERE merchant_id = $1 AND key_id = $2 AND active = TRUE`

	tag, err := r.pool.Exec(ctx, query, merchantID, keyID)
	if err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// TouchLastUsed bumps last_used_at.
func (r *ApiKeyRepo) TouchLastUsed(ctx context.Context, keyID string, usedAt time.Time) error {
	query := `UPDATE api_keys SET last_used_at = $1 WHERE key_id = $2`

	if _, err := r.pool.Exec(ctx, query, usedAt, keyID); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}
