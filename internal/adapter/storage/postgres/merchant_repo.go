package postgres

import (
	"context"
	"errors"
	"fmt"

	"payflow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MerchantRepo implements ports.MerchantRepository.
type MerchantRepo struct {
	pool Pool
}

// NewMerchantRepo creates a new MerchantRepo.
func NewMerchantRepo(pool Pool) *MerchantRepo {
	return &MerchantRepo{pool: pool}
}

// Create inserts a new merchant into the database.
func (r *MerchantRepo) Create(ctx context.Context, m *domain.Merchant) error {
	query := `INSERT INTO merchants (id, user_id, business_name, business_email, website, webhook_url, webhook_secret, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		m.ID, m.UserID, m.BusinessName, m.BusinessEmail,
		m.Website, m.WebhookURL, m.WebhookSecret, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert merchant: %w", err)
	}
	return nil
}

// GetByID fetches a merchant by its UUID.
func (r *MerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	query := `SELECT id, user_id, business_name, business_email, website, webhook_url, webhook_secret, created_at
		FROM merchants WHERE id = $1`

	return r.scanMerchant(r.pool.QueryRow(ctx, query, id))
}

// GetByUserID fetches the merchant owned by a dashboard user.
func (r *MerchantRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Merchant, error) {
	query := `SELECT id, user_id, business_name, business_email, website, webhook_url, webhook_secret, created_at
		FROM merchants WHERE user_id = $1`

	return r.scanMerchant(r.pool.QueryRow(ctx, query, userID))
}

func (r *MerchantRepo) scanMerchant(row pgx.Row) (*domain.Merchant, error) {
	m := &domain.Merchant{}
	err := row.Scan(
		&m.ID, &m.UserID, &m.BusinessName, &m.BusinessEmail,
		&m.Website, &m.WebhookURL, &m.WebhookSecret, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan merchant: %w", err)
	}
	return m, nil
}
