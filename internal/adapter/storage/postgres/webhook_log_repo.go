package postgres

import (
	"context"
	"fmt"

	"payflow/internal/core/domain"

	"github.com/google/uuid"
)

// WebhookLogRepo implements ports.WebhookLogRepository.
type WebhookLogRepo struct {
	pool Pool
}

// NewWebhookLogRepo creates a new WebhookLogRepo.
func NewWebhookLogRepo(pool Pool) *WebhookLogRepo {
	return &WebhookLogRepo{pool: pool}
}

// Create appends a delivery attempt record.
func (r *WebhookLogRepo) Create(ctx context.Context, l *domain.WebhookLog) error {
	query := `INSERT INTO webhook_logs (id, merchant_id, event_id, event, target_url, response_status, response_body, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		l.ID, l.MerchantID, l.EventID, l.Event, l.TargetURL,
		l.ResponseStatus, l.ResponseBody, l.Success, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook log: %w", err)
	}
	return nil
}

// ListByMerchant fetches a merchant's delivery attempts, newest first.
func (r *WebhookLogRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.WebhookLog, error) {
	query := `SELECT id, merchant_id, event_id, event, target_url, response_status, response_body, success, created_at
		FROM webhook_logs WHERE merchant_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, merchantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list webhook logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.WebhookLog
	for rows.Next() {
		l := domain.WebhookLog{}
		if err := rows.Scan(
			&l.ID, &l.MerchantID, &l.EventID, &l.Event, &l.TargetURL,
			&l.ResponseStatus, &l.ResponseBody, &l.Success, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook log row: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook log rows: %w", err)
	}
	return logs, nil
}
