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

const webhookEventColumns = `id, merchant_id, event, payload, status, attempts,
	next_attempt_at, locked_at, last_response_code, last_response_body, created_at, delivered_at`

// WebhookRepo implements ports.WebhookRepository over the outbox table.
type WebhookRepo struct {
	pool Pool
}

// NewWebhookRepo creates a new WebhookRepo.
func NewWebhookRepo(pool Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

// Enqueue appends an event in the same transaction as the state change it
// announces. The generated row id is written back to the event.
func (r *WebhookRepo) Enqueue(ctx context.Context, tx pgx.Tx, e *domain.WebhookEvent) error {
	query := `INSERT INTO webhook_events (merchant_id, event, payload, status, attempts, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	err := tx.QueryRow(ctx, query,
		e.MerchantID, e.Event, e.Payload, e.Status, e.Attempts, e.NextAttemptAt, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("enqueue webhook event: %w", err)
	}
	return nil
}

// ClaimNext atomically leases the next due pending event. SKIP LOCKED lets
// concurrent workers claim distinct rows without blocking each other; a row
// whose lease expired (crashed worker) becomes claimable again. The attempt
// counter is incremented as part of the claim. Returns (nil, nil) when
// nothing is due.
func (r *WebhookRepo) ClaimNext(ctx context.Context, lease time.Duration) (*domain.WebhookEvent, error) {
	query := `UPDATE webhook_events SET locked_at = NOW(), attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM webhook_events
			WHERE status = 'pending' AND next_attempt_at <= NOW()
				AND (locked_at IS NULL OR locked_at < $1)
			ORDER BY next_attempt_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + webhookEventColumns

	leaseCutoff := time.Now().Add(-lease)
	e, err := r.scanEvent(r.pool.QueryRow(ctx, query, leaseCutoff))
	if err != nil {
		return nil, fmt.Errorf("claim webhook event: %w", err)
	}
	return e, nil
}

// MarkDelivered finalizes a successfully delivered event.
func (r *WebhookRepo) MarkDelivered(ctx context.Context, id int64, responseCode int, responseBody string) error {
	query := `UPDATE webhook_events
		SET status = 'delivered', locked_at = NULL, last_response_code = $2, last_response_body = $3, delivered_at = NOW()
		WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id, responseCode, responseBody); err != nil {
		return fmt.Errorf("mark webhook delivered: %w", err)
	}
	return nil
}

// Reschedule releases the lease and plans the next attempt.
func (r *WebhookRepo) Reschedule(ctx context.Context, id int64, nextAttemptAt time.Time, responseCode *int, responseBody string) error {
	query := `UPDATE webhook_events
		SET status = 'pending', locked_at = NULL, next_attempt_at = $2, last_response_code = $3, last_response_body = $4
		WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id, nextAttemptAt, responseCode, responseBody); err != nil {
		return fmt.Errorf("reschedule webhook event: %w", err)
	}
	return nil
}

// MarkFailed finalizes an event once the attempt budget is spent or the
// target is permanently unreachable.
func (r *WebhookRepo) MarkFailed(ctx context.Context, id int64, responseCode *int, responseBody string) error {
	query := `UPDATE webhook_events
		SET status = 'failed', locked_at = NULL, last_response_code = $2, last_response_body = $3
		WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id, responseCode, responseBody); err != nil {
		return fmt.Errorf("mark webhook failed: %w", err)
	}
	return nil
}

// ListByMerchant fetches a merchant's outbox rows, newest first.
func (r *WebhookRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events
		WHERE merchant_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, merchantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	defer rows.Close()

	var events []domain.WebhookEvent
	for rows.Next() {
		e := domain.WebhookEvent{}
		if err := rows.Scan(
			&e.ID, &e.MerchantID, &e.Event, &e.Payload, &e.Status, &e.Attempts,
			&e.NextAttemptAt, &e.LockedAt, &e.LastResponseCode, &e.LastResponseBody,
			&e.CreatedAt, &e.DeliveredAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook event rows: %w", err)
	}
	return events, nil
}

func (r *WebhookRepo) scanEvent(row pgx.Row) (*domain.WebhookEvent, error) {
	e := &domain.WebhookEvent{}
	err := row.Scan(
		&e.ID, &e.MerchantID, &e.Event, &e.Payload, &e.Status, &e.Attempts,
		&e.NextAttemptAt, &e.LockedAt, &e.LastResponseCode, &e.LastResponseBody,
		&e.CreatedAt, &e.DeliveredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}
