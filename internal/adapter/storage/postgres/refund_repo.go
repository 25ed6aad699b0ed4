package postgres

import (
	"context"
	"errors"
	"fmt"

	"payflow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const refundColumns = `id, payment_id, refund_ref, amount, reason, notes, status,
	idempotency_key, created_at, processed_at`

// RefundRepo implements ports.RefundRepository.
type RefundRepo struct {
	pool Pool
}

// NewRefundRepo creates a new RefundRepo.
func NewRefundRepo(pool Pool) *RefundRepo {
	return &RefundRepo{pool: pool}
}

// Create inserts a new refund within a database transaction.
func (r *RefundRepo) Create(ctx context.Context, tx pgx.Tx, rf *domain.Refund) error {
	query := `INSERT INTO refunds (` + refundColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		rf.ID, rf.PaymentID, rf.RefundRef, rf.Amount, rf.Reason, rf.Notes,
		rf.Status, rf.IdempotencyKey, rf.CreatedAt, rf.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}

// ListByPaymentID fetches all refunds against a payment, newest first.
func (r *RefundRepo) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds
		WHERE payment_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []domain.Refund
	for rows.Next() {
		rf := domain.Refund{}
		if err := rows.Scan(
			&rf.ID, &rf.PaymentID, &rf.RefundRef, &rf.Amount, &rf.Reason, &rf.Notes,
			&rf.Status, &rf.IdempotencyKey, &rf.CreatedAt, &rf.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan refund row: %w", err)
		}
		refunds = append(refunds, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refund rows: %w", err)
	}
	return refunds, nil
}

// GetByIdempotencyKey fetches a refund previously created under the key.
func (r *RefundRepo) GetByIdempotencyKey(ctx context.Context, paymentID uuid.UUID, key string) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds
		WHERE payment_id = $1 AND idempotency_key = $2`

	rf := &domain.Refund{}
	err := r.pool.QueryRow(ctx, query, paymentID, key).Scan(
		&rf.ID, &rf.PaymentID, &rf.RefundRef, &rf.Amount, &rf.Reason, &rf.Notes,
		&rf.Status, &rf.IdempotencyKey, &rf.CreatedAt, &rf.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get refund by idempotency key: %w", err)
	}
	return rf, nil
}

// SumProcessed re-derives the refunded total under the caller's lock on the
// payment row.
func (r *RefundRepo) SumProcessed(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM refunds
		WHERE payment_id = $1 AND status = 'processed'`

	var total int64
	if err := tx.QueryRow(ctx, query, paymentID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum processed refunds: %w", err)
	}
	return total, nil
}
