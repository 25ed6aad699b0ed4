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

// paymentColumns joins orders so every read carries the public order_ref.
const paymentColumns = `p.id, p.order_id, o.order_ref, p.payment_ref, p.amount, p.currency,
	p.method, p.status, p.payer_key, p.vpa_sealed, p.email_sealed, p.contact_sealed,
	p.card_last4, p.card_network, p.card_name, p.amount_refunded, p.is_flagged,
	p.fraud_rules, p.error_code, p.error_reason, p.created_at, p.captured_at`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a new payment within a database transaction.
func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	query := `INSERT INTO payments (id, order_id, payment_ref, amount, currency, method, status,
		payer_key, vpa_sealed, email_sealed, contact_sealed, card_last4, card_network, card_name,
		amount_refunded, is_flagged, fraud_rules, error_code, error_reason, created_at, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	rules := p.FraudRules
	if rules == nil {
		rules = []string{}
	}
	_, err := tx.Exec(ctx, query,
		p.ID, p.OrderID, p.PaymentRef, p.Amount, p.Currency, p.Method, p.Status,
		p.PayerKey, p.VPASealed, p.EmailSealed, p.ContactSealed,
		p.CardLast4, p.CardNetwork, p.CardName,
		p.AmountRefunded, p.IsFlagged, rules, p.ErrorCode, p.ErrorReason,
		p.CreatedAt, p.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByRef fetches a payment by its public reference.
func (r *PaymentRepo) GetByRef(ctx context.Context, paymentRef string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments p JOIN orders o ON o.id = p.order_id
		WHERE p.payment_ref = $1`

	return r.scanPayment(r.pool.QueryRow(ctx, query, paymentRef))
}

// GetByRefForUpdate fetches a payment under FOR UPDATE inside the caller's
// transaction. Capture and refund serialize on this lock.
func (r *PaymentRepo) GetByRefForUpdate(ctx context.Context, tx pgx.Tx, paymentRef string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments p JOIN orders o ON o.id = p.order_id
		WHERE p.payment_ref = $1 FOR UPDATE OF p`

	return r.scanPayment(tx.QueryRow(ctx, query, paymentRef))
}

// ListByOrderID fetches all payments made against an order, newest first.
func (r *PaymentRepo) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments p JOIN orders o ON o.id = p.order_id
		WHERE p.order_id = $1 ORDER BY p.created_at DESC`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

// ExistsLiveForOrder reports whether the order already has a non-failed
// payment. Evaluated under the caller's transaction so a concurrent attempt
// holding the order lock sees a consistent answer.
func (r *PaymentRepo) ExistsLiveForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM payments WHERE order_id = $1 AND status != 'failed')`

	var exists bool
	if err := tx.QueryRow(ctx, query, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check live payment: %w", err)
	}
	return exists, nil
}

// UpdateStatus updates a payment's status within a database transaction.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, capturedAt *time.Time) error {
	query := `UPDATE payments SET status = $1, captured_at = COALESCE($2, captured_at) WHERE id = $3`

	tag, err := tx.Exec(ctx, query, status, capturedAt, id)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", id)
	}
	return nil
}

// ApplyRefund records the refunded total and the resulting status.
func (r *PaymentRepo) ApplyRefund(ctx context.Context, tx pgx.Tx, id uuid.UUID, amountRefunded int64, status domain.PaymentStatus) error {
	query := `UPDATE payments SET amount_refunded = $1, status = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, amountRefunded, status, id)
	if err != nil {
		return fmt.Errorf("apply refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment not found: %s", id)
	}
	return nil
}

// ListFlagged fetches payments flagged by the fraud engine, newest first.
func (r *PaymentRepo) ListFlagged(ctx context.Context, limit int) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments p JOIN orders o ON o.id = p.order_id
		WHERE p.is_flagged ORDER BY p.created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list flagged payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

// History summarizes the payer's attempts inside the trailing fraud window.
func (r *PaymentRepo) History(ctx context.Context, payerKey string, since time.Time) (*domain.FraudHistory, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(amount), 0), COALESCE(ARRAY_AGG(amount), '{}')
		FROM payments WHERE payer_key = $1 AND created_at >= $2`

	h := &domain.FraudHistory{}
	err := r.pool.QueryRow(ctx, query, payerKey, since).Scan(&h.Count, &h.TotalAmount, &h.Amounts)
	if err != nil {
		return nil, fmt.Errorf("payment history: %w", err)
	}
	return h, nil
}

func (r *PaymentRepo) scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := row.Scan(
		&p.ID, &p.OrderID, &p.OrderRef, &p.PaymentRef, &p.Amount, &p.Currency,
		&p.Method, &p.Status, &p.PayerKey, &p.VPASealed, &p.EmailSealed, &p.ContactSealed,
		&p.CardLast4, &p.CardNetwork, &p.CardName, &p.AmountRefunded, &p.IsFlagged,
		&p.FraudRules, &p.ErrorCode, &p.ErrorReason, &p.CreatedAt, &p.CapturedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}

func collectPayments(rows pgx.Rows) ([]domain.Payment, error) {
	var payments []domain.Payment
	for rows.Next() {
		p := domain.Payment{}
		if err := rows.Scan(
			&p.ID, &p.OrderID, &p.OrderRef, &p.PaymentRef, &p.Amount, &p.Currency,
			&p.Method, &p.Status, &p.PayerKey, &p.VPASealed, &p.EmailSealed, &p.ContactSealed,
			&p.CardLast4, &p.CardNetwork, &p.CardName, &p.AmountRefunded, &p.IsFlagged,
			&p.FraudRules, &p.ErrorCode, &p.ErrorReason, &p.CreatedAt, &p.CapturedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, nil
}
