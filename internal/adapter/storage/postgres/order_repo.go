package postgres

import (
	"context"
	"errors"
	"fmt"

	"payflow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, merchant_id, order_ref, amount, currency, receipt, notes,
	status, attempts, auto_capture, expires_at, created_at, updated_at`

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// Create inserts a new order within a database transaction.
func (r *OrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		o.ID, o.MerchantID, o.OrderRef, o.Amount, o.Currency,
		o.Receipt, o.Notes, o.Status, o.Attempts, o.AutoCapture,
		o.ExpiresAt, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByRef fetches an order by its public reference.
func (r *OrderRepo) GetByRef(ctx context.Context, orderRef string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_ref = $1`

	return r.scanOrder(r.pool.QueryRow(ctx, query, orderRef))
}

// GetByID fetches an order by its UUID.
func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	return r.scanOrder(r.pool.QueryRow(ctx, query, id))
}

// GetByRefForUpdate fetches an order under FOR UPDATE inside the caller's
// transaction. Concurrent payment attempts against the same order serialize
// on this lock.
func (r *OrderRepo) GetByRefForUpdate(ctx context.Context, tx pgx.Tx, orderRef string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_ref = $1 FOR UPDATE`

	return r.scanOrder(tx.QueryRow(ctx, query, orderRef))
}

// List fetches a merchant's orders, newest first.
func (r *OrderRepo) List(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE merchant_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, merchantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o := domain.Order{}
		if err := rows.Scan(
			&o.ID, &o.MerchantID, &o.OrderRef, &o.Amount, &o.Currency,
			&o.Receipt, &o.Notes, &o.Status, &o.Attempts, &o.AutoCapture,
			&o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

// RecordAttempt advances status and increments the attempt counter.
func (r *OrderRepo) RecordAttempt(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = $1, attempts = attempts + 1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("record order attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", id)
	}
	return nil
}

// SetStatus updates an order's status within a database transaction.
func (r *OrderRepo) SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("set order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", id)
	}
	return nil
}

func (r *OrderRepo) scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID, &o.MerchantID, &o.OrderRef, &o.Amount, &o.Currency,
		&o.Receipt, &o.Notes, &o.Status, &o.Attempts, &o.AutoCapture,
		&o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}
