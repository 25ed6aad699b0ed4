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

const transactionColumns = `id, user_id, amount_paise, payment_method, status,
	idempotency_key, is_flagged, fraud_rules, created_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new transaction.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	rules := t.FraudRules
	if rules == nil {
		rules = []string{}
	}
	_, err := r.pool.Exec(ctx, query,
		t.ID, t.UserID, t.AmountPaise, t.PaymentMethod, t.Status,
		t.IdempotencyKey, t.IsFlagged, rules, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	return r.scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey fetches the transaction a user previously created under
// the key.
func (r *TransactionRepo) GetByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1 AND idempotency_key = $2`

	return r.scanTransaction(r.pool.QueryRow(ctx, query, userID, key))
}

// ListByUser fetches a user's transactions, newest first.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListAll fetches the most recent transactions across all users.
func (r *TransactionRepo) ListAll(ctx context.Context, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list all transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListFlagged fetches transactions flagged by the fraud engine, newest first.
func (r *TransactionRepo) ListFlagged(ctx context.Context, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE is_flagged ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list flagged transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// UpdateStatus updates a transaction's status.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) error {
	query := `UPDATE transactions SET status = $1 WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// History summarizes the user's transactions inside the trailing fraud window.
func (r *TransactionRepo) History(ctx context.Context, userID uuid.UUID, since time.Time) (*domain.FraudHistory, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(amount_paise), 0), COALESCE(ARRAY_AGG(amount_paise), '{}')
		FROM transactions WHERE user_id = $1 AND created_at >= $2`

	h := &domain.FraudHistory{}
	err := r.pool.QueryRow(ctx, query, userID, since).Scan(&h.Count, &h.TotalAmount, &h.Amounts)
	if err != nil {
		return nil, fmt.Errorf("transaction history: %w", err)
	}
	return h, nil
}

func (r *TransactionRepo) scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.AmountPaise, &t.PaymentMethod, &t.Status,
		&t.IdempotencyKey, &t.IsFlagged, &t.FraudRules, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.AmountPaise, &t.PaymentMethod, &t.Status,
			&t.IdempotencyKey, &t.IsFlagged, &t.FraudRules, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}
