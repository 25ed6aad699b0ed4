package postgres

import (
	"context"
	"testing"
	"time"

	"payflow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction() *domain.Transaction {
	return &domain.Transaction{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		AmountPaise:   100_000,
		PaymentMethod: "upi",
		Status:        domain.TransactionStatusSuccess,
		FraudRules:    []string{},
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func transactionTestColumns() []string {
	return []string{"id", "user_id", "amount_paise", "payment_method", "status", "idempotency_key", "is_flagged", "fraud_rules", "created_at"}
}

func transactionRow(txn *domain.Transaction) *pgxmock.Rows {
	return pgxmock.NewRows(transactionTestColumns()).AddRow(
		txn.ID, txn.UserID, txn.AmountPaise, txn.PaymentMethod, txn.Status,
		txn.IdempotencyKey, txn.IsFlagged, txn.FraudRules, txn.CreatedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction()

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, txn.UserID, txn.AmountPaise, txn.PaymentMethod, txn.Status,
			txn.IdempotencyKey, txn.IsFlagged, txn.FraudRules, txn.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction()

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(transactionRow(txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.Equal(t, txn.AmountPaise, result.AmountPaise)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(transactionTestColumns()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByIdempotencyKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction()
	txn.IdempotencyKey = strPtr("txn-retry-1")

	mock.ExpectQuery("SELECT .+ FROM transactions .+ WHERE user_id .+ idempotency_key").
		WithArgs(txn.UserID, "txn-retry-1").
		WillReturnRows(transactionRow(txn))

	result, err := repo.GetByIdempotencyKey(context.Background(), txn.UserID, "txn-retry-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction()

	mock.ExpectQuery("SELECT .+ FROM transactions .+ WHERE user_id").
		WithArgs(txn.UserID, 20).
		WillReturnRows(transactionRow(txn))

	results, err := repo.ListByUser(context.Background(), txn.UserID, 20)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, txn.ID, results[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListFlagged(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction()
	txn.IsFlagged = true
	txn.FraudRules = []string{"velocity", "high_frequency"}

	mock.ExpectQuery("SELECT .+ FROM transactions .+ WHERE is_flagged").
		WithArgs(50).
		WillReturnRows(transactionRow(txn))

	results, err := repo.ListFlagged(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsFlagged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction()

	mock.ExpectExec("UPDATE transactions SET status").
		WithArgs(domain.TransactionStatusRefunded, txn.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.UpdateStatus(context.Background(), txn.ID, domain.TransactionStatusRefunded)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_History(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	userID := uuid.New()
	since := time.Now().Add(-time.Minute)

	mock.ExpectQuery("SELECT COUNT.+ FROM transactions WHERE user_id").
		WithArgs(userID, since).
		WillReturnRows(pgxmock.NewRows([]string{"count", "sum", "amounts"}).
			AddRow(int64(2), int64(150_000), []int64{100_000, 50_000}))

	h, err := repo.History(context.Background(), userID, since)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, int64(2), h.Count)
	assert.Equal(t, int64(150_000), h.TotalAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
