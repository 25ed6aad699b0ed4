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

func newTestRefund() *domain.Refund {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Refund{
		ID:          uuid.New(),
		PaymentID:   uuid.New(),
		RefundRef:   "pf_rfnd_8c4d2e6f1a9b",
		Amount:      50_000,
		Reason:      strPtr("customer request"),
		Status:      domain.RefundStatusProcessed,
		CreatedAt:   now,
		ProcessedAt: &now,
	}
}

func refundTestColumns() []string {
	return []string{"id", "payment_id", "refund_ref", "amount", "reason", "notes", "status", "idempotency_key", "created_at", "processed_at"}
}

func refundRow(rf *domain.Refund) *pgxmock.Rows {
	return pgxmock.NewRows(refundTestColumns()).AddRow(
		rf.ID, rf.PaymentID, rf.RefundRef, rf.Amount, rf.Reason, rf.Notes,
		rf.Status, rf.IdempotencyKey, rf.CreatedAt, rf.ProcessedAt,
	)
}

func TestRefundRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRefundRepo(mock)
	rf := newTestRefund()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO refunds").
		WithArgs(rf.ID, rf.PaymentID, rf.RefundRef, rf.Amount, rf.Reason, rf.Notes,
			rf.Status, rf.IdempotencyKey, rf.CreatedAt, rf.ProcessedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, rf)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_ListByPaymentID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRefundRepo(mock)
	rf := newTestRefund()

	mock.ExpectQuery("SELECT .+ FROM refunds .+ WHERE payment_id").
		WithArgs(rf.PaymentID).
		WillReturnRows(refundRow(rf))

	results, err := repo.ListByPaymentID(context.Background(), rf.PaymentID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rf.RefundRef, results[0].RefundRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_GetByIdempotencyKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRefundRepo(mock)
	rf := newTestRefund()
	rf.IdempotencyKey = strPtr("refund-attempt-1")

	mock.ExpectQuery("SELECT .+ FROM refunds .+ WHERE payment_id .+ idempotency_key").
		WithArgs(rf.PaymentID, "refund-attempt-1").
		WillReturnRows(refundRow(rf))

	result, err := repo.GetByIdempotencyKey(context.Background(), rf.PaymentID, "refund-attempt-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, rf.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_GetByIdempotencyKey_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRefundRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM refunds .+ WHERE payment_id .+ idempotency_key").
		WithArgs(pgxmock.AnyArg(), "unseen-key").
		WillReturnRows(pgxmock.NewRows(refundTestColumns()))

	result, err := repo.GetByIdempotencyKey(context.Background(), uuid.New(), "unseen-key")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_SumProcessed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRefundRepo(mock)
	paymentID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE.+ FROM refunds").
		WithArgs(paymentID).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(75_000)))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	total, err := repo.SumProcessed(context.Background(), tx, paymentID)
	assert.NoError(t, err)
	assert.Equal(t, int64(75_000), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
