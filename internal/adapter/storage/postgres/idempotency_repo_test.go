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

func newTestIdempotencyRecord() *domain.IdempotencyRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.IdempotencyRecord{
		MerchantID:  uuid.New(),
		Key:         "order-attempt-7",
		RequestHash: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		OrderID:     uuid.New(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(24 * time.Hour),
	}
}

func idempotencyColumns() []string {
	return []string{"merchant_id", "key", "request_hash", "order_id", "created_at", "expires_at"}
}

func TestIdempotencyRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	rec := newTestIdempotencyRecord()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO idempotency_keys").
		WithArgs(rec.MerchantID, rec.Key, rec.RequestHash, rec.OrderID, rec.CreatedAt, rec.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, rec)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	rec := newTestIdempotencyRecord()

	mock.ExpectQuery("SELECT .+ FROM idempotency_keys WHERE merchant_id").
		WithArgs(rec.MerchantID, rec.Key).
		WillReturnRows(pgxmock.NewRows(idempotencyColumns()).AddRow(
			rec.MerchantID, rec.Key, rec.RequestHash, rec.OrderID, rec.CreatedAt, rec.ExpiresAt,
		))

	result, err := repo.Get(context.Background(), rec.MerchantID, rec.Key)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, rec.OrderID, result.OrderID)
	assert.Equal(t, rec.RequestHash, result.RequestHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM idempotency_keys WHERE merchant_id").
		WithArgs(pgxmock.AnyArg(), "unseen-key").
		WillReturnRows(pgxmock.NewRows(idempotencyColumns()))

	result, err := repo.Get(context.Background(), uuid.New(), "unseen-key")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
