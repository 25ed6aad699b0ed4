package service

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// txConflictAttempts bounds how many times a conflicted transaction is rerun
// within one request.
const txConflictAttempts = 3

// Postgres SQLSTATE codes for transient transaction conflicts.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// retryableTxConflict reports whether err is a transient database conflict.
// Business conflicts (apperror.Conflict) never match: those are verdicts,
// not races.
func retryableTxConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

// runTxWithRetry reruns fn while it fails with a transient conflict, up to
// txConflictAttempts runs total. fn must re-derive every value it writes so
// a rerun starts from a clean slate.
func runTxWithRetry(log zerolog.Logger, op string, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !retryableTxConflict(err) || attempt == txConflictAttempts {
			return err
		}
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("transaction conflict, rerunning")
	}
}
