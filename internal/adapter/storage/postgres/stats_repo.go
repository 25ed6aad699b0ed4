package postgres

import (
	"context"
	"fmt"

	"payflow/internal/core/ports"
)

// StatsRepo implements ports.StatsRepository with aggregate queries.
type StatsRepo struct {
	pool Pool
}

// NewStatsRepo creates a new StatsRepo.
func NewStatsRepo(pool Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

// GatewayStats aggregates platform-wide totals for the admin dashboard.
// Volume counts captured payments only.
func (r *StatsRepo) GatewayStats(ctx context.Context) (*ports.GatewayStats, error) {
	query := `SELECT
		(SELECT COUNT(*) FROM merchants),
		(SELECT COUNT(*) FROM orders),
		(SELECT COUNT(*) FROM payments),
		(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'captured'),
		(SELECT COUNT(*) FROM refunds WHERE status = 'processed')`

	s := &ports.GatewayStats{}
	err := r.pool.QueryRow(ctx, query).Scan(
		&s.TotalMerchants, &s.TotalOrders, &s.TotalPayments,
		&s.TotalVolumePaise, &s.TotalRefunds,
	)
	if err != nil {
		return nil, fmt.Errorf("gateway stats: %w", err)
	}
	return s, nil
}

// TransactionStats aggregates counts over the legacy transactions table.
func (r *StatsRepo) TransactionStats(ctx context.Context) (*ports.TransactionStats, error) {
	query := `SELECT
		COUNT(*),
		COALESCE(SUM(amount_paise), 0),
		COUNT(*) FILTER (WHERE status = 'success'),
		COUNT(*) FILTER (WHERE status = 'failed'),
		COUNT(*) FILTER (WHERE is_flagged)
		FROM transactions`

	s := &ports.TransactionStats{}
	err := r.pool.QueryRow(ctx, query).Scan(
		&s.TotalTransactions, &s.TotalAmountPaise,
		&s.SuccessCount, &s.FailedCount, &s.FlaggedCount,
	)
	if err != nil {
		return nil, fmt.Errorf("transaction stats: %w", err)
	}
	return s, nil
}
