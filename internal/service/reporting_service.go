package service

import (
	"context"
	"fmt"

	"payflow/internal/core/domain"
	"payflow/internal/core/ports"
	"payflow/pkg/apperror"
)

const defaultAdminListLimit = 100

// reportingService implements ports.ReportingService. Everything here is
// read-only; the aggregates come from single FILTER queries.
type reportingService struct {
	statsRepo   ports.StatsRepository
	paymentRepo ports.PaymentRepository
	txRepo      ports.TransactionRepository
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	statsRepo ports.StatsRepository,
	paymentRepo ports.PaymentRepository,
	txRepo ports.TransactionRepository,
) ports.ReportingService {
	return &reportingService{
		statsRepo:   statsRepo,
		paymentRepo: paymentRepo,
		txRepo:      txRepo,
	}
}

func (s *reportingService) GatewayStats(ctx context.Context) (*ports.GatewayStats, error) {
	stats, err := s.statsRepo.GatewayStats(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("gateway stats: %w", err))
	}
	return stats, nil
}

func (s *reportingService) TransactionStats(ctx context.Context) (*ports.TransactionStats, error) {
	stats, err := s.statsRepo.TransactionStats(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("transaction stats: %w", err))
	}
	return stats, nil
}

func (s *reportingService) FlaggedPayments(ctx context.Context, limit int) ([]domain.Payment, error) {
	payments, err := s.paymentRepo.ListFlagged(ctx, clampLimit(limit))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list flagged payments: %w", err))
	}
	return payments, nil
}

func (s *reportingService) FlaggedTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	txns, err := s.txRepo.ListFlagged(ctx, clampLimit(limit))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list flagged transactions: %w", err))
	}
	return txns, nil
}

func (s *reportingService) AllTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	txns, err := s.txRepo.ListAll(ctx, clampLimit(limit))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > defaultAdminListLimit {
		return defaultAdminListLimit
	}
	return limit
}
