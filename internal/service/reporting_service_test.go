package service

import (
	"context"
	"errors"
	"testing"

	"payflow/internal/core/domain"
	"payflow/internal/core/ports"
	"payflow/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type reportingTestDeps struct {
	svc         ports.ReportingService
	statsRepo   *mocks.MockStatsRepository
	paymentRepo *mocks.MockPaymentRepository
	txRepo      *mocks.MockTransactionRepository
	ctrl        *gomock.Controller
}

func setupReportingService(t *testing.T) *reportingTestDeps {
	ctrl := gomock.NewController(t)
	d := &reportingTestDeps{
		statsRepo:   mocks.NewMockStatsRepository(ctrl),
		paymentRepo: mocks.NewMockPaymentRepository(ctrl),
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewReportingService(d.statsRepo, d.paymentRepo, d.txRepo)
	return d
}

func TestReportingService_GatewayStats(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	expected := &ports.GatewayStats{
		TotalMerchants:   12,
		TotalOrders:      340,
		TotalPayments:    310,
		TotalVolumePaise: 12_500_000,
		TotalRefunds:     18,
	}
	d.statsRepo.EXPECT().GatewayStats(gomock.Any()).Return(expected, nil)

	got, err := d.svc.GatewayStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestReportingService_TransactionStats(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	expected := &ports.TransactionStats{
		TotalTransactions: 100,
		TotalAmountPaise:  5_000_000,
		SuccessCount:      80,
		FailedCount:       15,
		FlaggedCount:      5,
	}
	d.statsRepo.EXPECT().TransactionStats(gomock.Any()).Return(expected, nil)

	got, err := d.svc.TransactionStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestReportingService_StatsError(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	d.statsRepo.EXPECT().GatewayStats(gomock.Any()).Return(nil, errors.New("db down"))

	_, err := d.svc.GatewayStats(context.Background())
	assertAppError(t, err, "internal")
}

func TestReportingService_FlaggedPayments_ClampsLimit(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	flagged := []domain.Payment{{ID: uuid.New(), IsFlagged: true, FraudRules: []string{domain.FraudRuleHighValue}}}

	// Zero and oversized limits both collapse to the default.
	d.paymentRepo.EXPECT().ListFlagged(gomock.Any(), defaultAdminListLimit).Return(flagged, nil).Times(2)

	got, err := d.svc.FlaggedPayments(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = d.svc.FlaggedPayments(context.Background(), 10_000)
	require.NoError(t, err)
}

func TestReportingService_FlaggedTransactions(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	flagged := []domain.Transaction{{ID: uuid.New(), IsFlagged: true}}
	d.txRepo.EXPECT().ListFlagged(gomock.Any(), 25).Return(flagged, nil)

	got, err := d.svc.FlaggedTransactions(context.Background(), 25)
	require.NoError(t, err)
	assert.Equal(t, flagged, got)
}

func TestReportingService_AllTransactions(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	txns := []domain.Transaction{{ID: uuid.New()}, {ID: uuid.New()}}
	d.txRepo.EXPECT().ListAll(gomock.Any(), defaultAdminListLimit).Return(txns, nil)

	got, err := d.svc.AllTransactions(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
