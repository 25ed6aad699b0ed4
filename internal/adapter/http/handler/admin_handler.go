package handler

import (
	"strconv"

	"payflow/internal/adapter/http/dto"
	"payflow/internal/core/ports"
	"payflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the read-only admin views.
type AdminHandler struct {
	reportingSvc ports.ReportingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reportingSvc ports.ReportingService) *AdminHandler {
	return &AdminHandler{reportingSvc: reportingSvc}
}

// Stats handles GET /admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	txStats, err := h.reportingSvc.TransactionStats(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	gwStats, err := h.reportingSvc.GatewayStats(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.AdminStatsResponse{
		Transactions: *txStats,
		Gateway:      *gwStats,
	})
}

// Flagged handles GET /admin/flagged: the fraud review queue across both
// payment surfaces.
func (h *AdminHandler) Flagged(c *gin.Context) {
	ctx := c.Request.Context()
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	payments, err := h.reportingSvc.FlaggedPayments(ctx, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	transactions, err := h.reportingSvc.FlaggedTransactions(ctx, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FlaggedResponse{
		Payments:     dto.NewPaymentListResponse(payments),
		Transactions: dto.NewTransactionListResponse(transactions),
	})
}

// Transactions handles GET /admin/transactions.
func (h *AdminHandler) Transactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	transactions, err := h.reportingSvc.AllTransactions(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTransactionListResponse(transactions))
}
