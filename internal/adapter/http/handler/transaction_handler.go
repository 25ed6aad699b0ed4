package handler

import (
	"strconv"

	"payflow/internal/adapter/http/dto"
	"payflow/internal/adapter/http/middleware"
	"payflow/internal/core/domain"
	"payflow/internal/core/ports"
	"payflow/pkg/apperror"
	"payflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransactionHandler serves the legacy dashboard transaction surface. This
// API speaks rupee floats; the conversion to paise happens here and nowhere
// else.
type TransactionHandler struct {
	txSvc ports.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(txSvc ports.TransactionService) *TransactionHandler {
	return &TransactionHandler{txSvc: txSvc}
}

// Create handles POST /transactions. Replaying an idempotency key returns
// the stored transaction with 200 instead of creating a new row.
func (h *TransactionHandler) Create(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	txn, replayed, err := h.txSvc.Create(c.Request.Context(), ports.CreateTransactionRequest{
		UserID:         claims.UserID,
		AmountPaise:    domain.RupeesToPaise(req.Amount),
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if replayed {
		response.OK(c, dto.NewTransactionResponse(txn))
		return
	}
	response.Created(c, dto.NewTransactionResponse(txn))
}

// List handles GET /transactions.
func (h *TransactionHandler) List(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	txns, err := h.txSvc.ListMine(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTransactionListResponse(txns))
}

// Get handles GET /transactions/{id}. Owners see their own rows; admins see
// everything.
func (h *TransactionHandler) Get(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a UUID"))
		return
	}

	txn, err := h.txSvc.Get(c.Request.Context(), claims.UserID, claims.Role, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTransactionResponse(txn))
}

// Refund handles POST /transactions/{id}/refund.
func (h *TransactionHandler) Refund(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a UUID"))
		return
	}

	txn, err := h.txSvc.Refund(c.Request.Context(), claims.UserID, claims.Role, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewTransactionResponse(txn))
}
