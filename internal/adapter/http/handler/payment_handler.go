package handler

import (
	"errors"
	"io"
	"strconv"

	"payflow/internal/adapter/http/dto"
	"payflow/internal/adapter/http/middleware"
	"payflow/internal/core/ports"
	"payflow/pkg/apperror"
	"payflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles the merchant payment API.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
	webhookSvc ports.WebhookService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService, webhookSvc ports.WebhookService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, webhookSvc: webhookSvc}
}

// isEmptyBody reports whether a bind error came from an absent body. Capture
// and refund accept an empty body as "all defaults".
func isEmptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}

// Get handles GET /v1/payments/{payment_ref}.
func (h *PaymentHandler) Get(c *gin.Context) {
	merchant := middleware.Merchant(c)
	if merchant == nil {
		response.Error(c, apperror.ErrInvalidCredentials())
		return
	}

	payment, err := h.paymentSvc.GetPayment(c.Request.Context(), merchant.ID, c.Param("payment_ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPaymentResponse(payment))
}

// Capture handles POST /v1/payments/{payment_ref}/capture. Capturing an
// already captured payment returns the unchanged resource.
func (h *PaymentHandler) Capture(c *gin.Context) {
	merchant := middleware.Merchant(c)
	if merchant == nil {
		response.Error(c, apperror.ErrInvalidCredentials())
		return
	}

	var req dto.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil && !isEmptyBody(err) {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	payment, err := h.paymentSvc.Capture(c.Request.Context(), merchant.ID, c.Param("payment_ref"), req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPaymentResponse(payment))
}

// Refund handles POST /v1/payments/{payment_ref}/refund. A missing or zero
// amount refunds the remaining balance.
func (h *PaymentHandler) Refund(c *gin.Context) {
	merchant := middleware.Merchant(c)
	if merchant == nil {
		response.Error(c, apperror.ErrInvalidCredentials())
		return
	}

	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil && !isEmptyBody(err) {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	var idemKey *string
	if req.IdempotencyKey != "" {
		idemKey = &req.IdempotencyKey
	}

	refund, err := h.paymentSvc.Refund(c.Request.Context(), ports.RefundRequest{
		MerchantID:     merchant.ID,
		PaymentRef:     c.Param("payment_ref"),
		Amount:         req.Amount,
		Reason:         req.Reason,
		Notes:          req.Notes,
		IdempotencyKey: idemKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewRefundResponse(refund))
}

// ListRefunds handles GET /v1/payments/{payment_ref}/refunds.
func (h *PaymentHandler) ListRefunds(c *gin.Context) {
	merchant := middleware.Merchant(c)
	if merchant == nil {
		response.Error(c, apperror.ErrInvalidCredentials())
		return
	}

	refunds, err := h.paymentSvc.ListRefunds(c.Request.Context(), merchant.ID, c.Param("payment_ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewRefundListResponse(refunds))
}

// WebhookLogs handles GET /v1/webhooks/logs.
func (h *PaymentHandler) WebhookLogs(c *gin.Context) {
	merchant := middleware.Merchant(c)
	if merchant == nil {
		response.Error(c, apperror.ErrInvalidCredentials())
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.webhookSvc.ListLogs(c.Request.Context(), merchant.ID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWebhookLogListResponse(logs))
}
