package handler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strconv"

	"payflow/internal/adapter/http/dto"
	"payflow/internal/adapter/http/middleware"
	"payflow/internal/core/ports"
	"payflow/pkg/apperror"
	"payflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderIdempotencyKey carries the client's idempotency key; it wins over
// the body field when both are present.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotentReplayed marks a response served from a stored prior
// create instead of a fresh insert.
const HeaderIdempotentReplayed = "X-Idempotent-Replayed"

// OrderHandler handles the merchant order API.
type OrderHandler struct {
	orderSvc ports.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc ports.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// Create handles POST /v1/orders. Replays of a known idempotency key return
// the stored order with 200 and X-Idempotent-Replayed: true; fresh creates
// return 201.
func (h *OrderHandler) Create(c *gin.Context) {
	merchant := middleware.Merchant(c)
	if merchant == nil {
		response.Error(c, apperror.ErrInvalidCredentials())
		return
	}

	// The raw bytes feed the idempotency fingerprint, so read them before
	// binding and put them back for the binder.
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	key := c.GetHeader(HeaderIdempotencyKey)
	if key == "" {
		key = req.IdempotencyKey
	}
	if key == "" {
		// No key means no replay semantics; a synthesized key keeps every
		// create on the same code path.
		key = uuid.NewString()
	}

	sum := sha256.Sum256(raw)
	order, replayed, err := h.orderSvc.Create(c.Request.Context(), ports.CreateOrderRequest{
		MerchantID:     merchant.ID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Receipt:        req.Receipt,
		Notes:          req.Notes,
		AutoCapture:    req.AutoCapture,
		IdempotencyKey: key,
		RequestHash:    hex.EncodeToString(sum[:]),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if replayed {
		c.Header(HeaderIdempotentReplayed, "true")
		response.OK(c, dto.NewOrderResponse(order))
		return
	}
	response.Created(c, dto.NewOrderResponse(order))
}

// List handles GET /v1/orders.
func (h *OrderHandler) List(c *gin.Context) {
	merchant := middleware.Merchant(c)
	if merchant == nil {
		response.Error(c, apperror.ErrInvalidCredentials())
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	orders, err := h.orderSvc.List(c.Request.Context(), merchant.ID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewOrderListResponse(orders))
}

// Get handles GET /v1/orders/{order_ref}.
func (h *OrderHandler) Get(c *gin.Context) {
	merchant := middleware.Merchant(c)
	if merchant == nil {
		response.Error(c, apperror.ErrInvalidCredentials())
		return
	}

	order, err := h.orderSvc.Get(c.Request.Context(), merchant.ID, c.Param("order_ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewOrderResponse(order))
}

// ListPayments handles GET /v1/orders/{order_ref}/payments.
func (h *OrderHandler) ListPayments(c *gin.Context) {
	merchant := middleware.Merchant(c)
	if merchant == nil {
		response.Error(c, apperror.ErrInvalidCredentials())
		return
	}

	payments, err := h.orderSvc.ListPayments(c.Request.Context(), merchant.ID, c.Param("order_ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPaymentListResponse(payments))
}
