package handler

import (
	"payflow/internal/adapter/http/dto"
	"payflow/internal/core/domain"
	"payflow/internal/core/ports"
	"payflow/pkg/apperror"
	"payflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// CheckoutHandler serves the hosted checkout page API. These routes are
// public: the order_ref in the URL is the only credential, which is why
// responses stay minimal.
type CheckoutHandler struct {
	paymentSvc ports.PaymentService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(paymentSvc ports.PaymentService) *CheckoutHandler {
	return &CheckoutHandler{paymentSvc: paymentSvc}
}

// GetOrder handles GET /pay/{order_ref}/merchant. The checkout page shows
// who is being paid and how much before asking for an instrument.
func (h *CheckoutHandler) GetOrder(c *gin.Context) {
	order, merchant, err := h.paymentSvc.CheckoutOrder(c.Request.Context(), c.Param("order_ref"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewCheckoutOrderResponse(order, merchant))
}

// Pay handles POST /pay/{order_ref}: a payer submits an instrument against
// an open order. Card expiry and CVV are accepted for form compatibility
// and dropped here; they never travel past this function.
func (h *CheckoutHandler) Pay(c *gin.Context) {
	var req dto.SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	var cardName string
	if req.CardName != nil {
		cardName = *req.CardName
	}

	payment, err := h.paymentSvc.SubmitPayment(c.Request.Context(), ports.SubmitPaymentRequest{
		OrderRef:   c.Param("order_ref"),
		Method:     domain.PaymentMethod(req.Method),
		VPA:        req.VPA,
		CardNumber: req.CardNumber,
		CardName:   cardName,
		Email:      req.Email,
		Contact:    req.Contact,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewCheckoutPaymentResponse(payment))
}
