package dto

import (
	"time"

	"payflow/internal/core/domain"
	"payflow/internal/core/ports"
)

// --- Auth ---

// RegisterRequest is the request body for dashboard account registration.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=128"`
	Role     string `json:"role" binding:"omitempty,oneof=user merchant admin"`
}

// LoginRequest is the request body for dashboard login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the bearer token issued on successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

// ChangePasswordRequest is the request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6,max=128"`
}

// UserResponse is the public view of a dashboard account.
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// --- Merchants ---

// CreateMerchantRequest is the request body for merchant onboarding.
type CreateMerchantRequest struct {
	BusinessName  string  `json:"business_name" binding:"required,min=1,max=200"`
	BusinessEmail string  `json:"business_email" binding:"required,email"`
	Website       *string `json:"website,omitempty" binding:"omitempty,safe_url"`
	WebhookURL    *string `json:"webhook_url,omitempty" binding:"omitempty,safe_url"`
}

// MerchantResponse is the merchant profile view. The webhook secret itself is
// never returned, only whether one exists.
type MerchantResponse struct {
	ID               string  `json:"id"`
	BusinessName     string  `json:"business_name"`
	BusinessEmail    string  `json:"business_email"`
	Website          *string `json:"website,omitempty"`
	WebhookURL       *string `json:"webhook_url,omitempty"`
	WebhookSecretSet bool    `json:"webhook_secret_set"`
	CreatedAt        string  `json:"created_at"`
}

func NewMerchantResponse(m *domain.Merchant) MerchantResponse {
	return MerchantResponse{
		ID:               m.ID.String(),
		BusinessName:     m.BusinessName,
		BusinessEmail:    m.BusinessEmail,
		Website:          m.Website,
		WebhookURL:       m.WebhookURL,
		WebhookSecretSet: m.WebhookSecret != "",
		CreatedAt:        m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// IssueKeyRequest is the request body for issuing an API key pair.
type IssueKeyRequest struct {
	Label string `json:"label" binding:"omitempty,max=100"`
}

// IssuedKeyResponse reveals the key secret exactly once, at issue time.
type IssuedKeyResponse struct {
	KeyID     string `json:"key_id"`
	KeySecret string `json:"key_secret"`
	Label     string `json:"label"`
	CreatedAt string `json:"created_at"`
}

func NewIssuedKeyResponse(k *ports.IssuedKey) IssuedKeyResponse {
	return IssuedKeyResponse{
		KeyID:     k.KeyID,
		KeySecret: k.KeySecret,
		Label:     k.Label,
		CreatedAt: k.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CheckoutURLResponse carries the hosted checkout link for an order.
type CheckoutURLResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

// --- Orders ---

// CreateOrderRequest is the request body for order creation. The idempotency
// key may arrive here or in the Idempotency-Key header; the header wins.
type CreateOrderRequest struct {
	Amount         int64   `json:"amount" binding:"required,gt=0"`
	Currency       string  `json:"currency" binding:"required,len=3"`
	Receipt        *string `json:"receipt,omitempty" binding:"omitempty,max=256"`
	Notes          *string `json:"notes,omitempty" binding:"omitempty,max=4096"`
	AutoCapture    *bool   `json:"auto_capture,omitempty"`
	IdempotencyKey string  `json:"idempotency_key,omitempty" binding:"omitempty,max=255"`
}

// OrderResponse is the merchant-facing view of an order.
type OrderResponse struct {
	ID          string  `json:"id"`
	OrderRef    string  `json:"order_ref"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Receipt     *string `json:"receipt,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Status      string  `json:"status"`
	Attempts    int     `json:"attempts"`
	AutoCapture bool    `json:"auto_capture"`
	ExpiresAt   string  `json:"expires_at"`
	CreatedAt   string  `json:"created_at"`
}

func NewOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:          o.ID.String(),
		OrderRef:    o.OrderRef,
		Amount:      o.Amount,
		Currency:    o.Currency,
		Receipt:     o.Receipt,
		Notes:       o.Notes,
		Status:      string(o.Status),
		Attempts:    o.Attempts,
		AutoCapture: o.AutoCapture,
		ExpiresAt:   o.ExpiresAt.UTC().Format(time.RFC3339),
		CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func NewOrderListResponse(orders []domain.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i]))
	}
	return out
}

// --- Payments ---

// SubmitPaymentRequest is the request body for a checkout payment attempt.
// Raw card numbers and CVVs live only in this struct for the duration of the
// request; they are never echoed back or persisted.
type SubmitPaymentRequest struct {
	Method     string  `json:"method" binding:"required"`
	VPA        string  `json:"vpa,omitempty" binding:"omitempty,max=256"`
	CardNumber string  `json:"card_number,omitempty" binding:"omitempty,max=32"`
	CardExpiry string  `json:"card_expiry,omitempty" binding:"omitempty,max=8"`
	CardCVV    string  `json:"card_cvv,omitempty" binding:"omitempty,max=6"`
	CardName   *string `json:"card_name,omitempty" binding:"omitempty,max=100"`
	Email      string  `json:"email,omitempty" binding:"omitempty,max=256"`
	Contact    string  `json:"contact,omitempty" binding:"omitempty,max=32"`
}

// PaymentResponse is the view of a payment. Sealed contact fields stay out;
// card data is reduced to last four, network and holder name.
type PaymentResponse struct {
	ID             string   `json:"id"`
	PaymentRef     string   `json:"payment_ref"`
	OrderRef       string   `json:"order_ref"`
	Amount         int64    `json:"amount"`
	Currency       string   `json:"currency"`
	Method         string   `json:"method"`
	Status         string   `json:"status"`
	CardLast4      *string  `json:"card_last4,omitempty"`
	CardNetwork    *string  `json:"card_network,omitempty"`
	AmountRefunded int64    `json:"amount_refunded"`
	IsFlagged      bool     `json:"is_flagged"`
	FraudRules     []string `json:"fraud_rules,omitempty"`
	ErrorCode      *string  `json:"error_code,omitempty"`
	ErrorReason    *string  `json:"error_reason,omitempty"`
	CreatedAt      string   `json:"created_at"`
	CapturedAt     *string  `json:"captured_at,omitempty"`
}

func NewPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:             p.ID.String(),
		PaymentRef:     p.PaymentRef,
		OrderRef:       p.OrderRef,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Method:         string(p.Method),
		Status:         string(p.Status),
		CardLast4:      p.CardLast4,
		CardNetwork:    p.CardNetwork,
		AmountRefunded: p.AmountRefunded,
		IsFlagged:      p.IsFlagged,
		FraudRules:     p.FraudRules,
		ErrorCode:      p.ErrorCode,
		ErrorReason:    p.ErrorReason,
		CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.CapturedAt != nil {
		s := p.CapturedAt.UTC().Format(time.RFC3339)
		resp.CapturedAt = &s
	}
	return resp
}

func NewPaymentListResponse(payments []domain.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, NewPaymentResponse(&payments[i]))
	}
	return out
}

// CaptureRequest is the request body for a payment capture. Amount, when
// present, must equal the authorized amount; partial capture is unsupported.
type CaptureRequest struct {
	Amount int64 `json:"amount" binding:"omitempty,gte=0"`
}

// --- Refunds ---

// RefundRequest is the request body for refunding a captured payment.
// A zero or absent amount refunds the full remaining balance.
type RefundRequest struct {
	Amount         int64   `json:"amount" binding:"omitempty,gte=0"`
	Reason         *string `json:"reason,omitempty" binding:"omitempty,max=256"`
	Notes          *string `json:"notes,omitempty" binding:"omitempty,max=1024"`
	IdempotencyKey string  `json:"idempotency_key,omitempty" binding:"omitempty,max=255"`
}

// RefundResponse is the view of a refund.
type RefundResponse struct {
	ID          string  `json:"id"`
	RefundRef   string  `json:"refund_ref"`
	PaymentID   string  `json:"payment_id"`
	Amount      int64   `json:"amount"`
	Reason      *string `json:"reason,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	ProcessedAt *string `json:"processed_at,omitempty"`
}

func NewRefundResponse(r *domain.Refund) RefundResponse {
	resp := RefundResponse{
		ID:        r.ID.String(),
		RefundRef: r.RefundRef,
		PaymentID: r.PaymentID.String(),
		Amount:    r.Amount,
		Reason:    r.Reason,
		Notes:     r.Notes,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.ProcessedAt != nil {
		s := r.ProcessedAt.UTC().Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	return resp
}

func NewRefundListResponse(refunds []domain.Refund) []RefundResponse {
	out := make([]RefundResponse, 0, len(refunds))
	for i := range refunds {
		out = append(out, NewRefundResponse(&refunds[i]))
	}
	return out
}

// --- Checkout ---

// CheckoutPaymentResponse is the public result of a checkout submit. It is
// deliberately narrower than PaymentResponse: the payer sees the outcome,
// not the merchant's fraud or card metadata.
type CheckoutPaymentResponse struct {
	PaymentRef  string  `json:"payment_ref"`
	OrderRef    string  `json:"order_ref"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Method      string  `json:"method"`
	Status      string  `json:"status"`
	IsFlagged   bool    `json:"is_flagged"`
	ErrorCode   *string `json:"error_code,omitempty"`
	ErrorReason *string `json:"error_reason,omitempty"`
}

func NewCheckoutPaymentResponse(p *domain.Payment) CheckoutPaymentResponse {
	return CheckoutPaymentResponse{
		PaymentRef:  p.PaymentRef,
		OrderRef:    p.OrderRef,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Method:      string(p.Method),
		Status:      string(p.Status),
		IsFlagged:   p.IsFlagged,
		ErrorCode:   p.ErrorCode,
		ErrorReason: p.ErrorReason,
	}
}

// CheckoutOrderResponse is the public view of an order shown on the hosted
// checkout page. It names the merchant but exposes nothing else about them.
type CheckoutOrderResponse struct {
	MerchantName string `json:"merchant_name"`
	OrderRef     string `json:"order_ref"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

func NewCheckoutOrderResponse(o *domain.Order, m *domain.Merchant) CheckoutOrderResponse {
	return CheckoutOrderResponse{
		MerchantName: m.BusinessName,
		OrderRef:     o.OrderRef,
		Amount:       o.Amount,
		Currency:     o.Currency,
		Status:       string(o.Status),
	}
}

// --- Webhooks ---

// WebhookLogResponse is one delivery attempt record.
type WebhookLogResponse struct {
	ID             string `json:"id"`
	EventID        int64  `json:"event_id"`
	Event          string `json:"event"`
	TargetURL      string `json:"target_url"`
	ResponseStatus *int   `json:"response_status,omitempty"`
	ResponseBody   string `json:"response_body"`
	Success        bool   `json:"success"`
	CreatedAt      string `json:"created_at"`
}

func NewWebhookLogResponse(l *domain.WebhookLog) WebhookLogResponse {
	return WebhookLogResponse{
		ID:             l.ID.String(),
		EventID:        l.EventID,
		Event:          l.Event,
		TargetURL:      l.TargetURL,
		ResponseStatus: l.ResponseStatus,
		ResponseBody:   l.ResponseBody,
		Success:        l.Success,
		CreatedAt:      l.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func NewWebhookLogListResponse(logs []domain.WebhookLog) []WebhookLogResponse {
	out := make([]WebhookLogResponse, 0, len(logs))
	for i := range logs {
		out = append(out, NewWebhookLogResponse(&logs[i]))
	}
	return out
}

// --- Legacy transactions ---

// CreateTransactionRequest is the legacy dashboard request body. Amounts are
// rupee floats here and only here; conversion to paise happens immediately.
type CreateTransactionRequest struct {
	Amount         float64 `json:"amount" binding:"required,gt=0"`
	PaymentMethod  string  `json:"payment_method" binding:"required"`
	IdempotencyKey *string `json:"idempotency_key,omitempty" binding:"omitempty,max=255"`
}

// TransactionResponse is the legacy dashboard transaction view, in rupees.
type TransactionResponse struct {
	ID            string   `json:"id"`
	Amount        float64  `json:"amount"`
	PaymentMethod string   `json:"payment_method"`
	Status        string   `json:"status"`
	IsFlagged     bool     `json:"is_flagged"`
	FraudRules    []string `json:"fraud_rules,omitempty"`
	CreatedAt     string   `json:"created_at"`
}

func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            t.ID.String(),
		Amount:        domain.PaiseToRupees(t.AmountPaise),
		PaymentMethod: string(t.PaymentMethod),
		Status:        string(t.Status),
		IsFlagged:     t.IsFlagged,
		FraudRules:    t.FraudRules,
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func NewTransactionListResponse(txns []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, NewTransactionResponse(&txns[i]))
	}
	return out
}

// --- Admin ---

// AdminStatsResponse aggregates both the gateway and legacy counters.
type AdminStatsResponse struct {
	Transactions ports.TransactionStats `json:"transactions"`
	Gateway      ports.GatewayStats     `json:"gateway"`
}

// FlaggedResponse lists flagged activity across both payment surfaces.
type FlaggedResponse struct {
	Payments     []PaymentResponse     `json:"payments"`
	Transactions []TransactionResponse `json:"transactions"`
}
