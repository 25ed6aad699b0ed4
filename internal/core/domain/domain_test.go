package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOrder_IsPayable(t *testing.T) {
	tests := []struct {
		name   string
		status OrderStatus
		want   bool
	}{
		{"created", OrderStatusCreated, true},
		{"attempted", OrderStatusAttempted, true},
		{"paid", OrderStatusPaid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Status: tt.status}
			assert.Equal(t, tt.want, o.IsPayable())
		})
	}
}

func TestOrder_IsExpired(t *testing.T) {
	now := time.Now()

	fresh := &Order{Status: OrderStatusCreated, ExpiresAt: now.Add(time.Minute)}
	assert.False(t, fresh.IsExpired(now))

	stale := &Order{Status: OrderStatusAttempted, ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, stale.IsExpired(now))

	// A paid order never expires.
	paid := &Order{Status: OrderStatusPaid, ExpiresAt: now.Add(-time.Hour)}
	assert.False(t, paid.IsExpired(now))
}

func TestPayment_IsLive(t *testing.T) {
	tests := []struct {
		name   string
		status PaymentStatus
		want   bool
	}{
		{"created", PaymentStatusCreated, true},
		{"authorized", PaymentStatusAuthorized, true},
		{"captured", PaymentStatusCaptured, true},
		{"failed", PaymentStatusFailed, false},
		{"refunded", PaymentStatusRefunded, true},
		{"partially refunded", PaymentStatusPartiallyRefunded, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Payment{Status: tt.status}
			assert.Equal(t, tt.want, p.IsLive())
		})
	}
}

func TestPayment_IsRefundable(t *testing.T) {
	tests := []struct {
		name   string
		status PaymentStatus
		want   bool
	}{
		{"captured", PaymentStatusCaptured, true},
		{"partially refunded", PaymentStatusPartiallyRefunded, true},
		{"refunded", PaymentStatusRefunded, false},
		{"failed", PaymentStatusFailed, false},
		{"created", PaymentStatusCreated, false},
		{"authorized", PaymentStatusAuthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Payment{Status: tt.status}
			assert.Equal(t, tt.want, p.IsRefundable())
		})
	}
}

func TestPayment_RemainingRefundable(t *testing.T) {
	p := &Payment{Amount: 20000, AmountRefunded: 5000}
	assert.Equal(t, int64(15000), p.RemainingRefundable())
}

func TestCardLastFour(t *testing.T) {
	assert.Equal(t, "1111", CardLastFour("4111 1111 1111 1111"))
	assert.Equal(t, "0004", CardLastFour("6011-0009-9013-0004"))
	assert.Equal(t, "", CardLastFour("123"))
}

func TestDetectCardNetwork(t *testing.T) {
	tests := []struct {
		number string
		want   string
	}{
		{"4111 1111 1111 1111", "Visa"},
		{"5500 0000 0000 0004", "Mastercard"},
		{"6011 0009 9013 0004", "RuPay"},
		{"3400 0000 0000 009", "Amex"},
		{"9999 0000 0000 0000", "Unknown"},
		{"", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectCardNetwork(tt.number))
		})
	}
}

func TestTransaction_IsRefundable(t *testing.T) {
	tests := []struct {
		name   string
		status TransactionStatus
		want   bool
	}{
		{"success", TransactionStatusSuccess, true},
		{"failed", TransactionStatusFailed, false},
		{"refunded", TransactionStatusRefunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Transaction{Status: tt.status}
			assert.Equal(t, tt.want, tx.IsRefundable())
		})
	}
}

func TestRupeesToPaise(t *testing.T) {
	assert.Equal(t, int64(10000), RupeesToPaise(100))
	assert.Equal(t, int64(49900), RupeesToPaise(499))
	assert.Equal(t, int64(1050), RupeesToPaise(10.50))
	// Float noise must not drop a paisa.
	assert.Equal(t, int64(1999), RupeesToPaise(19.99))
}

func TestPaiseToRupees(t *testing.T) {
	assert.InDelta(t, 499.0, PaiseToRupees(49900), 1e-9)
	assert.InDelta(t, 10.5, PaiseToRupees(1050), 1e-9)
}

func TestWebhookBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 32 * time.Second},
		{9, 512 * time.Second},
		{10, 600 * time.Second},
		{20, 600 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, WebhookBackoff(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestWebhookEvent_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status WebhookStatus
		want   bool
	}{
		{"pending", WebhookStatusPending, false},
		{"delivered", WebhookStatusDelivered, true},
		{"failed", WebhookStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &WebhookEvent{Status: tt.status}
			assert.Equal(t, tt.want, e.IsTerminal())
		})
	}
}

func TestTruncateResponseBody(t *testing.T) {
	short := "ok"
	assert.Equal(t, short, TruncateResponseBody(short))

	long := make([]byte, MaxLoggedResponseBytes+100)
	for i := range long {
		long[i] = 'x'
	}
	got := TruncateResponseBody(string(long))
	assert.Len(t, got, MaxLoggedResponseBytes)
}

func TestMerchant_HasWebhook(t *testing.T) {
	url := "https://example.com/hook"
	empty := ""

	assert.True(t, (&Merchant{WebhookURL: &url}).HasWebhook())
	assert.False(t, (&Merchant{WebhookURL: &empty}).HasWebhook())
	assert.False(t, (&Merchant{}).HasWebhook())
}

func TestBuildIdempotencyKey(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := BuildIdempotencyKey(id, "abc")
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000:abc", key)
}

func TestHashRequest(t *testing.T) {
	a := HashRequest([]byte(`{"amount":100}`))
	b := HashRequest([]byte(`{"amount":100}`))
	c := HashRequest([]byte(`{"amount":200}`))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestFraudHistory_HasAmount(t *testing.T) {
	h := FraudHistory{Amounts: []int64{1000, 2500}}
	assert.True(t, h.HasAmount(1000))
	assert.False(t, h.HasAmount(999))
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleUser))
	assert.True(t, ValidRole(RoleMerchant))
	assert.True(t, ValidRole(RoleAdmin))
	assert.False(t, ValidRole(Role("superuser")))
}

func TestValidPaymentMethod(t *testing.T) {
	assert.True(t, ValidPaymentMethod(PaymentMethodUPI))
	assert.True(t, ValidPaymentMethod(PaymentMethodCard))
	assert.True(t, ValidPaymentMethod(PaymentMethodNetbanking))
	assert.True(t, ValidPaymentMethod(PaymentMethodWallet))
	assert.False(t, ValidPaymentMethod(PaymentMethod("crypto")))
}
