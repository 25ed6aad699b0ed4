package domain

import (
	"time"

	"github.com/google/uuid"
)

// Merchant represents a registered merchant profile. A user of role merchant
// owns at most one merchant row.
type Merchant struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	BusinessName  string    `json:"business_name"`
	BusinessEmail string    `json:"business_email"`
	Website       *string   `json:"website,omitempty"`
	WebhookURL    *string   `json:"webhook_url,omitempty"`
	WebhookSecret string    `json:"-"` // 32 random bytes, base16. Never expose.
	CreatedAt     time.Time `json:"created_at"`
}

// HasWebhook returns true if the merchant can receive webhook deliveries.
func (m *Merchant) HasWebhook() bool {
	return m.WebhookURL != nil && *m.WebhookURL != ""
}

// ApiKey represents an API credential pair issued to a merchant. The plaintext
// secret is revealed once at issue time; only its hash is stored.
type ApiKey struct {
	ID            uuid.UUID  `json:"id"`
	MerchantID    uuid.UUID  `json:"merchant_id"`
	KeyID         string     `json:"key_id"`
	KeySecretHash string     `json:"-"` // bcrypt hash, never expose
	Label         string     `json:"label"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
}
