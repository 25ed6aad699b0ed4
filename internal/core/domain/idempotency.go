package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord ties an idempotency key to the order it created, so a
// replayed POST /v1/orders returns the original row.
type IdempotencyRecord struct {
	MerchantID  uuid.UUID `json:"merchant_id"`
	Key         string    `json:"key"`
	RequestHash string    `json:"request_hash"`
	OrderID     uuid.UUID `json:"order_id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// BuildIdempotencyKey constructs the cache key format shared by the redis
// fast path and logging.
func BuildIdempotencyKey(merchantID uuid.UUID, key string) string {
	return merchantID.String() + ":" + key
}

// HashRequest fingerprints a request body so a key reused with a different
// body can be rejected instead of silently replayed.
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
