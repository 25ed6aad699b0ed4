package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Public identifier prefixes. A reference is its prefix plus the hex encoding
// of random bytes, so references are unguessable and easy to grep in logs.
const (
	orderRefPrefix   = "pf_order_"
	paymentRefPrefix = "pf_pay_"
	refundRefPrefix  = "pf_rfnd_"
	keyIDPrefix      = "pf_key_"
	keySecretPrefix  = "pf_sec_"

	refEntropyBytes    = 20
	secretEntropyBytes = 32
)

// RandomReferenceService implements ports.ReferenceService using crypto/rand.
type RandomReferenceService struct{}

// NewRandomReferenceService creates a new RandomReferenceService.
func NewRandomReferenceService() *RandomReferenceService {
	return &RandomReferenceService{}
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func prefixedRef(prefix string, entropy int) (string, error) {
	suffix, err := randomHex(entropy)
	if err != nil {
		return "", err
	}
	return prefix + suffix, nil
}

// NewOrderRef mints a public order reference.
func (s *RandomReferenceService) NewOrderRef() (string, error) {
	return prefixedRef(orderRefPrefix, refEntropyBytes)
}

// NewPaymentRef mints a public payment reference.
func (s *RandomReferenceService) NewPaymentRef() (string, error) {
	return prefixedRef(paymentRefPrefix, refEntropyBytes)
}

// NewRefundRef mints a public refund reference.
func (s *RandomReferenceService) NewRefundRef() (string, error) {
	return prefixedRef(refundRefPrefix, refEntropyBytes)
}

// NewKeyID mints the public half of an API credential pair.
func (s *RandomReferenceService) NewKeyID() (string, error) {
	return prefixedRef(keyIDPrefix, refEntropyBytes)
}

// NewKeySecret mints the secret half of an API credential pair. Callers show
// it once and store only its hash.
func (s *RandomReferenceService) NewKeySecret() (string, error) {
	return prefixedRef(keySecretPrefix, secretEntropyBytes)
}

// NewWebhookSecret mints a merchant webhook signing secret. No prefix: the
// value is only ever used as HMAC key material.
func (s *RandomReferenceService) NewWebhookSecret() (string, error) {
	return randomHex(secretEntropyBytes)
}
