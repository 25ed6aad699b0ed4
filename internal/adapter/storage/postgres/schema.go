package postgres

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// schemaStatements create the full schema on startup. Every statement is
// idempotent so a restart against an existing database is a no-op.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS merchants (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL UNIQUE REFERENCES users(id),
		business_name TEXT NOT NULL,
		business_email TEXT NOT NULL,
		website TEXT,
		webhook_url TEXT,
		webhook_secret TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY,
		merchant_id UUID NOT NULL REFERENCES merchants(id),
		key_id TEXT NOT NULL UNIQUE,
		key_secret_hash TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_used_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		merchant_id UUID NOT NULL REFERENCES merchants(id),
		order_ref TEXT NOT NULL UNIQUE,
		amount BIGINT NOT NULL,
		currency TEXT NOT NULL,
		receipt TEXT,
		notes TEXT,
		status TEXT NOT NULL,
		attempts INT NOT NULL DEFAULT 0,
		auto_capture BOOLEAN NOT NULL DEFAULT TRUE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_merchant_created
		ON orders (merchant_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id),
		payment_ref TEXT NOT NULL UNIQUE,
		amount BIGINT NOT NULL,
		currency TEXT NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		payer_key TEXT NOT NULL DEFAULT '',
		vpa_sealed TEXT NOT NULL DEFAULT '',
		email_sealed TEXT NOT NULL DEFAULT '',
		contact_sealed TEXT NOT NULL DEFAULT '',
		card_last4 TEXT,
		card_network TEXT,
		card_name TEXT,
		amount_refunded BIGINT NOT NULL DEFAULT 0,
		is_flagged BOOLEAN NOT NULL DEFAULT FALSE,
		fraud_rules TEXT[] NOT NULL DEFAULT '{}',
		error_code TEXT,
		error_reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		captured_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_order ON payments (order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_payer_window
		ON payments (payer_key, created_at)`,
	`CREATE TABLE IF NOT EXISTS refunds (
		id UUID PRIMARY KEY,
		payment_id UUID NOT NULL REFERENCES payments(id),
		refund_ref TEXT NOT NULL UNIQUE,
		amount BIGINT NOT NULL,
		reason TEXT,
		notes TEXT,
		status TEXT NOT NULL,
		idempotency_key TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_refunds_idem
		ON refunds (payment_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS webhook_events (
		id BIGSERIAL PRIMARY KEY,
		merchant_id UUID NOT NULL REFERENCES merchants(id),
		event TEXT NOT NULL,
		payload JSONB NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INT NOT NULL DEFAULT 0,
		next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		locked_at TIMESTAMPTZ,
		last_response_code INT,
		last_response_body TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		delivered_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_events_due
		ON webhook_events (next_attempt_at) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS webhook_logs (
		id UUID PRIMARY KEY,
		merchant_id UUID NOT NULL,
		event_id BIGINT NOT NULL,
		event TEXT NOT NULL,
		target_url TEXT NOT NULL,
		response_status INT,
		response_body TEXT NOT NULL DEFAULT '',
		success BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_logs_merchant_created
		ON webhook_logs (merchant_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		merchant_id UUID NOT NULL,
		key TEXT NOT NULL,
		request_hash TEXT NOT NULL,
		order_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (merchant_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		amount_paise BIGINT NOT NULL,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL,
		idempotency_key TEXT,
		is_flagged BOOLEAN NOT NULL DEFAULT FALSE,
		fraud_rules TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_idem
		ON transactions (user_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_created
		ON transactions (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL DEFAULT '',
		details TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates any missing tables and indexes.
func EnsureSchema(ctx context.Context, pool Pool, log zerolog.Logger) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	log.Info().Int("statements", len(schemaStatements)).Msg("database schema ensured")
	return nil
}
