package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is idempotent. The CHECK constraints and unique indexes are the
// store-side guarantees the ledger relies on.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
		id         UUID PRIMARY KEY,
		user_id    TEXT NOT NULL,
		balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		currency   VARCHAR(3) NOT NULL,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		version    INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT wallets_user_id_key UNIQUE (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id             UUID PRIMARY KEY,
		seq            BIGSERIAL NOT NULL,
		wallet_id      UUID NOT NULL REFERENCES wallets (id),
		user_id        TEXT NOT NULL,
		type           VARCHAR(32) NOT NULL,
		action         VARCHAR(8) NOT NULL CHECK (action IN ('CREDIT', 'DEBIT')),
		status         VARCHAR(16) NOT NULL CHECK (status IN ('PENDING', 'COMPLETED', 'FAILED', 'RELEASED')),
		amount         BIGINT NOT NULL CHECK (amount >= 0),
		balance_before BIGINT NOT NULL,
		balance_after  BIGINT NOT NULL,
		currency       VARCHAR(3) NOT NULL,
		sender_id      TEXT,
		receiver_id    TEXT,
		reference      TEXT,
		metadata       JSONB,
		created_at     TIMESTAMPTZ NOT NULL,
		committed_at   TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS transactions_reference_action_key
		ON transactions (reference, action) WHERE reference IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS transactions_single_reference_key
		ON transactions (reference) WHERE reference IS NOT NULL AND type IN ('FUND', 'PAYOUT')`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_wallet_created
		ON transactions (wallet_id, created_at DESC, seq DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_incoming
		ON transactions (user_id, action, status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_pair
		ON transactions (user_id, sender_id, created_at DESC)`,
}

// Migrate creates the ledger tables and indexes.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
