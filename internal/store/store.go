/*
Package store persists wallets and ledger rows.

The Store is the only component that talks to the database. Balance changes
happen exclusively inside WithTx, where wallet rows are locked for the
duration of the unit of work. Ledger rows are append-only: the single
permitted update moves a PENDING row to a terminal status.

Uniqueness is enforced by the backing store, not by the caller:
  - one wallet per user
  - one row per (reference, action), so a transfer pair shares a reference
    while a second top-up with the same reference is rejected with ErrDuplicate
  - one FUND or PAYOUT row per reference, so single-sided rows of different
    actions cannot share a reference either

Implementations:
  - postgres.go: database/sql + lib/pq
  - memory/:     in-process implementation with the same semantics
*/
package store

import (
	"context"
	"errors"
	"time"

	"github.com/creatorhub/backend/internal/models"
)

var (
	// ErrNotFound is returned when a wallet or row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")

	// ErrVersionConflict is returned when an optimistic version check fails.
	ErrVersionConflict = errors.New("version conflict")

	// ErrNotPending is returned when settling a row that already reached a terminal status.
	ErrNotPending = errors.New("transaction is not pending")
)

// IncomingFilter selects settled CREDIT rows owned by a receiver.
type IncomingFilter struct {
	ReceiverID string
	SenderID   string // optional: restrict to one payer
	Types      []models.TxType
	Statuses   []models.TxStatus
	From       time.Time // inclusive, zero means unbounded
	To         time.Time // exclusive, zero means unbounded
}

// Matches applies the filter to a single row.
func (f IncomingFilter) Matches(tx models.Transaction) bool {
	if tx.UserID != f.ReceiverID || tx.Action != models.ActionCredit {
		return false
	}
	if f.SenderID != "" && tx.SenderID != f.SenderID {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, tx.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, tx.Status) {
		return false
	}
	if !f.From.IsZero() && tx.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !tx.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

// Tx is the view of the store inside one atomic unit of work.
type Tx interface {
	InsertWallet(ctx context.Context, w *models.Wallet) error
	// GetWalletForUpdate loads a wallet and holds its row lock until commit.
	GetWalletForUpdate(ctx context.Context, userID string) (*models.Wallet, error)
	UpdateWalletBalance(ctx context.Context, w *models.Wallet, newBalance int64) error
	SetWalletActive(ctx context.Context, walletID string, active bool) error

	FindByReference(ctx context.Context, reference string) ([]models.Transaction, error)
	FindByReferenceForUpdate(ctx context.Context, reference string) ([]models.Transaction, error)
	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	// SettleTransaction moves a PENDING row to a terminal status with its commit-time snapshot.
	SettleTransaction(ctx context.Context, id string, status models.TxStatus, before, after int64, at time.Time) error
}

// Store is the durable ledger store.
type Store interface {
	// WithTx runs fn atomically. A non-nil error from fn rolls everything back.
	WithTx(ctx context.Context, fn func(Tx) error) error

	GetWallet(ctx context.Context, userID string) (*models.Wallet, error)
	FindByReference(ctx context.Context, reference string) ([]models.Transaction, error)
	// ListTransactions returns a wallet's rows newest first.
	ListTransactions(ctx context.Context, walletID string, limit int) ([]models.Transaction, error)
	// WalletHistory returns every row of a wallet in commit order.
	WalletHistory(ctx context.Context, walletID string) ([]models.Transaction, error)

	SumIncomingByType(ctx context.Context, f IncomingFilter) (map[models.TxType]int64, error)
	// ScanIncoming streams matching rows newest first in a single query.
	ScanIncoming(ctx context.Context, f IncomingFilter, fn func(models.Transaction) error) error
}

func containsType(types []models.TxType, t models.TxType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func containsStatus(statuses []models.TxStatus, s models.TxStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}
