package models

import (
	"time"
)

// TxType is the business meaning of a ledger row.
type TxType string

const (
	TxTypeFund          TxType = "FUND"
	TxTypeTransfer      TxType = "TRANSFER"
	TxTypeTip           TxType = "TIP"
	TxTypeSubscription  TxType = "SUBSCRIPTION"
	TxTypeMenuPurchase  TxType = "MENU_PURCHASE"
	TxTypeMediaPurchase TxType = "MEDIA_PURCHASE"
	TxTypeCallSession   TxType = "CALL_SESSION"
	TxTypePayout        TxType = "PAYOUT"
)

// AllTxTypes lists every known type in a stable order.
var AllTxTypes = []TxType{
	TxTypeFund,
	TxTypeTransfer,
	TxTypeTip,
	TxTypeSubscription,
	TxTypeMenuPurchase,
	TxTypeMediaPurchase,
	TxTypeCallSession,
	TxTypePayout,
}

// EarningTxTypes are the counterparty types that count as a receiver's earnings.
var EarningTxTypes = []TxType{
	TxTypeTransfer,
	TxTypeTip,
	TxTypeSubscription,
	TxTypeMenuPurchase,
	TxTypeMediaPurchase,
	TxTypeCallSession,
}

// PurchaseTxTypes may be used with a counterparty debit.
var PurchaseTxTypes = []TxType{
	TxTypeTip,
	TxTypeSubscription,
	TxTypeMenuPurchase,
	TxTypeMediaPurchase,
	TxTypeCallSession,
}

func (t TxType) Valid() bool {
	for _, known := range AllTxTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsPurchase reports whether t can tag a counterparty debit.
// IsSingleSided reports whether the type writes one row per reference
// instead of a DEBIT/CREDIT pair.
func (t TxType) IsSingleSided() bool {
	return t == TxTypeFund || t == TxTypePayout
}

func (t TxType) IsPurchase() bool {
	for _, known := range PurchaseTxTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TxAction carries the direction of a row relative to its wallet.
type TxAction string

const (
	ActionCredit TxAction = "CREDIT"
	ActionDebit  TxAction = "DEBIT"
)

// Sign returns +1 for credits and -1 for debits.
func (a TxAction) Sign() int64 {
	if a == ActionDebit {
		return -1
	}
	return 1
}

// TxStatus is the lifecycle state of a row. COMPLETED, FAILED and RELEASED are terminal.
type TxStatus string

const (
	StatusPending   TxStatus = "PENDING"
	StatusCompleted TxStatus = "COMPLETED"
	StatusFailed    TxStatus = "FAILED"
	// StatusReleased marks escrowed funds released to the receiver. Written outside the core.
	StatusReleased TxStatus = "RELEASED"
)

// SettledStatuses are the statuses that moved money.
var SettledStatuses = []TxStatus{StatusCompleted, StatusReleased}

func (s TxStatus) Terminal() bool {
	return s != StatusPending
}

// Settled reports whether a row in this status has affected a balance.
func (s TxStatus) Settled() bool {
	return s == StatusCompleted || s == StatusReleased
}

// Transaction is one immutable ledger row owned by a wallet.
type Transaction struct {
	ID            string     `json:"id" db:"id"`
	Seq           int64      `json:"seq" db:"seq"`
	WalletID      string     `json:"wallet_id" db:"wallet_id"`
	UserID        string     `json:"user_id" db:"user_id"` // wallet owner
	Type          TxType     `json:"type" db:"type"`
	Action        TxAction   `json:"action" db:"action"`
	Status        TxStatus   `json:"status" db:"status"`
	Amount        int64      `json:"amount" db:"amount"` // in cents, never negative
	BalanceBefore int64      `json:"balance_before" db:"balance_before"`
	BalanceAfter  int64      `json:"balance_after" db:"balance_after"`
	Currency      string     `json:"currency" db:"currency"`
	SenderID      string     `json:"sender_id,omitempty" db:"sender_id"`
	ReceiverID    string     `json:"receiver_id,omitempty" db:"receiver_id"`
	Reference     string     `json:"reference,omitempty" db:"reference"`
	Metadata      Metadata   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	CommittedAt   *time.Time `json:"committed_at,omitempty" db:"committed_at"`
}

// SignedAmount is the balance effect of the row once settled.
func (t Transaction) SignedAmount() int64 {
	return t.Action.Sign() * t.Amount
}

// TransactionView is a ledger row in display units.
type TransactionView struct {
	ID            string    `json:"id"`
	Type          TxType    `json:"type"`
	Action        TxAction  `json:"action"`
	Status        TxStatus  `json:"status"`
	Amount        string    `json:"amount"`
	BalanceBefore string    `json:"balanceBefore"`
	BalanceAfter  string    `json:"balanceAfter"`
	Currency      string    `json:"currency"`
	SenderID      string    `json:"senderId,omitempty"`
	ReceiverID    string    `json:"receiverId,omitempty"`
	Reference     string    `json:"reference,omitempty"`
	Metadata      Metadata  `json:"metadata,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}
