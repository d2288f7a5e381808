package models

import (
	"time"
)

// Wallet holds one user's balance in minor units (cents).
type Wallet struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Balance   int64     `json:"balance" db:"balance"` // in cents
	Currency  string    `json:"currency" db:"currency"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	Version   int       `json:"version" db:"version"` // for optimistic locking
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// WalletView is a wallet as shown to callers, amounts in display units.
type WalletView struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
	IsActive bool   `json:"isActive"`
}
