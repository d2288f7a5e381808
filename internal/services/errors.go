package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/internal/money"
	"github.com/creatorhub/backend/internal/store"
)

var (
	// Validation errors, rejected before the store is touched.
	ErrInvalidAmount          = money.ErrInvalidAmount
	ErrSelfTransferNotAllowed = errors.New("cannot transfer to own wallet")
	ErrInvalidTxType          = errors.New("invalid transaction type")
	ErrReferenceRequired      = errors.New("reference is required")
	ErrInvalidPeriod          = errors.New("invalid month or year")
	ErrCurrencyMismatch       = errors.New("wallets hold different currencies")

	// State errors, detected inside the unit of work.
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrWalletInactive      = errors.New("wallet is inactive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyExists       = errors.New("wallet already exists")
	ErrUserNotFound        = errors.New("user not found")

	// Idempotency errors.
	ErrDuplicateReference = errors.New("reference already processed")
	ErrReferenceConflict  = errors.New("reference conflicts with an unfinished or failed transaction")
	ErrReferenceNotFound  = errors.New("reference not found")

	// ErrConcurrentModification is an infrastructure conflict. The core never retries it.
	ErrConcurrentModification = errors.New("concurrent modification, try again")
)

// InsufficientBalanceError reports how much was missing.
type InsufficientBalanceError struct {
	UserID    string
	Balance   int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for user %s: have %s, need %s",
		e.UserID, money.ToDisplayUnits(e.Balance), money.ToDisplayUnits(e.Requested))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// DuplicateReferenceError carries the rows that already hold the reference.
type DuplicateReferenceError struct {
	Reference string
	Existing  []models.Transaction
}

func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("reference %q already processed", e.Reference)
}

func (e *DuplicateReferenceError) Unwrap() error { return ErrDuplicateReference }

// ReferenceConflictError is returned when a reference is held by a PENDING or FAILED row.
type ReferenceConflictError struct {
	Reference string
	Status    string
}

func (e *ReferenceConflictError) Error() string {
	return fmt.Sprintf("reference %q is held by a %s transaction", e.Reference, e.Status)
}

func (e *ReferenceConflictError) Unwrap() error { return ErrReferenceConflict }

// Kind maps an error to a stable machine-readable code.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrSelfTransferNotAllowed):
		return "self_transfer_not_allowed"
	case errors.Is(err, ErrInvalidTxType):
		return "invalid_type"
	case errors.Is(err, ErrReferenceRequired):
		return "reference_required"
	case errors.Is(err, ErrInvalidPeriod):
		return "invalid_period"
	case errors.Is(err, ErrCurrencyMismatch):
		return "currency_mismatch"
	case errors.Is(err, ErrInvalidWebhook):
		return "invalid_webhook"
	case errors.Is(err, ErrWalletNotFound):
		return "wallet_not_found"
	case errors.Is(err, ErrWalletInactive):
		return "wallet_inactive"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrDuplicateReference):
		return "already_processed"
	case errors.Is(err, ErrReferenceConflict):
		return "reference_conflict"
	case errors.Is(err, ErrReferenceNotFound):
		return "reference_not_found"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps an error to the status code a handler should answer with.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "invalid_amount", "self_transfer_not_allowed", "invalid_type", "reference_required", "invalid_period",
		"currency_mismatch", "invalid_webhook":
		return http.StatusBadRequest
	case "wallet_not_found", "user_not_found", "reference_not_found":
		return http.StatusNotFound
	case "wallet_inactive":
		return http.StatusForbidden
	case "insufficient_balance":
		return http.StatusUnprocessableEntity
	case "already_exists", "reference_conflict", "concurrent_modification":
		return http.StatusConflict
	case "already_processed":
		return http.StatusOK
	case "timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// translateStoreErr maps store-level conflicts onto the service taxonomy.
func translateStoreErr(err error) error {
	if errors.Is(err, store.ErrVersionConflict) {
		return fmt.Errorf("%w: %v", ErrConcurrentModification, err)
	}
	return err
}
