package services

import (
	"context"
	"fmt"

	"github.com/creatorhub/backend/internal/models"
)

// referenceLookup loads every row holding a reference. Inside a unit of work
// it is Tx.FindByReferenceForUpdate, outside it is Store.FindByReference.
type referenceLookup func(ctx context.Context, reference string) ([]models.Transaction, error)

// IdempotencyGuard decides what an incoming reference means. The unique
// (reference, action) index is the store-side backstop; the guard turns its
// findings into a replay or a conflict.
type IdempotencyGuard struct{}

func NewIdempotencyGuard() *IdempotencyGuard {
	return &IdempotencyGuard{}
}

// CheckAndReserve returns nil when reference is free. A reference held only by
// rows of txType in one of the replayable statuses yields a
// *DuplicateReferenceError carrying those rows. Anything else is a
// *ReferenceConflictError.
func (g *IdempotencyGuard) CheckAndReserve(ctx context.Context, lookup referenceLookup, reference string,
	txType models.TxType, replayable ...models.TxStatus) error {
	if reference == "" {
		return nil
	}
	if len(replayable) == 0 {
		replayable = models.SettledStatuses
	}

	existing, err := lookup(ctx, reference)
	if err != nil {
		return fmt.Errorf("lookup reference: %w", err)
	}
	if len(existing) == 0 {
		return nil
	}

	for _, tx := range existing {
		if tx.Type != txType {
			return &ReferenceConflictError{Reference: reference, Status: fmt.Sprintf("%s %s", tx.Status, tx.Type)}
		}
		if !statusIn(tx.Status, replayable) {
			return &ReferenceConflictError{Reference: reference, Status: string(tx.Status)}
		}
	}
	return &DuplicateReferenceError{Reference: reference, Existing: existing}
}

func statusIn(s models.TxStatus, statuses []models.TxStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// rowFor picks the row of a replay that belongs to userID with the given action.
func rowFor(rows []models.Transaction, userID string, action models.TxAction) (models.Transaction, bool) {
	for _, tx := range rows {
		if tx.UserID == userID && tx.Action == action {
			return tx, true
		}
	}
	return models.Transaction{}, false
}
