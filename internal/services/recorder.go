package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/creatorhub/backend/internal/models"
)

// Recorder drafts ledger rows from a wallet snapshot. It never touches storage;
// the mutator persists the drafts inside its unit of work.
type Recorder struct {
	now   func() time.Time
	newID func() string
}

func NewRecorder() *Recorder {
	return &Recorder{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Entry describes one balance movement to be drafted.
type Entry struct {
	Type       models.TxType
	Amount     int64
	Reference  string
	SenderID   string
	ReceiverID string
	Metadata   models.Metadata
}

// Credit drafts a COMPLETED CREDIT row on w.
func (r *Recorder) Credit(w models.Wallet, e Entry) (models.Transaction, error) {
	if e.Amount <= 0 {
		return models.Transaction{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	return r.draft(w, e, models.ActionCredit, models.StatusCompleted, w.Balance+e.Amount), nil
}

// Debit drafts a COMPLETED DEBIT row on w. The wallet may not go negative.
func (r *Recorder) Debit(w models.Wallet, e Entry) (models.Transaction, error) {
	if e.Amount <= 0 {
		return models.Transaction{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	if w.Balance < e.Amount {
		return models.Transaction{}, &InsufficientBalanceError{UserID: w.UserID, Balance: w.Balance, Requested: e.Amount}
	}
	return r.draft(w, e, models.ActionDebit, models.StatusCompleted, w.Balance-e.Amount), nil
}

// Pair drafts the DEBIT row on sender and the CREDIT row on receiver of one
// counterparty movement. Both rows share e.Reference.
func (r *Recorder) Pair(sender, receiver models.Wallet, e Entry) (debit, credit models.Transaction, err error) {
	if sender.UserID == receiver.UserID {
		return debit, credit, ErrSelfTransferNotAllowed
	}
	if sender.Currency != receiver.Currency {
		return debit, credit, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, sender.Currency, receiver.Currency)
	}
	e.SenderID, e.ReceiverID = sender.UserID, receiver.UserID

	if debit, err = r.Debit(sender, e); err != nil {
		return models.Transaction{}, models.Transaction{}, err
	}
	if credit, err = r.Credit(receiver, e); err != nil {
		return models.Transaction{}, models.Transaction{}, err
	}
	credit.CreatedAt = debit.CreatedAt
	credit.CommittedAt = debit.CommittedAt
	return debit, credit, nil
}

// Pending drafts a PENDING row. It does not move the balance, so before and
// after both hold the current balance until settlement.
func (r *Recorder) Pending(w models.Wallet, e Entry, action models.TxAction) (models.Transaction, error) {
	if e.Amount <= 0 {
		return models.Transaction{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	tx := r.draft(w, e, action, models.StatusPending, w.Balance)
	tx.CommittedAt = nil
	return tx, nil
}

// Settlement is the terminal state computed for a PENDING row.
type Settlement struct {
	Status        models.TxStatus
	BalanceBefore int64
	BalanceAfter  int64
	At            time.Time
}

// Settle computes the terminal state of pending against the wallet as it is now.
// A failed settlement keeps the balance unchanged.
func (r *Recorder) Settle(w models.Wallet, pending models.Transaction, succeeded bool) (Settlement, error) {
	s := Settlement{Status: models.StatusFailed, BalanceBefore: w.Balance, BalanceAfter: w.Balance, At: r.now()}
	if !succeeded {
		return s, nil
	}

	after := w.Balance + pending.SignedAmount()
	if after < 0 {
		return Settlement{}, &InsufficientBalanceError{UserID: w.UserID, Balance: w.Balance, Requested: pending.Amount}
	}
	s.Status = models.StatusCompleted
	s.BalanceAfter = after
	return s, nil
}

func (r *Recorder) draft(w models.Wallet, e Entry, action models.TxAction, status models.TxStatus, after int64) models.Transaction {
	now := r.now()
	committed := now
	return models.Transaction{
		ID:            r.newID(),
		WalletID:      w.ID,
		UserID:        w.UserID,
		Type:          e.Type,
		Action:        action,
		Status:        status,
		Amount:        e.Amount,
		BalanceBefore: w.Balance,
		BalanceAfter:  after,
		Currency:      w.Currency,
		SenderID:      e.SenderID,
		ReceiverID:    e.ReceiverID,
		Reference:     e.Reference,
		Metadata:      e.Metadata.Clone(),
		CreatedAt:     now,
		CommittedAt:   &committed,
	}
}
