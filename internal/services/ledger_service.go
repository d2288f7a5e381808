package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/config"
	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/internal/money"
	"github.com/creatorhub/backend/internal/store"
)

// LedgerService is the only path that changes a wallet balance. Every
// operation runs as one unit of work: wallets are locked, the reference is
// checked, rows are drafted by the Recorder and persisted before commit.
type LedgerService struct {
	store     store.Store
	recorder  *Recorder
	guard     *IdempotencyGuard
	publisher EventPublisher
	audit     *AuditLogger
	cfg       *config.LedgerConfig
	logger    *zap.Logger
}

func NewLedgerService(st store.Store, publisher EventPublisher, cfg *config.LedgerConfig, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		store:     st,
		recorder:  NewRecorder(),
		guard:     NewIdempotencyGuard(),
		publisher: publisher,
		audit:     NewAuditLogger(logger),
		cfg:       cfg,
		logger:    logger,
	}
}

// MutationResult is the outcome of a single-wallet mutation.
type MutationResult struct {
	Reference    string          `json:"reference"`
	UserID       string          `json:"userId"`
	Status       models.TxStatus `json:"status"`
	Amount       string          `json:"amount"`
	Balance      string          `json:"balance"`
	BalanceMinor int64           `json:"balanceMinor"`
	Replayed     bool            `json:"replayed"`
}

// TransferResult is the outcome of a counterparty movement.
type TransferResult struct {
	Reference            string        `json:"reference"`
	Type                 models.TxType `json:"type"`
	Amount               string        `json:"amount"`
	SenderBalance        string        `json:"senderBalance"`
	ReceiverBalance      string        `json:"receiverBalance"`
	SenderBalanceMinor   int64         `json:"senderBalanceMinor"`
	ReceiverBalanceMinor int64         `json:"receiverBalanceMinor"`
	Replayed             bool          `json:"replayed"`
}

// TransferRequest describes a two-sided movement between wallets.
type TransferRequest struct {
	SenderID   string
	ReceiverID string
	Amount     string // display units
	Type       models.TxType
	Reference  string // optional, generated when empty
	Metadata   models.Metadata
}

func (s *LedgerService) CreateWallet(ctx context.Context, userID, currency string) (*models.WalletView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	now := time.Now().UTC()
	wallet := &models.Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Balance:   0,
		Currency:  strings.ToUpper(currency),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.GetWalletForUpdate(ctx, userID)
		switch {
		case err == nil:
			return ErrAlreadyExists
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		return tx.InsertWallet(ctx, wallet)
	})
	if errors.Is(err, store.ErrDuplicate) {
		err = ErrAlreadyExists
	}
	if err != nil {
		s.audit.LogAborted("CREATE_WALLET", "", userID, "", 0, err)
		return nil, err
	}

	s.audit.LogCommitted("CREATE_WALLET", "", userID, "", 0)
	publishAll(ctx, s.publisher, s.logger, LedgerEvent{
		Event:      EventWalletCreated,
		UserID:     userID,
		Currency:   wallet.Currency,
		OccurredAt: now,
	})
	return walletView(wallet), nil
}

func (s *LedgerService) GetWallet(ctx context.Context, userID string) (*models.WalletView, error) {
	wallet, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, walletErr(err, userID)
	}
	return walletView(wallet), nil
}

// SetWalletActive soft-enables or disables a wallet. Wallets are never deleted.
func (s *LedgerService) SetWalletActive(ctx context.Context, userID string, active bool) (*models.WalletView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	operation, event := "DEACTIVATE_WALLET", EventWalletDeactivated
	if active {
		operation, event = "ACTIVATE_WALLET", EventWalletActivated
	}

	var wallet *models.Wallet
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if wallet, err = tx.GetWalletForUpdate(ctx, userID); err != nil {
			return walletErr(err, userID)
		}
		if wallet.IsActive == active {
			return nil
		}
		if err := tx.SetWalletActive(ctx, wallet.ID, active); err != nil {
			return err
		}
		wallet.IsActive = active
		return nil
	})
	if err != nil {
		s.audit.LogAborted(operation, "", userID, "", 0, err)
		return nil, err
	}

	s.audit.LogCommitted(operation, "", userID, "", 0)
	s.logger.Info("wallet status changed", zap.String("user_id", userID), zap.Bool("active", active))
	publishAll(ctx, s.publisher, s.logger, LedgerEvent{
		Event:      event,
		UserID:     userID,
		Balance:    wallet.Balance,
		Currency:   wallet.Currency,
		OccurredAt: time.Now().UTC(),
	})
	return walletView(wallet), nil
}

// TopUp credits a wallet with a COMPLETED FUND row. A reference already held
// by a completed top-up returns the prior result instead of crediting again.
func (s *LedgerService) TopUp(ctx context.Context, userID, displayAmount, reference string) (*MutationResult, error) {
	amount, err := money.ParsePositive(displayAmount)
	if err != nil {
		return nil, err
	}
	return s.credit(ctx, "TOP_UP", userID, amount, reference, models.TxTypeFund, EventTopUpCompleted)
}

// InitiateTopUp records a PENDING FUND row for a gateway payment that has not
// been confirmed yet. The balance does not change until SettleTopUp.
func (s *LedgerService) InitiateTopUp(ctx context.Context, userID, displayAmount, reference string) (*MutationResult, error) {
	if reference == "" {
		return nil, ErrReferenceRequired
	}
	amount, err := money.ParsePositive(displayAmount)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var row models.Transaction
	replay, err := s.commit(ctx, reference, models.TxTypeFund, []models.TxStatus{models.StatusPending, models.StatusCompleted},
		func(tx store.Tx) error {
			wallet, err := s.lockActive(ctx, tx, userID)
			if err != nil {
				return err
			}
			if err := s.guard.CheckAndReserve(ctx, tx.FindByReferenceForUpdate, reference, models.TxTypeFund,
				models.StatusPending, models.StatusCompleted); err != nil {
				return err
			}
			if row, err = s.recorder.Pending(*wallet, Entry{Type: models.TxTypeFund, Amount: amount, Reference: reference}, models.ActionCredit); err != nil {
				return err
			}
			return tx.InsertTransaction(ctx, &row)
		})
	if err != nil {
		s.audit.LogAborted("INITIATE_TOP_UP", reference, userID, "", amount, err)
		return nil, err
	}
	if replay != nil {
		return s.replayed("INITIATE_TOP_UP", reference, userID, replay, models.ActionCredit)
	}

	s.audit.LogCommitted("INITIATE_TOP_UP", reference, userID, "", amount)
	publishAll(ctx, s.publisher, s.logger, eventFromRow(EventTopUpPending, row, ""))
	return mutationResult(row, false), nil
}

// SettleTopUp moves a PENDING FUND row to COMPLETED, crediting the wallet, or
// to FAILED, leaving the balance untouched.
func (s *LedgerService) SettleTopUp(ctx context.Context, reference string, succeeded bool) (*MutationResult, error) {
	if reference == "" {
		return nil, ErrReferenceRequired
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// The owner is needed to lock the wallet before the row.
	rows, err := s.store.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	pending, ok := fundRow(rows)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReferenceNotFound, reference)
	}
	userID := pending.UserID

	var settled models.Transaction
	var replay []models.Transaction
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		// a failed payment moves no money, so inactive wallets may still close it
		lock := s.lockActive
		if !succeeded {
			lock = s.lockAny
		}
		wallet, err := lock(ctx, tx, userID)
		if err != nil {
			return err
		}
		rows, err := tx.FindByReferenceForUpdate(ctx, reference)
		if err != nil {
			return err
		}
		row, ok := fundRow(rows)
		if !ok {
			return fmt.Errorf("%w: %s", ErrReferenceNotFound, reference)
		}

		switch row.Status {
		case models.StatusPending:
		case models.StatusCompleted, models.StatusReleased:
			if succeeded {
				replay = rows
				return nil
			}
			return &ReferenceConflictError{Reference: reference, Status: string(row.Status)}
		default:
			if !succeeded {
				replay = rows
				return nil
			}
			return &ReferenceConflictError{Reference: reference, Status: string(row.Status)}
		}

		outcome, err := s.recorder.Settle(*wallet, row, succeeded)
		if err != nil {
			return err
		}
		if outcome.BalanceAfter != wallet.Balance {
			if err := tx.UpdateWalletBalance(ctx, wallet, outcome.BalanceAfter); err != nil {
				return err
			}
		}
		if err := tx.SettleTransaction(ctx, row.ID, outcome.Status, outcome.BalanceBefore, outcome.BalanceAfter, outcome.At); err != nil {
			return err
		}

		settled = row
		settled.Status = outcome.Status
		settled.BalanceBefore = outcome.BalanceBefore
		settled.BalanceAfter = outcome.BalanceAfter
		settled.CommittedAt = &outcome.At
		return nil
	})
	if err != nil {
		err = translateStoreErr(err)
		s.audit.LogAborted("SETTLE_TOP_UP", reference, userID, "", pending.Amount, err)
		return nil, err
	}
	if replay != nil {
		return s.replayed("SETTLE_TOP_UP", reference, userID, replay, models.ActionCredit)
	}

	s.audit.LogCommitted("SETTLE_TOP_UP", reference, userID, "", settled.Amount)
	event := EventTopUpCompleted
	if settled.Status == models.StatusFailed {
		event = EventTopUpFailed
	}
	publishAll(ctx, s.publisher, s.logger, eventFromRow(event, settled, ""))
	return mutationResult(settled, false), nil
}

// Payout debits a wallet with a PAYOUT row. The reference is mandatory since
// the withdrawal leaves the platform.
func (s *LedgerService) Payout(ctx context.Context, userID, displayAmount, reference string) (*MutationResult, error) {
	if reference == "" {
		return nil, ErrReferenceRequired
	}
	amount, err := money.ParsePositive(displayAmount)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var row models.Transaction
	replay, err := s.commit(ctx, reference, models.TxTypePayout, nil, func(tx store.Tx) error {
		wallet, err := s.lockActive(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := s.guard.CheckAndReserve(ctx, tx.FindByReferenceForUpdate, reference, models.TxTypePayout); err != nil {
			return err
		}
		if row, err = s.recorder.Debit(*wallet, Entry{Type: models.TxTypePayout, Amount: amount, Reference: reference}); err != nil {
			return err
		}
		if err := tx.UpdateWalletBalance(ctx, wallet, row.BalanceAfter); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, &row)
	})
	if err != nil {
		s.audit.LogAborted("PAYOUT", reference, userID, "", amount, err)
		return nil, err
	}
	if replay != nil {
		return s.replayed("PAYOUT", reference, userID, replay, models.ActionDebit)
	}

	s.audit.LogCommitted("PAYOUT", reference, userID, "", amount)
	publishAll(ctx, s.publisher, s.logger, eventFromRow(EventPayoutCompleted, row, ""))
	return mutationResult(row, false), nil
}

// Transfer moves funds between two users' wallets as a TRANSFER pair.
func (s *LedgerService) Transfer(ctx context.Context, senderID, receiverID, displayAmount, reference string) (*TransferResult, error) {
	return s.move(ctx, TransferRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     displayAmount,
		Type:       models.TxTypeTransfer,
		Reference:  reference,
	})
}

// DebitWithCounterparty is a transfer tagged with a purchase or tip type.
func (s *LedgerService) DebitWithCounterparty(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if !req.Type.IsPurchase() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTxType, req.Type)
	}
	return s.move(ctx, req)
}

func (s *LedgerService) move(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.SenderID == req.ReceiverID {
		return nil, ErrSelfTransferNotAllowed
	}
	amount, err := money.ParsePositive(req.Amount)
	if err != nil {
		return nil, err
	}

	reference := req.Reference
	if reference == "" {
		reference = uuid.NewString()
	}
	operation := string(req.Type)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var debit, credit models.Transaction
	replay, err := s.commit(ctx, reference, req.Type, nil, func(tx store.Tx) error {
		sender, receiver, err := s.lockPair(ctx, tx, req.SenderID, req.ReceiverID)
		if err != nil {
			return err
		}
		if err := s.guard.CheckAndReserve(ctx, tx.FindByReferenceForUpdate, reference, req.Type); err != nil {
			return err
		}

		debit, credit, err = s.recorder.Pair(*sender, *receiver, Entry{
			Type:      req.Type,
			Amount:    amount,
			Reference: reference,
			Metadata:  req.Metadata,
		})
		if err != nil {
			return err
		}

		if err := tx.UpdateWalletBalance(ctx, sender, debit.BalanceAfter); err != nil {
			return err
		}
		if err := tx.UpdateWalletBalance(ctx, receiver, credit.BalanceAfter); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &debit); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, &credit)
	})
	if err != nil {
		s.audit.LogAborted(operation, reference, req.SenderID, req.ReceiverID, amount, err)
		return nil, err
	}

	if replay != nil {
		d, okD := rowFor(replay, req.SenderID, models.ActionDebit)
		c, okC := rowFor(replay, req.ReceiverID, models.ActionCredit)
		if !okD || !okC {
			return nil, &ReferenceConflictError{Reference: reference, Status: "different counterparty"}
		}
		s.audit.LogReplayed(operation, reference, req.SenderID)
		return transferResult(d, c, true), nil
	}

	s.audit.LogCommitted(operation, reference, req.SenderID, req.ReceiverID, amount)
	event := EventPaymentCompleted
	if req.Type == models.TxTypeTransfer {
		event = EventTransferCompleted
	}
	publishAll(ctx, s.publisher, s.logger,
		eventFromRow(event, debit, req.ReceiverID),
		eventFromRow(event, credit, req.SenderID),
	)
	return transferResult(debit, credit, false), nil
}

// GetTransactions returns a wallet's history newest first in display units.
func (s *LedgerService) GetTransactions(ctx context.Context, userID string, limit int) ([]models.TransactionView, error) {
	wallet, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, walletErr(err, userID)
	}

	rows, err := s.store.ListTransactions(ctx, wallet.ID, s.cfg.HistoryLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	views := make([]models.TransactionView, 0, len(rows))
	for _, tx := range rows {
		views = append(views, transactionView(tx))
	}
	return views, nil
}

func (s *LedgerService) credit(ctx context.Context, operation, userID string, amount int64, reference string,
	txType models.TxType, event string) (*MutationResult, error) {
	if reference == "" {
		reference = uuid.NewString()
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var row models.Transaction
	replay, err := s.commit(ctx, reference, txType, nil, func(tx store.Tx) error {
		wallet, err := tx.GetWalletForUpdate(ctx, userID)
		if err != nil {
			return walletErr(err, userID)
		}
		if err := s.guard.CheckAndReserve(ctx, tx.FindByReferenceForUpdate, reference, txType); err != nil {
			return err
		}
		if !wallet.IsActive {
			return fmt.Errorf("%w: user %s", ErrWalletInactive, userID)
		}
		if row, err = s.recorder.Credit(*wallet, Entry{Type: txType, Amount: amount, Reference: reference}); err != nil {
			return err
		}
		if err := tx.UpdateWalletBalance(ctx, wallet, row.BalanceAfter); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, &row)
	})
	if err != nil {
		s.audit.LogAborted(operation, reference, userID, "", amount, err)
		return nil, err
	}
	if replay != nil {
		return s.replayed(operation, reference, userID, replay, models.ActionCredit)
	}

	s.audit.LogCommitted(operation, reference, userID, "", amount)
	publishAll(ctx, s.publisher, s.logger, eventFromRow(event, row, ""))
	return mutationResult(row, false), nil
}

// commit runs fn in one unit of work and resolves idempotency outcomes. A
// non-nil replay means the reference was already processed and nothing was
// written. A unique-index rejection at insert is re-checked against committed
// rows so a racing duplicate is reported the same way as a sequential one.
func (s *LedgerService) commit(ctx context.Context, reference string, txType models.TxType,
	replayable []models.TxStatus, fn func(store.Tx) error) ([]models.Transaction, error) {
	err := s.store.WithTx(ctx, fn)
	if errors.Is(err, store.ErrDuplicate) && reference != "" {
		s.logger.Debug("reference rejected by unique index", zap.String("reference", reference))
		if err = s.guard.CheckAndReserve(ctx, s.store.FindByReference, reference, txType, replayable...); err == nil {
			err = fmt.Errorf("%w: reference %s", ErrConcurrentModification, reference)
		}
	}

	var dup *DuplicateReferenceError
	if errors.As(err, &dup) {
		return dup.Existing, nil
	}
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return nil, nil
}

func (s *LedgerService) replayed(operation, reference, userID string, rows []models.Transaction, action models.TxAction) (*MutationResult, error) {
	row, ok := rowFor(rows, userID, action)
	if !ok {
		return nil, &ReferenceConflictError{Reference: reference, Status: "different wallet"}
	}
	s.audit.LogReplayed(operation, reference, row.UserID)
	return mutationResult(row, true), nil
}

func (s *LedgerService) lockAny(ctx context.Context, tx store.Tx, userID string) (*models.Wallet, error) {
	wallet, err := tx.GetWalletForUpdate(ctx, userID)
	if err != nil {
		return nil, walletErr(err, userID)
	}
	return wallet, nil
}

func (s *LedgerService) lockActive(ctx context.Context, tx store.Tx, userID string) (*models.Wallet, error) {
	wallet, err := s.lockAny(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive {
		return nil, fmt.Errorf("%w: user %s", ErrWalletInactive, userID)
	}
	return wallet, nil
}

// lockPair locks both wallets in ascending user id order to prevent deadlocks
// and returns them as (sender, receiver).
func (s *LedgerService) lockPair(ctx context.Context, tx store.Tx, senderID, receiverID string) (*models.Wallet, *models.Wallet, error) {
	firstLock, secondLock := senderID, receiverID
	if senderID > receiverID {
		firstLock, secondLock = receiverID, senderID
	}

	first, err := s.lockActive(ctx, tx, firstLock)
	if err != nil {
		return nil, nil, err
	}
	second, err := s.lockActive(ctx, tx, secondLock)
	if err != nil {
		return nil, nil, err
	}

	if firstLock != senderID {
		first, second = second, first
	}
	return first, second, nil
}

func (s *LedgerService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

func walletErr(err error, userID string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: user %s", ErrWalletNotFound, userID)
	}
	return err
}

func fundRow(rows []models.Transaction) (models.Transaction, bool) {
	for _, tx := range rows {
		if tx.Type == models.TxTypeFund && tx.Action == models.ActionCredit {
			return tx, true
		}
	}
	return models.Transaction{}, false
}

func walletView(w *models.Wallet) *models.WalletView {
	return &models.WalletView{
		ID:       w.ID,
		UserID:   w.UserID,
		Balance:  money.ToDisplayUnits(w.Balance),
		Currency: w.Currency,
		IsActive: w.IsActive,
	}
}

func transactionView(tx models.Transaction) models.TransactionView {
	return models.TransactionView{
		ID:            tx.ID,
		Type:          tx.Type,
		Action:        tx.Action,
		Status:        tx.Status,
		Amount:        money.ToDisplayUnits(tx.Amount),
		BalanceBefore: money.ToDisplayUnits(tx.BalanceBefore),
		BalanceAfter:  money.ToDisplayUnits(tx.BalanceAfter),
		Currency:      tx.Currency,
		SenderID:      tx.SenderID,
		ReceiverID:    tx.ReceiverID,
		Reference:     tx.Reference,
		Metadata:      tx.Metadata,
		CreatedAt:     tx.CreatedAt,
	}
}

func mutationResult(tx models.Transaction, replayed bool) *MutationResult {
	return &MutationResult{
		Reference:    tx.Reference,
		UserID:       tx.UserID,
		Status:       tx.Status,
		Amount:       money.ToDisplayUnits(tx.Amount),
		Balance:      money.ToDisplayUnits(tx.BalanceAfter),
		BalanceMinor: tx.BalanceAfter,
		Replayed:     replayed,
	}
}

func transferResult(debit, credit models.Transaction, replayed bool) *TransferResult {
	return &TransferResult{
		Reference:            debit.Reference,
		Type:                 debit.Type,
		Amount:               money.ToDisplayUnits(debit.Amount),
		SenderBalance:        money.ToDisplayUnits(debit.BalanceAfter),
		ReceiverBalance:      money.ToDisplayUnits(credit.BalanceAfter),
		SenderBalanceMinor:   debit.BalanceAfter,
		ReceiverBalanceMinor: credit.BalanceAfter,
		Replayed:             replayed,
	}
}
