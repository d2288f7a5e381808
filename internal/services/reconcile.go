package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/internal/store"
)

// ReconciliationService replays a wallet's ledger to detect drift between the
// rows and the stored balance. It never repairs anything.
type ReconciliationService struct {
	store  store.Store
	logger *zap.Logger
}

func NewReconciliationService(st store.Store, logger *zap.Logger) *ReconciliationService {
	return &ReconciliationService{store: st, logger: logger}
}

func (s *ReconciliationService) ReconcileWallet(ctx context.Context, userID string) (*models.ReconciliationReport, error) {
	wallet, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, walletErr(err, userID)
	}

	history, err := s.store.WalletHistory(ctx, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("load wallet history: %w", err)
	}

	report := Replay(history)
	report.WalletID = wallet.ID
	report.UserID = userID
	report.Actual = wallet.Balance
	report.Drift = wallet.Balance - report.Expected
	report.Consistent = report.Drift == 0 && report.BrokenChainAt == ""

	if !report.Consistent {
		s.logger.Error("wallet ledger drift detected",
			zap.String("user_id", userID),
			zap.String("wallet_id", wallet.ID),
			zap.Int64("expected", report.Expected),
			zap.Int64("actual", report.Actual),
			zap.String("broken_chain_at", report.BrokenChainAt),
		)
	}
	return report, nil
}

// Replay folds settled rows in commit order starting from a zero balance.
// BrokenChainAt names the first row whose snapshot does not continue the
// previous one.
func Replay(history []models.Transaction) *models.ReconciliationReport {
	report := &models.ReconciliationReport{}
	var running int64
	for _, tx := range history {
		if !tx.Status.Settled() {
			continue
		}
		if report.BrokenChainAt == "" &&
			(tx.BalanceBefore != running || tx.BalanceAfter != tx.BalanceBefore+tx.SignedAmount()) {
			report.BrokenChainAt = tx.ID
		}
		running += tx.SignedAmount()
		report.RowsReplayed++
	}
	report.Expected = running
	return report
}
