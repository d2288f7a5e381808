package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/internal/money"
	"github.com/creatorhub/backend/internal/store"
)

// InsightService answers read-only earnings questions. Income is every settled
// CREDIT row of an earning type owned by the seller.
type InsightService struct {
	store  store.Store
	logger *zap.Logger
}

func NewInsightService(st store.Store, logger *zap.Logger) *InsightService {
	return &InsightService{store: st, logger: logger}
}

func (s *InsightService) GetAllTimeEarnings(ctx context.Context, sellerID string) (*models.EarningsSummary, error) {
	wallet, err := s.requireUser(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	totals, err := s.store.SumIncomingByType(ctx, store.IncomingFilter{
		ReceiverID: sellerID,
		Types:      models.EarningTxTypes,
		Statuses:   models.SettledStatuses,
	})
	if err != nil {
		return nil, fmt.Errorf("sum earnings: %w", err)
	}

	var total int64
	for _, amount := range totals {
		total += amount
	}
	return &models.EarningsSummary{
		SellerID: sellerID,
		Total:    total,
		Display:  money.ToDisplayUnits(total),
		Currency: wallet.Currency,
	}, nil
}

// GetMonthlyInsight breaks down income received in [start of month, start of
// next month) UTC. Every earning type is present in the result.
func (s *InsightService) GetMonthlyInsight(ctx context.Context, sellerID string, month, year int) (*models.MonthlyInsight, error) {
	if month < 1 || month > 12 || year < 1 || year > 9999 {
		return nil, fmt.Errorf("%w: %d/%d", ErrInvalidPeriod, month, year)
	}
	wallet, err := s.requireUser(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	totals, err := s.store.SumIncomingByType(ctx, store.IncomingFilter{
		ReceiverID: sellerID,
		Types:      models.EarningTxTypes,
		Statuses:   models.SettledStatuses,
		From:       from,
		To:         from.AddDate(0, 1, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("sum monthly earnings: %w", err)
	}

	insight := &models.MonthlyInsight{
		SellerID: sellerID,
		Month:    month,
		Year:     year,
		Currency: wallet.Currency,
	}
	for txType, amount := range totals {
		if !insight.Breakdown.Add(txType, amount) {
			s.logger.Warn("ignoring non-earning type in monthly totals", zap.String("type", string(txType)))
		}
	}
	insight.TotalMonthlyEarnings = insight.Breakdown.Total()
	insight.TotalDisplay = money.ToDisplayUnits(insight.TotalMonthlyEarnings)
	return insight, nil
}

// GetPayerToReceiverInsights aggregates everything buyerID has paid sellerID
// in a single pass over their rows.
func (s *InsightService) GetPayerToReceiverInsights(ctx context.Context, buyerID, sellerID string) (*models.PayerInsight, error) {
	if _, err := s.requireUser(ctx, buyerID); err != nil {
		return nil, err
	}
	wallet, err := s.requireUser(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	insight := &models.PayerInsight{
		BuyerID:  buyerID,
		SellerID: sellerID,
		Currency: wallet.Currency,
	}
	filter := store.IncomingFilter{
		ReceiverID: sellerID,
		SenderID:   buyerID,
		Types:      models.EarningTxTypes,
		Statuses:   models.SettledStatuses,
	}
	err = s.store.ScanIncoming(ctx, filter, func(tx models.Transaction) error {
		insight.Breakdown.Add(tx.Type, tx.Amount)
		insight.TotalAmount += tx.Amount
		insight.PaymentCount++
		if tx.Amount > insight.HighestPayment {
			insight.HighestPayment = tx.Amount
		}
		// rows arrive newest first
		if !insight.MostRecentPayment.Found {
			insight.MostRecentPayment = models.RecentPayment{
				Found:     true,
				Amount:    tx.Amount,
				Type:      tx.Type,
				Reference: tx.Reference,
				At:        tx.CreatedAt,
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan payer insight: %w", err)
	}
	return insight, nil
}

func (s *InsightService) requireUser(ctx context.Context, userID string) (*models.Wallet, error) {
	wallet, err := s.store.GetWallet(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return wallet, err
}
