package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/models"
)

const (
	EventWalletCreated     = "wallet.created"
	EventWalletActivated   = "wallet.activated"
	EventWalletDeactivated = "wallet.deactivated"
	EventTopUpPending      = "topup.pending"
	EventTopUpCompleted    = "topup.completed"
	EventTopUpFailed       = "topup.failed"
	EventTransferCompleted = "transfer.completed"
	EventPaymentCompleted  = "payment.completed"
	EventPayoutCompleted   = "payout.completed"
)

// LedgerEvent is emitted after a mutation commits.
type LedgerEvent struct {
	Event          string        `json:"event"`
	TxType         models.TxType `json:"txType,omitempty"`
	Reference      string        `json:"reference,omitempty"`
	UserID         string        `json:"userId"`
	CounterpartyID string        `json:"counterpartyId,omitempty"`
	Amount         int64         `json:"amount"`
	Balance        int64         `json:"balance"`
	Currency       string        `json:"currency,omitempty"`
	OccurredAt     time.Time     `json:"occurredAt"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event LedgerEvent) error
}

// RedisEventPublisher queues events on a list for durable consumers and
// publishes them on a channel for live ones. A nil client disables publishing.
type RedisEventPublisher struct {
	rdb     *redis.Client
	queue   string
	channel string
	logger  *zap.Logger
}

func NewRedisEventPublisher(rdb *redis.Client, queue, channel string, logger *zap.Logger) *RedisEventPublisher {
	return &RedisEventPublisher{rdb: rdb, queue: queue, channel: channel, logger: logger}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, event LedgerEvent) error {
	if p.rdb == nil {
		p.logger.Debug("redis unavailable, event not published",
			zap.String("event", event.Event), zap.String("reference", event.Reference))
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}

	if err := p.rdb.RPush(ctx, p.queue, payload).Err(); err != nil {
		return fmt.Errorf("queue ledger event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish ledger event: %w", err)
	}
	return nil
}

// publishAll sends events after commit. Failures are logged; the ledger state
// is already durable.
func publishAll(ctx context.Context, pub EventPublisher, logger *zap.Logger, events ...LedgerEvent) {
	if pub == nil {
		return
	}
	for _, event := range events {
		if err := pub.Publish(ctx, event); err != nil {
			logger.Warn("failed to publish ledger event",
				zap.String("event", event.Event),
				zap.String("reference", event.Reference),
				zap.Error(err),
			)
		}
	}
}

func eventFromRow(name string, tx models.Transaction, counterparty string) LedgerEvent {
	return LedgerEvent{
		Event:          name,
		TxType:         tx.Type,
		Reference:      tx.Reference,
		UserID:         tx.UserID,
		CounterpartyID: counterparty,
		Amount:         tx.Amount,
		Balance:        tx.BalanceAfter,
		Currency:       tx.Currency,
		OccurredAt:     tx.CreatedAt,
	}
}
