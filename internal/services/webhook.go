package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/internal/money"
)

// ErrInvalidWebhook is returned when a gateway payload cannot be mapped.
var ErrInvalidWebhook = errors.New("invalid webhook payload")

// GatewayEvent is a payment-gateway notification mapped into ledger terms.
type GatewayEvent struct {
	UserID    string
	Amount    string // display units
	Reference string
	Succeeded bool
}

// ParseGatewayEvent maps an untyped gateway payload. Gateways disagree on key
// names, so a few common spellings are accepted and nested "data" objects are
// flattened one level.
func ParseGatewayEvent(payload map[string]any) (*GatewayEvent, error) {
	if data, ok := payload["data"].(map[string]any); ok {
		merged := make(map[string]any, len(payload)+len(data))
		for k, v := range payload {
			merged[k] = v
		}
		for k, v := range data {
			merged[k] = v
		}
		payload = merged
	}

	event := &GatewayEvent{
		UserID:    firstString(payload, "userId", "user_id", "customerId", "customer_id"),
		Reference: firstString(payload, "reference", "tx_ref", "txRef", "paymentReference"),
		Amount:    firstAmount(payload, "amount", "amountPaid"),
	}
	if event.Reference == "" {
		return nil, fmt.Errorf("%w: missing reference", ErrInvalidWebhook)
	}
	if event.Amount == "" {
		return nil, fmt.Errorf("%w: missing amount", ErrInvalidWebhook)
	}

	status := strings.ToLower(firstString(payload, "status", "event"))
	switch status {
	case "success", "successful", "succeeded", "completed", "paid", "charge.success":
		event.Succeeded = true
	case "failed", "failure", "cancelled", "canceled", "declined", "charge.failed":
		event.Succeeded = false
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidWebhook, status)
	}
	return event, nil
}

// WebhookService applies gateway events to the ledger.
type WebhookService struct {
	ledger *LedgerService
	logger *zap.Logger
}

func NewWebhookService(ledger *LedgerService, logger *zap.Logger) *WebhookService {
	return &WebhookService{ledger: ledger, logger: logger}
}

// Apply settles the pending top-up that holds the event's reference. A
// successful event must report the pending amount. Without a pending row, a
// successful event becomes a direct top-up and a failed one is dropped.
func (s *WebhookService) Apply(ctx context.Context, event *GatewayEvent) (*MutationResult, error) {
	rows, err := s.ledger.store.FindByReference(ctx, event.Reference)
	if err != nil {
		return nil, err
	}
	if pending, ok := fundRow(rows); ok {
		if event.UserID != "" && event.UserID != pending.UserID {
			return nil, &ReferenceConflictError{Reference: event.Reference, Status: "different wallet"}
		}
		// a success credits the initiated amount, so the gateway must confirm exactly that
		if event.Succeeded {
			confirmed, err := money.ParsePositive(event.Amount)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
			}
			if confirmed != pending.Amount {
				s.logger.Warn("gateway amount differs from pending top-up",
					zap.String("reference", event.Reference),
					zap.Int64("pending", pending.Amount),
					zap.Int64("confirmed", confirmed),
				)
				return nil, &ReferenceConflictError{Reference: event.Reference, Status: "amount mismatch"}
			}
		}
		return s.ledger.SettleTopUp(ctx, event.Reference, event.Succeeded)
	}

	if !event.Succeeded {
		s.logger.Info("ignoring failed payment without pending top-up", zap.String("reference", event.Reference))
		return &MutationResult{Reference: event.Reference, UserID: event.UserID, Status: models.StatusFailed}, nil
	}
	if event.UserID == "" {
		return nil, fmt.Errorf("%w: missing user for direct top-up", ErrInvalidWebhook)
	}
	return s.ledger.TopUp(ctx, event.UserID, event.Amount, event.Reference)
}

func firstString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// firstAmount keeps string amounts verbatim so they reach the normalizer
// without a float round trip.
func firstAmount(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			return strings.TrimSpace(v)
		case float64:
			return strconv.FormatFloat(v, 'f', 2, 64)
		}
	}
	return ""
}
