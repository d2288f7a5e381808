package services

import (
	"time"

	"go.uber.org/zap"
)

type AuditEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	Operation    string    `json:"operation"`
	Reference    string    `json:"reference"`
	UserID       string    `json:"user_id"`
	Counterparty string    `json:"counterparty,omitempty"`
	Amount       int64     `json:"amount"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
}

// AuditLogger writes one AUDIT record per mutation attempt.
type AuditLogger struct {
	logger *zap.Logger
}

func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.Named("audit")}
}

func (a *AuditLogger) LogCommitted(operation, reference, userID, counterparty string, amount int64) {
	a.log(AuditEvent{
		Timestamp:    time.Now().UTC(),
		Operation:    operation,
		Reference:    reference,
		UserID:       userID,
		Counterparty: counterparty,
		Amount:       amount,
		Status:       "COMMITTED",
	})
}

func (a *AuditLogger) LogReplayed(operation, reference, userID string) {
	a.log(AuditEvent{
		Timestamp: time.Now().UTC(),
		Operation: operation,
		Reference: reference,
		UserID:    userID,
		Status:    "REPLAYED",
	})
}

func (a *AuditLogger) LogAborted(operation, reference, userID, counterparty string, amount int64, err error) {
	a.log(AuditEvent{
		Timestamp:    time.Now().UTC(),
		Operation:    operation,
		Reference:    reference,
		UserID:       userID,
		Counterparty: counterparty,
		Amount:       amount,
		Status:       "ABORTED",
		Error:        err.Error(),
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	a.logger.Info("AUDIT",
		zap.Time("timestamp", event.Timestamp),
		zap.String("operation", event.Operation),
		zap.String("reference", event.Reference),
		zap.String("user_id", event.UserID),
		zap.String("counterparty", event.Counterparty),
		zap.Int64("amount", event.Amount),
		zap.String("status", event.Status),
		zap.String("error", event.Error),
	)
}
