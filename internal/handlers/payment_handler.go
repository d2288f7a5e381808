package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/internal/services"
)

type PaymentHandler struct {
	ledger    *services.LedgerService
	validator *services.ValidationHelper
	logger    *zap.Logger
}

func NewPaymentHandler(ledger *services.LedgerService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		ledger:    ledger,
		validator: services.NewValidationHelper(),
		logger:    logger,
	}
}

type transferRequest struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	Amount     string `json:"amount" validate:"required,numeric"`
	Reference  string `json:"reference" validate:"omitempty,max=128"`
}

type paymentRequest struct {
	ReceiverID string          `json:"receiverId" validate:"required"`
	Amount     string          `json:"amount" validate:"required,numeric"`
	Type       string          `json:"type" validate:"required,oneof=TIP SUBSCRIPTION MENU_PURCHASE MEDIA_PURCHASE CALL_SESSION"`
	Reference  string          `json:"reference" validate:"omitempty,max=128"`
	Metadata   models.Metadata `json:"metadata"`
}

type payoutRequest struct {
	Amount    string `json:"amount" validate:"required,numeric"`
	Reference string `json:"reference" validate:"required,max=128"`
}

// Transfer moves funds from the caller to another user
// @Summary Transfer
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body transferRequest true "Transfer request"
// @Success 200 {object} services.TransferResult
// @Failure 422 {object} services.ErrorResponse
// @Router /transfers [post]
func (h *PaymentHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if !bindRequest(w, r, h.validator, &req) {
		return
	}

	result, err := h.ledger.Transfer(r.Context(), userID, req.ReceiverID, req.Amount, req.Reference)
	if err != nil {
		h.logger.Info("transfer rejected", zap.String("sender", userID), zap.String("kind", services.Kind(err)))
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, result)
}

// Pay tips or buys from a creator
// @Summary Tip or purchase
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body paymentRequest true "Payment request"
// @Success 200 {object} services.TransferResult
// @Failure 422 {object} services.ErrorResponse
// @Router /payments [post]
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req paymentRequest
	if !bindRequest(w, r, h.validator, &req) {
		return
	}

	result, err := h.ledger.DebitWithCounterparty(r.Context(), services.TransferRequest{
		SenderID:   userID,
		ReceiverID: req.ReceiverID,
		Amount:     req.Amount,
		Type:       models.TxType(req.Type),
		Reference:  req.Reference,
		Metadata:   req.Metadata,
	})
	if err != nil {
		h.logger.Info("payment rejected", zap.String("sender", userID), zap.String("kind", services.Kind(err)))
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, result)
}

// Payout withdraws from the caller's wallet
// @Summary Payout
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body payoutRequest true "Payout request"
// @Success 200 {object} services.MutationResult
// @Router /payouts [post]
func (h *PaymentHandler) Payout(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req payoutRequest
	if !bindRequest(w, r, h.validator, &req) {
		return
	}

	result, err := h.ledger.Payout(r.Context(), userID, req.Amount, req.Reference)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, result)
}
