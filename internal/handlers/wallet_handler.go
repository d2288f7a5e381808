package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/services"
)

type WalletHandler struct {
	ledger    *services.LedgerService
	validator *services.ValidationHelper
	logger    *zap.Logger
}

func NewWalletHandler(ledger *services.LedgerService, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		ledger:    ledger,
		validator: services.NewValidationHelper(),
		logger:    logger,
	}
}

type createWalletRequest struct {
	Currency string `json:"currency" validate:"omitempty,len=3,alpha"`
}

type topUpRequest struct {
	Amount    string `json:"amount" validate:"required,numeric"`
	Reference string `json:"reference" validate:"required,max=128"`
}

// CreateWallet opens the caller's wallet
// @Summary Create wallet
// @Tags Wallets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createWalletRequest false "Wallet currency"
// @Success 201 {object} models.WalletView
// @Failure 409 {object} services.ErrorResponse
// @Router /wallets [post]
func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req createWalletRequest
	if r.ContentLength != 0 && !bindRequest(w, r, h.validator, &req) {
		return
	}

	wallet, err := h.ledger.CreateWallet(r.Context(), userID, req.Currency)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusCreated, wallet)
}

// GetWallet returns the caller's balance
// @Summary Get wallet
// @Tags Wallets
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.WalletView
// @Failure 404 {object} services.ErrorResponse
// @Router /wallets/me [get]
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	wallet, err := h.ledger.GetWallet(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, wallet)
}

// GetTransactions lists the caller's ledger rows, newest first
// @Summary List transactions
// @Tags Wallets
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Success 200 {array} models.TransactionView
// @Router /wallets/me/transactions [get]
func (h *WalletHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			services.SendErrorResponse(w, "limit must be a non-negative integer", http.StatusBadRequest, nil)
			return
		}
		limit = parsed
	}

	history, err := h.ledger.GetTransactions(r.Context(), userID, limit)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, map[string]any{"transactions": history})
}

// InitiateTopUp records a pending gateway payment for the caller
// @Summary Initiate top-up
// @Tags Wallets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body topUpRequest true "Top-up request"
// @Success 202 {object} services.MutationResult
// @Router /wallets/me/topups [post]
func (h *WalletHandler) InitiateTopUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req topUpRequest
	if !bindRequest(w, r, h.validator, &req) {
		return
	}

	result, err := h.ledger.InitiateTopUp(r.Context(), userID, req.Amount, req.Reference)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusAccepted, result)
}
