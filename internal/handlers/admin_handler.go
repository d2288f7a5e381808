package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/creatorhub/backend/internal/services"
)

type AdminHandler struct {
	ledger     *services.LedgerService
	reconciler *services.ReconciliationService
}

func NewAdminHandler(ledger *services.LedgerService, reconciler *services.ReconciliationService) *AdminHandler {
	return &AdminHandler{ledger: ledger, reconciler: reconciler}
}

// DeactivateWallet soft-disables a wallet
// @Summary Deactivate wallet
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Wallet owner"
// @Success 200 {object} models.WalletView
// @Router /admin/wallets/{userId}/deactivate [post]
func (h *AdminHandler) DeactivateWallet(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// ActivateWallet re-enables a wallet
// @Summary Activate wallet
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Wallet owner"
// @Success 200 {object} models.WalletView
// @Router /admin/wallets/{userId}/activate [post]
func (h *AdminHandler) ActivateWallet(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// ReconcileWallet replays a wallet's ledger against its stored balance
// @Summary Reconcile wallet
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Wallet owner"
// @Success 200 {object} models.ReconciliationReport
// @Router /admin/wallets/{userId}/reconcile [get]
func (h *AdminHandler) ReconcileWallet(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.ReconcileWallet(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, report)
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	wallet, err := h.ledger.SetWalletActive(r.Context(), chi.URLParam(r, "userId"), active)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, wallet)
}
