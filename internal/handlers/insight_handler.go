package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/creatorhub/backend/internal/services"
)

type InsightHandler struct {
	insights *services.InsightService
}

func NewInsightHandler(insights *services.InsightService) *InsightHandler {
	return &InsightHandler{insights: insights}
}

// GetEarnings returns the caller's all-time income
// @Summary All-time earnings
// @Tags Insights
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.EarningsSummary
// @Router /insights/earnings [get]
func (h *InsightHandler) GetEarnings(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	summary, err := h.insights.GetAllTimeEarnings(r.Context(), sellerID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, summary)
}

// GetMonthly returns one month of income by type. Month and year default to the current UTC month.
// @Summary Monthly insight
// @Tags Insights
// @Produce json
// @Security BearerAuth
// @Param month query int false "1-12"
// @Param year query int false "Year"
// @Success 200 {object} models.MonthlyInsight
// @Router /insights/monthly [get]
func (h *InsightHandler) GetMonthly(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	month, err := intParam(r, "month", int(now.Month()))
	if err != nil {
		services.SendErrorResponse(w, "month must be an integer", http.StatusBadRequest, nil)
		return
	}
	year, err := intParam(r, "year", now.Year())
	if err != nil {
		services.SendErrorResponse(w, "year must be an integer", http.StatusBadRequest, nil)
		return
	}

	insight, err := h.insights.GetMonthlyInsight(r.Context(), sellerID, month, year)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, insight)
}

// GetPayer summarises what one buyer has paid the caller
// @Summary Payer insight
// @Tags Insights
// @Produce json
// @Security BearerAuth
// @Param buyerId path string true "Buyer user id"
// @Success 200 {object} models.PayerInsight
// @Router /insights/payers/{buyerId} [get]
func (h *InsightHandler) GetPayer(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	insight, err := h.insights.GetPayerToReceiverInsights(r.Context(), chi.URLParam(r, "buyerId"), sellerID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, insight)
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
