package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/services"
)

type WebhookHandler struct {
	webhooks *services.WebhookService
	logger   *zap.Logger
}

func NewWebhookHandler(webhooks *services.WebhookService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: logger}
}

// PaymentWebhook applies a gateway notification. Retried deliveries are
// acknowledged with the original result.
// @Summary Payment gateway webhook
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} services.MutationResult
// @Router /webhooks/payments [post]
func (h *WebhookHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := decodeJSON(w, r, &payload); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	event, err := services.ParseGatewayEvent(payload)
	if err != nil {
		h.logger.Warn("rejected webhook payload", zap.Error(err))
		services.SendServiceError(w, err)
		return
	}

	result, err := h.webhooks.Apply(r.Context(), event)
	if err != nil {
		h.logger.Warn("webhook not applied",
			zap.String("reference", event.Reference),
			zap.String("kind", services.Kind(err)),
			zap.Error(err),
		)
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, result)
}
