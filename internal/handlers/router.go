package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	mW "github.com/creatorhub/backend/internal/middleware"
	"github.com/creatorhub/backend/internal/services"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Ledger     *services.LedgerService
	Insights   *services.InsightService
	Reconciler *services.ReconciliationService
	Webhooks   *services.WebhookService
	Logger     *zap.Logger
	// Authenticate guards user and admin routes. Tests swap in a stub.
	Authenticate func(http.Handler) http.Handler
}

func NewRouter(deps Dependencies) chi.Router {
	if deps.Authenticate == nil {
		deps.Authenticate = mW.AuthMiddleware
	}

	wallets := NewWalletHandler(deps.Ledger, deps.Logger)
	payments := NewPaymentHandler(deps.Ledger, deps.Logger)
	insights := NewInsightHandler(deps.Insights)
	webhooks := NewWebhookHandler(deps.Webhooks, deps.Logger)
	admin := NewAdminHandler(deps.Ledger, deps.Reconciler)

	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		services.SendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Gateway callbacks carry no user token
		r.Post("/webhooks/payments", webhooks.PaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(deps.Authenticate)

			r.Post("/wallets", wallets.CreateWallet)
			r.Get("/wallets/me", wallets.GetWallet)
			r.Get("/wallets/me/transactions", wallets.GetTransactions)
			r.Post("/wallets/me/topups", wallets.InitiateTopUp)

			r.Post("/transfers", payments.Transfer)
			r.Post("/payments", payments.Pay)
			r.Post("/payouts", payments.Payout)

			r.Get("/insights/earnings", insights.GetEarnings)
			r.Get("/insights/monthly", insights.GetMonthly)
			r.Get("/insights/payers/{buyerId}", insights.GetPayer)

			r.Route("/admin/wallets/{userId}", func(r chi.Router) {
				r.Use(mW.RequireRole(mW.RoleAdmin))
				r.Post("/deactivate", admin.DeactivateWallet)
				r.Post("/activate", admin.ActivateWallet)
				r.Get("/reconcile", admin.ReconcileWallet)
			})
		})
	})

	return r
}
