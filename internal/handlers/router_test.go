package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/config"
	mW "github.com/creatorhub/backend/internal/middleware"
	"github.com/creatorhub/backend/internal/services"
	"github.com/creatorhub/backend/internal/store/memory"
)

type testNopPublisher struct{}

func (testNopPublisher) Publish(context.Context, services.LedgerEvent) error { return nil }

// headerAuth trusts X-User and X-Role so tests can act as any caller.
func headerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User")
		if userID == "" {
			services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(mW.WithUser(r.Context(), userID, r.Header.Get("X-Role"))))
	})
}

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	st := memory.New()
	logger := zap.NewNop()
	cfg := &config.LedgerConfig{
		DefaultCurrency:     "USD",
		DefaultHistoryLimit: 20,
		MaxHistoryLimit:     100,
		OperationTimeout:    5 * time.Second,
	}
	ledger := services.NewLedgerService(st, testNopPublisher{}, cfg, logger)

	return NewRouter(Dependencies{
		Ledger:       ledger,
		Insights:     services.NewInsightService(st, logger),
		Reconciler:   services.NewReconciliationService(st, logger),
		Webhooks:     services.NewWebhookService(ledger, logger),
		Logger:       logger,
		Authenticate: headerAuth,
	})
}

func call(t *testing.T, h http.Handler, method, path, user, role, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var out map[string]any
	if rr.Body.Len() > 0 {
		_ = json.Unmarshal(rr.Body.Bytes(), &out)
	}
	return rr, out
}

// seedWallet creates a wallet and credits it through the webhook path.
func seedWallet(t *testing.T, h http.Handler, userID, amount string) {
	t.Helper()
	rr, _ := call(t, h, http.MethodPost, "/api/v1/wallets", userID, "", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	if amount == "" {
		return
	}
	body := `{"userId":"` + userID + `","amount":"` + amount + `","reference":"seed-` + userID + `","status":"success"}`
	rr, _ = call(t, h, http.MethodPost, "/api/v1/webhooks/payments", "", "", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t)
	rr, out := call(t, h, http.MethodGet, "/health", "", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "healthy", out["status"])
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestWalletRoutes(t *testing.T) {
	h := newTestRouter(t)

	t.Run("requires a caller", func(t *testing.T) {
		rr, _ := call(t, h, http.MethodGet, "/api/v1/wallets/me", "", "", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("create then read", func(t *testing.T) {
		rr, out := call(t, h, http.MethodPost, "/api/v1/wallets", "alice", "", `{"currency":"usd"}`)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.Equal(t, "USD", out["currency"])

		rr, out = call(t, h, http.MethodGet, "/api/v1/wallets/me", "alice", "", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "0.00", out["balance"])
	})

	t.Run("second wallet conflicts", func(t *testing.T) {
		rr, out := call(t, h, http.MethodPost, "/api/v1/wallets", "alice", "", "")
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "already_exists", out["code"])
	})

	t.Run("unknown wallet", func(t *testing.T) {
		rr, out := call(t, h, http.MethodGet, "/api/v1/wallets/me", "ghost", "", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "wallet_not_found", out["code"])
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		rr, _ := call(t, h, http.MethodPost, "/api/v1/wallets/me/topups", "alice", "", `{"amount":"1","reference":"x","extra":true}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("bad history limit", func(t *testing.T) {
		rr, _ := call(t, h, http.MethodGet, "/api/v1/wallets/me/transactions?limit=abc", "alice", "", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestTopUpFlow(t *testing.T) {
	h := newTestRouter(t)
	seedWallet(t, h, "alice", "")

	rr, out := call(t, h, http.MethodPost, "/api/v1/wallets/me/topups", "alice", "", `{"amount":"25.00","reference":"gw-1"}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	assert.Equal(t, "PENDING", out["status"])

	webhook := `{"event":"charge.success","data":{"tx_ref":"gw-1","amount":25}}`
	rr, out = call(t, h, http.MethodPost, "/api/v1/webhooks/payments", "", "", webhook)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "COMPLETED", out["status"])
	assert.Equal(t, "25.00", out["balance"])

	// retried delivery
	rr, out = call(t, h, http.MethodPost, "/api/v1/webhooks/payments", "", "", webhook)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, out["replayed"])

	rr, out = call(t, h, http.MethodGet, "/api/v1/wallets/me/transactions", "alice", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, out["transactions"], 1)

	t.Run("malformed webhook", func(t *testing.T) {
		rr, out := call(t, h, http.MethodPost, "/api/v1/webhooks/payments", "", "", `{"status":"success"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_webhook", out["code"])
	})
}

func TestPaymentRoutes(t *testing.T) {
	h := newTestRouter(t)
	seedWallet(t, h, "fan", "100.00")
	seedWallet(t, h, "creator", "")

	t.Run("transfer", func(t *testing.T) {
		rr, out := call(t, h, http.MethodPost, "/api/v1/transfers", "fan", "", `{"receiverId":"creator","amount":"10.00","reference":"t-1"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "90.00", out["senderBalance"])
		assert.Equal(t, "10.00", out["receiverBalance"])
	})

	t.Run("tip with metadata", func(t *testing.T) {
		body := `{"receiverId":"creator","amount":"5.00","type":"TIP","reference":"tip-1","metadata":{"message":"great stream"}}`
		rr, out := call(t, h, http.MethodPost, "/api/v1/payments", "fan", "", body)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "TIP", out["type"])
	})

	t.Run("payment type must be a purchase", func(t *testing.T) {
		body := `{"receiverId":"creator","amount":"5.00","type":"FUND"}`
		rr, out := call(t, h, http.MethodPost, "/api/v1/payments", "fan", "", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "validation_failed", out["code"])
	})

	t.Run("insufficient balance", func(t *testing.T) {
		rr, out := call(t, h, http.MethodPost, "/api/v1/transfers", "fan", "", `{"receiverId":"creator","amount":"1000.00"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Equal(t, "insufficient_balance", out["code"])
	})

	t.Run("self transfer", func(t *testing.T) {
		rr, out := call(t, h, http.MethodPost, "/api/v1/transfers", "fan", "", `{"receiverId":"fan","amount":"1.00"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "self_transfer_not_allowed", out["code"])
	})

	t.Run("payout", func(t *testing.T) {
		rr, out := call(t, h, http.MethodPost, "/api/v1/payouts", "creator", "", `{"amount":"15.00","reference":"po-1"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "0.00", out["balance"])
	})
}

func TestInsightRoutes(t *testing.T) {
	h := newTestRouter(t)
	seedWallet(t, h, "fan", "50.00")
	seedWallet(t, h, "creator", "")

	rr, _ := call(t, h, http.MethodPost, "/api/v1/payments", "fan", "", `{"receiverId":"creator","amount":"12.50","type":"MENU_PURCHASE"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr, out := call(t, h, http.MethodGet, "/api/v1/insights/earnings", "creator", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1250, out["total"])

	rr, out = call(t, h, http.MethodGet, "/api/v1/insights/monthly", "creator", "", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.EqualValues(t, 1250, out["totalMonthlyEarnings"])

	rr, out = call(t, h, http.MethodGet, "/api/v1/insights/monthly?month=13&year=2025", "creator", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_period", out["code"])

	rr, out = call(t, h, http.MethodGet, "/api/v1/insights/payers/fan", "creator", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, out["paymentCount"])
	assert.EqualValues(t, 1250, out["highestPayment"])
}

func TestAdminRoutes(t *testing.T) {
	h := newTestRouter(t)
	seedWallet(t, h, "alice", "20.00")
	seedWallet(t, h, "bob", "")

	rr, _ := call(t, h, http.MethodPost, "/api/v1/admin/wallets/alice/deactivate", "bob", "", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr, out := call(t, h, http.MethodPost, "/api/v1/admin/wallets/alice/deactivate", "ops", mW.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, false, out["isActive"])

	rr, out = call(t, h, http.MethodPost, "/api/v1/transfers", "alice", "", `{"receiverId":"bob","amount":"1.00"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "wallet_inactive", out["code"])

	rr, _ = call(t, h, http.MethodPost, "/api/v1/admin/wallets/alice/activate", "ops", mW.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr, out = call(t, h, http.MethodGet, "/api/v1/admin/wallets/alice/reconcile", "ops", mW.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, out["consistent"])
	assert.EqualValues(t, 2000, out["expected"])
}
