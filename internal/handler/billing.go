package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tidewater/subledger/internal/provider"
	"github.com/tidewater/subledger/internal/reconcile"
	"github.com/tidewater/subledger/internal/store"
)

type BillingHandler struct {
	sessions      provider.SessionClient
	users         *store.UserStore
	subscriptions *store.SubscriptionStore
	engine        *reconcile.Engine
	logger        *slog.Logger
}

func NewBillingHandler(
	sessions provider.SessionClient,
	users *store.UserStore,
	subscriptions *store.SubscriptionStore,
	engine *reconcile.Engine,
	logger *slog.Logger,
) *BillingHandler {
	return &BillingHandler{
		sessions:      sessions,
		users:         users,
		subscriptions: subscriptions,
		engine:        engine,
		logger:        logger,
	}
}

// CreateCheckoutSession creates a Stripe checkout session for the authed
// user, lazily creating the Stripe customer and stamping its id on the user
// row. That stamp is what later lets the reconciliation engine resolve
// webhook events back to this user.
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		PriceID string `json:"price_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PriceID == "" {
		http.Error(w, "price_id required", http.StatusBadRequest)
		return
	}

	customerID := ""
	if user.StripeCustomerID != nil {
		customerID = *user.StripeCustomerID
	}
	if customerID == "" {
		var err error
		customerID, err = h.sessions.CreateCustomer(r.Context(), user.Email)
		if err != nil {
			h.logger.Error("create stripe customer", "user_id", user.ID, "error", err)
			http.Error(w, "failed to create customer", http.StatusInternalServerError)
			return
		}
		if err := h.users.UpdateStripeCustomerID(user.ID, customerID); err != nil {
			h.logger.Error("save stripe customer id", "user_id", user.ID, "error", err)
			http.Error(w, "failed to save customer", http.StatusInternalServerError)
			return
		}
	}

	url, err := h.sessions.CreateCheckoutSession(r.Context(), customerID, req.PriceID)
	if err != nil {
		h.logger.Error("create checkout session", "user_id", user.ID, "error", err)
		http.Error(w, "failed to create checkout session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// BillingPortal creates a Stripe billing portal session and returns the URL.
func (h *BillingHandler) BillingPortal(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if user.StripeCustomerID == nil {
		http.Error(w, "no billing account", http.StatusBadRequest)
		return
	}

	returnURL := r.Header.Get("Referer")
	if returnURL == "" {
		returnURL = "/billing"
	}

	url, err := h.sessions.CreateBillingPortalSession(r.Context(), *user.StripeCustomerID, returnURL)
	if err != nil {
		h.logger.Error("create portal session", "user_id", user.ID, "error", err)
		http.Error(w, "failed to create portal session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// GetSubscription returns the authed user's current subscription.
func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sub, err := h.subscriptions.GetByUserID(user.ID)
	if err != nil {
		h.logger.Error("get subscription", "user_id", user.ID, "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	if sub == nil {
		http.Error(w, "no subscription", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// CancelSubscription schedules cancellation at period end with the provider,
// then reconciles so the local row reflects the pending cancellation without
// waiting for the webhook.
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sub, err := h.subscriptions.GetByUserID(user.ID)
	if err != nil {
		h.logger.Error("get subscription", "user_id", user.ID, "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	if sub == nil {
		http.Error(w, "no subscription", http.StatusNotFound)
		return
	}

	if err := h.sessions.ScheduleCancel(r.Context(), sub.StripeSubscriptionID, true); err != nil {
		h.logger.Error("schedule cancel", "stripe_subscription_id", sub.StripeSubscriptionID, "error", err)
		http.Error(w, "failed to schedule cancellation", http.StatusInternalServerError)
		return
	}

	if _, err := h.engine.ReconcileSubscription(r.Context(), sub.StripeSubscriptionID); err != nil {
		// The provider accepted the cancel; the webhook will catch the row up.
		h.logger.Warn("reconcile after cancel failed", "stripe_subscription_id", sub.StripeSubscriptionID, "error", err)
	}

	updated, err := h.subscriptions.GetByStripeID(sub.StripeSubscriptionID)
	if err != nil || updated == nil {
		updated = sub
	}
	writeJSON(w, http.StatusOK, updated)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
