package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/tidewater/subledger/internal/reconcile"
	substripe "github.com/tidewater/subledger/internal/stripe"
)

// eventKind is the closed set of billing events this service acts on.
// Anything else classifies as eventUnrecognized and is acknowledged untouched.
type eventKind int

const (
	eventUnrecognized eventKind = iota
	eventCheckoutCompleted
	eventSubscriptionUpdated
	eventSubscriptionDeleted
	eventInvoicePaymentSucceeded
	eventInvoicePaymentFailed
)

func classifyEvent(t stripe.EventType) eventKind {
	switch t {
	case "checkout.session.completed":
		return eventCheckoutCompleted
	case "customer.subscription.updated":
		return eventSubscriptionUpdated
	case "customer.subscription.deleted":
		return eventSubscriptionDeleted
	case "invoice.payment_succeeded":
		return eventInvoicePaymentSucceeded
	case "invoice.payment_failed":
		return eventInvoicePaymentFailed
	default:
		return eventUnrecognized
	}
}

type WebhookHandler struct {
	stripeClient *substripe.Client
	engine       *reconcile.Engine
	logger       *slog.Logger
}

func NewWebhookHandler(sc *substripe.Client, engine *reconcile.Engine, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		stripeClient: sc,
		engine:       engine,
		logger:       logger,
	}
}

// HandleStripeWebhook verifies the signature, classifies the event and hands
// the subscription id to the reconciliation engine. Once the event verifies,
// the response is always 200: reconciliation failures are logged, never
// surfaced to the provider, because redelivery is keyed on HTTP status and a
// persistent reconciliation bug would otherwise loop forever.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		http.Error(w, "missing signature", http.StatusBadRequest)
		return
	}

	event, err := h.stripeClient.ConstructWebhookEvent(body, sigHeader)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	switch classifyEvent(event.Type) {
	case eventCheckoutCompleted:
		h.handleCheckoutCompleted(r, event)
	case eventSubscriptionUpdated, eventSubscriptionDeleted:
		h.handleSubscriptionEvent(r, event)
	case eventInvoicePaymentSucceeded, eventInvoicePaymentFailed:
		h.handleInvoiceEvent(r, event)
	case eventUnrecognized:
		h.logger.Debug("ignoring event", "type", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleCheckoutCompleted(r *http.Request, event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("unmarshal checkout session", "error", err)
		return
	}
	if sess.Subscription == nil {
		// One-time payments carry no subscription.
		return
	}
	h.reconcile(r, sess.Subscription.ID, event.Type)
}

func (h *WebhookHandler) handleSubscriptionEvent(r *http.Request, event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("unmarshal subscription", "error", err)
		return
	}
	h.reconcile(r, sub.ID, event.Type)
}

func (h *WebhookHandler) handleInvoiceEvent(r *http.Request, event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("unmarshal invoice", "error", err)
		return
	}
	subID := subscriptionIDFromInvoice(invoice)
	if subID == "" {
		return
	}
	h.reconcile(r, subID, event.Type)
}

func (h *WebhookHandler) reconcile(r *http.Request, subscriptionID string, eventType stripe.EventType) {
	if _, err := h.engine.ReconcileSubscription(r.Context(), subscriptionID); err != nil {
		h.logger.Error("webhook reconciliation failed",
			"stripe_subscription_id", subscriptionID,
			"event_type", eventType,
			"error", err,
		)
	}
}

// subscriptionIDFromInvoice extracts the subscription ID from an invoice's parent.
func subscriptionIDFromInvoice(invoice stripe.Invoice) string {
	if invoice.Parent != nil &&
		invoice.Parent.SubscriptionDetails != nil &&
		invoice.Parent.SubscriptionDetails.Subscription != nil {
		return invoice.Parent.SubscriptionDetails.Subscription.ID
	}
	return ""
}
