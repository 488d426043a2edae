// Package reconcile brings local subscription rows into agreement with the
// billing provider's view, via webhooks or the bulk sync job. Both paths run
// through the same per-subscription routine.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidewater/subledger/internal/provider"
	"github.com/tidewater/subledger/internal/store"
)

var (
	// ErrUnknownCustomer means no local user carries the provider customer id.
	// User rows are owned by the identity sync; reconciliation never creates them.
	ErrUnknownCustomer = errors.New("no user for stripe customer")
	// ErrMissingLineItem means the provider payload carried no price reference.
	ErrMissingLineItem = errors.New("subscription has no line item")
	// ErrMissingProduct means the line item carried no product reference.
	ErrMissingProduct = errors.New("subscription has no product")
)

type Engine struct {
	provider      provider.Client
	users         *store.UserStore
	products      *store.ProductStore
	subscriptions *store.SubscriptionStore
	logger        *slog.Logger
}

func NewEngine(
	pc provider.Client,
	users *store.UserStore,
	products *store.ProductStore,
	subscriptions *store.SubscriptionStore,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		provider:      pc,
		users:         users,
		products:      products,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// Outcome reports side effects of a single reconciliation.
type Outcome struct {
	ProductCreated bool
}

// ReconcileSubscription fetches the subscription's full detail from the
// provider and upserts the local row. Webhook payloads may be partial, so the
// detail is always re-fetched. Any failure aborts this subscription only and
// leaves no partial row behind.
func (e *Engine) ReconcileSubscription(ctx context.Context, subscriptionID string) (*Outcome, error) {
	sub, err := e.provider.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return e.reconcile(ctx, sub)
}

func (e *Engine) reconcile(ctx context.Context, sub *provider.Subscription) (*Outcome, error) {
	user, err := e.users.GetByStripeCustomerID(sub.CustomerID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("customer %s: %w", sub.CustomerID, ErrUnknownCustomer)
	}

	if sub.PriceID == "" {
		return nil, fmt.Errorf("subscription %s: %w", sub.ID, ErrMissingLineItem)
	}
	if sub.ProductID == "" {
		return nil, fmt.Errorf("subscription %s: %w", sub.ID, ErrMissingProduct)
	}

	outcome := &Outcome{}
	prod, err := e.products.GetByStripeProductID(sub.ProductID)
	if err != nil {
		return nil, err
	}
	if prod == nil {
		// Product detail needs its own round trip; the subscription fetch
		// only expands one level deep.
		detail, err := e.provider.GetProduct(ctx, sub.ProductID)
		if err != nil {
			return nil, err
		}
		price := detail.UnitAmount
		if price == 0 {
			price = sub.UnitAmount
		}
		prod, err = e.products.Create(store.ProductParams{
			StripeProductID: detail.ID,
			Name:            detail.Name,
			Description:     detail.Description,
			Price:           price,
			IsActive:        detail.Active,
			StripePriceID:   sub.PriceID,
		})
		if err != nil {
			return nil, err
		}
		outcome.ProductCreated = true
		e.logger.Info("created product", "stripe_product_id", detail.ID, "name", detail.Name)
	}

	if err := e.subscriptions.Upsert(store.UpsertParams{
		UserID:               user.ID,
		ProductID:            prod.ID,
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     sub.CustomerID,
		StripePriceID:        sub.PriceID,
		IsActive:             sub.Active(),
		CurrentPeriodStart:   nullTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:     nullTime(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		CanceledAt:           nullTimePtr(sub.CanceledAt),
	}); err != nil {
		return nil, err
	}

	e.logger.Info("reconciled subscription",
		"stripe_subscription_id", sub.ID,
		"user_id", user.ID,
		"status", sub.Status,
	)
	return outcome, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
