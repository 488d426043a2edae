// Package provider defines the narrow billing-provider surface the
// reconciliation engine depends on, decoupled from the Stripe SDK so tests
// can script payloads.
package provider

import (
	"context"
	"time"
)

// Subscription statuses as reported by the provider. Only StatusActive maps
// to an active local row; everything else is inactive.
const (
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
	StatusTrialing = "trialing"
)

// Subscription is the provider's view of one subscription. ListSubscriptions
// may return partially-populated records (id and customer only); the engine
// re-fetches via GetSubscription for line-item detail.
type Subscription struct {
	ID                 string
	CustomerID         string
	PriceID            string
	ProductID          string
	Status             string
	UnitAmount         int64
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	Created            time.Time
}

// Active reports whether the provider considers the subscription active.
func (s *Subscription) Active() bool {
	return s.Status == StatusActive
}

// Product is the provider's view of one purchasable plan.
type Product struct {
	ID             string
	Name           string
	Description    string
	Active         bool
	DefaultPriceID string
	UnitAmount     int64
}

// Price is one purchase option attached to a product.
type Price struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	Interval   string `json:"interval"`
	Active     bool   `json:"active"`
}

// Client is the read surface the reconciliation engine, sync job and plan
// catalog use.
type Client interface {
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	ListSubscriptions(ctx context.Context) ([]*Subscription, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context) ([]*Product, error)
	ListPrices(ctx context.Context, productID string) ([]*Price, error)
}

// SessionClient is the write surface the user-facing billing handlers use:
// customer provisioning, hosted sessions and cancellation scheduling.
type SessionClient interface {
	CreateCustomer(ctx context.Context, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID, priceID string) (string, error)
	CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	ScheduleCancel(ctx context.Context, subscriptionID string, cancel bool) error
}
