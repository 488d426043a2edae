package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	stripe "github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/product"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/tidewater/subledger/internal/provider"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// Client wraps the Stripe SDK and implements provider.Client. Transient API
// failures (rate limit, 5xx) are retried with capped exponential backoff.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// GetSubscription retrieves full subscription detail with line-item price
// expansion. The product on the price is not expanded; callers needing
// product detail make a second round trip via GetProduct.
func (c *Client) GetSubscription(ctx context.Context, id string) (*provider.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price")

	var sub *stripe.Subscription
	err := c.withRetry(ctx, func() error {
		var err error
		sub, err = subscription.Get(id, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	return subscriptionFromStripe(sub), nil
}

// ListSubscriptions walks the full subscription list across all statuses.
func (c *Client) ListSubscriptions(ctx context.Context) ([]*provider.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Status: stripe.String("all"),
	}
	params.Context = ctx

	var subs []*provider.Subscription
	iter := subscription.List(params)
	for iter.Next() {
		subs = append(subs, subscriptionFromStripe(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*provider.Product, error) {
	params := &stripe.ProductParams{}
	params.Context = ctx

	var p *stripe.Product
	err := c.withRetry(ctx, func() error {
		var err error
		p, err = product.Get(id, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return productFromStripe(p), nil
}

func (c *Client) ListProducts(ctx context.Context) ([]*provider.Product, error) {
	params := &stripe.ProductListParams{}
	params.Context = ctx

	var products []*provider.Product
	iter := product.List(params)
	for iter.Next() {
		products = append(products, productFromStripe(iter.Product()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// ListPrices returns the active prices attached to a product.
func (c *Client) ListPrices(ctx context.Context, productID string) ([]*provider.Price, error) {
	params := &stripe.PriceListParams{
		Product: stripe.String(productID),
		Active:  stripe.Bool(true),
	}
	params.Context = ctx

	var prices []*provider.Price
	iter := price.List(params)
	for iter.Next() {
		prices = append(prices, priceFromStripe(iter.Price()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list prices for %s: %w", productID, err)
	}
	return prices, nil
}

// CreateCustomer creates a Stripe customer and returns the customer ID.
func (c *Client) CreateCustomer(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession creates a subscription checkout session and returns its URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, customerID, priceID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(c.cfg.SuccessURL),
		CancelURL:           stripe.String(c.cfg.CancelURL),
	}
	params.Context = ctx
	sess, err := checksession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreateBillingPortalSession creates a billing portal session and returns its URL.
func (c *Client) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}

// ScheduleCancel flips cancel_at_period_end at the provider. The local row is
// brought up to date by the subsequent webhook or an explicit reconcile.
func (c *Client) ScheduleCancel(ctx context.Context, subscriptionID string, cancel bool) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	params.Context = ctx
	if _, err := subscription.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("update subscription %s: %w", subscriptionID, err)
	}
	return nil
}

// ConstructWebhookEvent verifies the signature and returns the parsed event.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if c.cfg.WebhookSecret == "" {
		return stripe.Event{}, errors.New("webhook secret not configured")
	}
	return webhook.ConstructEvent(payload, sigHeader, c.cfg.WebhookSecret)
}

func (c *Client) withRetry(ctx context.Context, op func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op()
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isTransient(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode == http.StatusTooManyRequests ||
			stripeErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	return false
}

func subscriptionFromStripe(s *stripe.Subscription) *provider.Subscription {
	sub := &provider.Subscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		Created:           time.Unix(s.Created, 0).UTC(),
	}
	if s.Customer != nil {
		sub.CustomerID = s.Customer.ID
	}
	if s.CanceledAt > 0 {
		t := time.Unix(s.CanceledAt, 0).UTC()
		sub.CanceledAt = &t
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		sub.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		sub.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		if item.Price != nil {
			sub.PriceID = item.Price.ID
			sub.UnitAmount = item.Price.UnitAmount
			if item.Price.Product != nil {
				sub.ProductID = item.Price.Product.ID
			}
		}
	}
	return sub
}

func priceFromStripe(p *stripe.Price) *provider.Price {
	out := &provider.Price{
		ID:         p.ID,
		UnitAmount: p.UnitAmount,
		Currency:   string(p.Currency),
		Active:     p.Active,
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	if p.Recurring != nil {
		out.Interval = string(p.Recurring.Interval)
	}
	return out
}

func productFromStripe(p *stripe.Product) *provider.Product {
	out := &provider.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Active:      p.Active,
	}
	if p.DefaultPrice != nil {
		out.DefaultPriceID = p.DefaultPrice.ID
		out.UnitAmount = p.DefaultPrice.UnitAmount
	}
	return out
}
