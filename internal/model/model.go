package model

import "time"

// User mirrors an identity-provider account. Rows are owned by the identity
// sync webhook; the billing side only ever writes StripeCustomerID.
type User struct {
	ID               string     `json:"id"`
	ClerkID          string     `json:"clerk_id"`
	Email            string     `json:"email"`
	FirstName        *string    `json:"first_name"`
	LastName         *string    `json:"last_name"`
	ImageURL         *string    `json:"image_url"`
	StripeCustomerID *string    `json:"stripe_customer_id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Product is a purchasable plan mirrored from Stripe. Created lazily the
// first time a subscription references an unknown stripe product id.
type Product struct {
	ID              string    `json:"id"`
	StripeProductID string    `json:"stripe_product_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Price           int64     `json:"price"` // minor currency units
	IsActive        bool      `json:"is_active"`
	StripePriceID   string    `json:"stripe_price_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Subscription is the reconciled entity. One row per stripe subscription id;
// user and product references are fixed at first insert, only status, period
// and cancellation fields change afterwards.
type Subscription struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	ProductID            string     `json:"product_id"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
	StripeCustomerID     string     `json:"stripe_customer_id"`
	StripePriceID        string     `json:"stripe_price_id"`
	IsActive             bool       `json:"is_active"`
	CurrentPeriodStart   *time.Time `json:"current_period_start"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	CanceledAt           *time.Time `json:"canceled_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
