package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/tidewater/subledger/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	var periodStart, periodEnd, canceledAt sql.NullTime
	var isActive, cancelAtPeriodEnd int
	err := scanner.Scan(
		&sub.ID, &sub.UserID, &sub.ProductID, &sub.StripeSubscriptionID,
		&sub.StripeCustomerID, &sub.StripePriceID, &isActive,
		&periodStart, &periodEnd, &cancelAtPeriodEnd, &canceledAt,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.IsActive = isActive != 0
	sub.CancelAtPeriodEnd = cancelAtPeriodEnd != 0
	if periodStart.Valid {
		sub.CurrentPeriodStart = &periodStart.Time
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	if canceledAt.Valid {
		sub.CanceledAt = &canceledAt.Time
	}
	return &sub, nil
}

const subscriptionCols = `id, user_id, product_id, stripe_subscription_id, stripe_customer_id, stripe_price_id, is_active, current_period_start, current_period_end, cancel_at_period_end, canceled_at, created_at, updated_at`

// UpsertParams is the provider-observed state for one subscription.
type UpsertParams struct {
	UserID               string
	ProductID            string
	StripeSubscriptionID string
	StripeCustomerID     string
	StripePriceID        string
	IsActive             bool
	CurrentPeriodStart   sql.NullTime
	CurrentPeriodEnd     sql.NullTime
	CancelAtPeriodEnd    bool
	CanceledAt           sql.NullTime
}

// Upsert inserts the subscription, or on conflict with the unique
// stripe_subscription_id updates only the mutable fields. The internal id,
// user and product references from the first insert are never touched.
func (s *SubscriptionStore) Upsert(p UpsertParams) error {
	isActive := 0
	if p.IsActive {
		isActive = 1
	}
	cancelAtPeriodEnd := 0
	if p.CancelAtPeriodEnd {
		cancelAtPeriodEnd = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO subscriptions (
			id, user_id, product_id, stripe_subscription_id, stripe_customer_id,
			stripe_price_id, is_active, current_period_start, current_period_end,
			cancel_at_period_end, canceled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stripe_subscription_id) DO UPDATE SET
			stripe_price_id = excluded.stripe_price_id,
			is_active = excluded.is_active,
			current_period_start = excluded.current_period_start,
			current_period_end = excluded.current_period_end,
			cancel_at_period_end = excluded.cancel_at_period_end,
			canceled_at = excluded.canceled_at,
			updated_at = CURRENT_TIMESTAMP`,
		uuid.NewString(), p.UserID, p.ProductID, p.StripeSubscriptionID,
		p.StripeCustomerID, p.StripePriceID, isActive,
		p.CurrentPeriodStart, p.CurrentPeriodEnd, cancelAtPeriodEnd, p.CanceledAt,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) GetByStripeID(stripeSubID string) (*model.Subscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE stripe_subscription_id = ?`,
		stripeSubID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by stripe id: %w", err)
	}
	return sub, nil
}

// GetByUserID returns the user's most recent subscription, nil if none.
func (s *SubscriptionStore) GetByUserID(userID string) (*model.Subscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE user_id = ? ORDER BY created_at DESC LIMIT 1`,
		userID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by user: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM subscriptions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return n, nil
}
