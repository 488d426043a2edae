package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/tidewater/subledger/internal/model"
)

func seedUserAndProduct(t *testing.T, us *UserStore, ps *ProductStore) (*model.User, *model.Product) {
	t.Helper()
	u, err := us.Create(UserParams{ClerkID: "user_abc", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	p, err := ps.Create(ProductParams{StripeProductID: "prod_x", Name: "Pro", Price: 1500, IsActive: true, StripePriceID: "price_m"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return u, p
}

func baseUpsert(u *model.User, p *model.Product) UpsertParams {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return UpsertParams{
		UserID:               u.ID,
		ProductID:            p.ID,
		StripeSubscriptionID: "sub_123",
		StripeCustomerID:     "cus_abc",
		StripePriceID:        "price_m",
		IsActive:             true,
		CurrentPeriodStart:   sql.NullTime{Time: start, Valid: true},
		CurrentPeriodEnd:     sql.NullTime{Time: end, Valid: true},
	}
}

func TestSubscriptionUpsertInsert(t *testing.T) {
	us, ps, ss := setupTestDB(t)
	u, p := seedUserAndProduct(t, us, ps)

	if err := ss.Upsert(baseUpsert(u, p)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	sub, err := ss.GetByStripeID("sub_123")
	if err != nil {
		t.Fatalf("get by stripe id: %v", err)
	}
	if sub == nil {
		t.Fatal("expected subscription row")
	}
	if sub.UserID != u.ID || sub.ProductID != p.ID {
		t.Errorf("references = (%s, %s), want (%s, %s)", sub.UserID, sub.ProductID, u.ID, p.ID)
	}
	if !sub.IsActive {
		t.Error("expected active subscription")
	}
	if sub.CurrentPeriodEnd == nil {
		t.Error("expected current_period_end set")
	}
}

func TestSubscriptionUpsertConflictUpdatesMutableFieldsOnly(t *testing.T) {
	us, ps, ss := setupTestDB(t)
	u, p := seedUserAndProduct(t, us, ps)

	if err := ss.Upsert(baseUpsert(u, p)); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	first, _ := ss.GetByStripeID("sub_123")

	// Second observation: canceled, different price, different references.
	otherUser, err := us.Create(UserParams{ClerkID: "user_other", Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("create other user: %v", err)
	}
	canceledAt := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	params := baseUpsert(otherUser, p)
	params.StripePriceID = "price_y"
	params.IsActive = false
	params.CancelAtPeriodEnd = true
	params.CanceledAt = sql.NullTime{Time: canceledAt, Valid: true}
	if err := ss.Upsert(params); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	sub, _ := ss.GetByStripeID("sub_123")
	if sub.ID != first.ID {
		t.Errorf("internal id changed: %s -> %s", first.ID, sub.ID)
	}
	if sub.UserID != u.ID {
		t.Errorf("user_id changed on conflict: %s, want %s", sub.UserID, u.ID)
	}
	if sub.StripePriceID != "price_y" {
		t.Errorf("stripe_price_id = %q, want price_y", sub.StripePriceID)
	}
	if sub.IsActive {
		t.Error("expected inactive after second observation")
	}
	if !sub.CancelAtPeriodEnd {
		t.Error("expected cancel_at_period_end set")
	}
	if sub.CanceledAt == nil || !sub.CanceledAt.Equal(canceledAt) {
		t.Errorf("canceled_at = %v, want %v", sub.CanceledAt, canceledAt)
	}

	n, _ := ss.Count()
	if n != 1 {
		t.Errorf("row count = %d, want 1", n)
	}
}

func TestSubscriptionGetByUserID(t *testing.T) {
	us, ps, ss := setupTestDB(t)
	u, p := seedUserAndProduct(t, us, ps)

	if err := ss.Upsert(baseUpsert(u, p)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	sub, err := ss.GetByUserID(u.ID)
	if err != nil {
		t.Fatalf("get by user id: %v", err)
	}
	if sub == nil || sub.StripeSubscriptionID != "sub_123" {
		t.Fatalf("got %v, want sub_123", sub)
	}

	missing, err := ss.GetByUserID("nope")
	if err != nil {
		t.Fatalf("get by user id: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for user with no subscription")
	}
}

func TestSubscriptionCascadeDeleteWithUser(t *testing.T) {
	us, ps, ss := setupTestDB(t)
	u, p := seedUserAndProduct(t, us, ps)

	if err := ss.Upsert(baseUpsert(u, p)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := us.DeleteByClerkID(u.ClerkID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	sub, _ := ss.GetByStripeID("sub_123")
	if sub != nil {
		t.Error("expected subscription removed by cascade")
	}

	// Products survive user deletion.
	prod, _ := ps.GetByStripeProductID("prod_x")
	if prod == nil {
		t.Error("expected product to remain")
	}
}

func TestSubscriptionUnknownUserRejected(t *testing.T) {
	us, ps, ss := setupTestDB(t)
	_, p := seedUserAndProduct(t, us, ps)

	params := baseUpsert(&model.User{ID: "missing-user"}, p)
	if err := ss.Upsert(params); err == nil {
		t.Error("expected foreign key violation for unknown user")
	}
}
