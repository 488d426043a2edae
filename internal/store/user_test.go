package store

import (
	"testing"

	"github.com/tidewater/subledger/internal/database"
)

func setupTestDB(t *testing.T) (*UserStore, *ProductStore, *SubscriptionStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db), NewProductStore(db), NewSubscriptionStore(db)
}

func strPtr(s string) *string { return &s }

func TestUserCreate(t *testing.T) {
	us, _, _ := setupTestDB(t)

	u, err := us.Create(UserParams{
		ClerkID:   "user_abc",
		Email:     "alice@example.com",
		FirstName: strPtr("Alice"),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == "" {
		t.Error("expected generated id")
	}
	if u.ClerkID != "user_abc" {
		t.Errorf("clerk_id = %q, want %q", u.ClerkID, "user_abc")
	}
	if u.FirstName == nil || *u.FirstName != "Alice" {
		t.Errorf("first_name = %v, want Alice", u.FirstName)
	}
	if u.StripeCustomerID != nil {
		t.Errorf("stripe_customer_id = %v, want nil", u.StripeCustomerID)
	}
}

func TestUserUniqueEmail(t *testing.T) {
	us, _, _ := setupTestDB(t)

	if _, err := us.Create(UserParams{ClerkID: "user_1", Email: "dup@example.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.Create(UserParams{ClerkID: "user_2", Email: "dup@example.com"}); err == nil {
		t.Error("expected unique constraint violation on email")
	}
}

func TestUserGetByClerkID(t *testing.T) {
	us, _, _ := setupTestDB(t)

	created, _ := us.Create(UserParams{ClerkID: "user_abc", Email: "alice@example.com"})

	u, err := us.GetByClerkID("user_abc")
	if err != nil {
		t.Fatalf("get by clerk id: %v", err)
	}
	if u == nil || u.ID != created.ID {
		t.Fatalf("got %v, want user %s", u, created.ID)
	}

	missing, err := us.GetByClerkID("user_nope")
	if err != nil {
		t.Fatalf("get by clerk id: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown clerk id")
	}
}

func TestUserGetByStripeCustomerID(t *testing.T) {
	us, _, _ := setupTestDB(t)

	u, _ := us.Create(UserParams{ClerkID: "user_abc", Email: "alice@example.com"})
	if err := us.UpdateStripeCustomerID(u.ID, "cus_abc"); err != nil {
		t.Fatalf("update stripe customer id: %v", err)
	}

	got, err := us.GetByStripeCustomerID("cus_abc")
	if err != nil {
		t.Fatalf("get by stripe customer id: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatalf("got %v, want user %s", got, u.ID)
	}
}

func TestUserUpdateProfile(t *testing.T) {
	us, _, _ := setupTestDB(t)

	u, _ := us.Create(UserParams{ClerkID: "user_abc", Email: "alice@example.com"})

	err := us.UpdateProfile(UserParams{
		ClerkID:   "user_abc",
		Email:     "alice@example.com",
		FirstName: strPtr("Alicia"),
		LastName:  strPtr("Smith"),
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}

	got, _ := us.GetByID(u.ID)
	if got.FirstName == nil || *got.FirstName != "Alicia" {
		t.Errorf("first_name = %v, want Alicia", got.FirstName)
	}
	if got.LastName == nil || *got.LastName != "Smith" {
		t.Errorf("last_name = %v, want Smith", got.LastName)
	}
}

func TestUserDeleteByClerkID(t *testing.T) {
	us, _, _ := setupTestDB(t)

	us.Create(UserParams{ClerkID: "user_abc", Email: "alice@example.com"})
	if err := us.DeleteByClerkID("user_abc"); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	got, _ := us.GetByClerkID("user_abc")
	if got != nil {
		t.Error("expected user to be deleted")
	}
}

func TestUserCount(t *testing.T) {
	us, _, _ := setupTestDB(t)

	us.Create(UserParams{ClerkID: "user_1", Email: "a@example.com"})
	us.Create(UserParams{ClerkID: "user_2", Email: "b@example.com"})

	n, err := us.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}
