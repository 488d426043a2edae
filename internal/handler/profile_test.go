package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tidewater/subledger/internal/database"
	"github.com/tidewater/subledger/internal/model"
	"github.com/tidewater/subledger/internal/store"
)

func setupProfile(t *testing.T) (*ProfileHandler, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProfileHandler(users, logger), users
}

func seedProfileUser(t *testing.T, users *store.UserStore) *model.User {
	t.Helper()
	firstName := "Alice"
	imageURL := "https://img.test/alice.png"
	u, err := users.Create(store.UserParams{
		ClerkID:   "user_abc",
		Email:     "alice@example.com",
		FirstName: &firstName,
		ImageURL:  &imageURL,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestProfileGet(t *testing.T) {
	h, users := setupProfile(t)
	user := seedProfileUser(t, users)

	rec := httptest.NewRecorder()
	h.Get(rec, authedRequest(user, http.MethodGet, "/api/profile", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp model.User
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Email != "alice@example.com" {
		t.Errorf("email = %s, want alice@example.com", resp.Email)
	}
}

func TestProfileGetUnauthorized(t *testing.T) {
	h, _ := setupProfile(t)

	rec := httptest.NewRecorder()
	h.Get(rec, authedRequest(nil, http.MethodGet, "/api/profile", ""))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestProfileUpdateKeepsAbsentFields(t *testing.T) {
	h, users := setupProfile(t)
	user := seedProfileUser(t, users)

	rec := httptest.NewRecorder()
	h.Update(rec, authedRequest(user, http.MethodPut, "/api/profile", `{"last_name":"Smith"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	stored, _ := users.GetByID(user.ID)
	if stored.LastName == nil || *stored.LastName != "Smith" {
		t.Errorf("last_name = %v, want Smith", stored.LastName)
	}
	if stored.FirstName == nil || *stored.FirstName != "Alice" {
		t.Errorf("first_name = %v, want Alice kept", stored.FirstName)
	}
	if stored.ImageURL == nil {
		t.Error("image_url must survive an update that does not mention it")
	}
	if stored.Email != "alice@example.com" {
		t.Errorf("email = %s, must be immutable here", stored.Email)
	}
}

func TestProfileUpdateNullClearsField(t *testing.T) {
	h, users := setupProfile(t)
	user := seedProfileUser(t, users)

	rec := httptest.NewRecorder()
	h.Update(rec, authedRequest(user, http.MethodPut, "/api/profile", `{"first_name":null}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	stored, _ := users.GetByID(user.ID)
	if stored.FirstName != nil {
		t.Errorf("first_name = %q, want cleared", *stored.FirstName)
	}
	if stored.ImageURL == nil {
		t.Error("absent image_url must be kept")
	}
}

func TestProfileUpdateInvalidBody(t *testing.T) {
	h, users := setupProfile(t)
	user := seedProfileUser(t, users)

	rec := httptest.NewRecorder()
	h.Update(rec, authedRequest(user, http.MethodPut, "/api/profile", `not json`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
