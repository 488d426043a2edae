package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tidewater/subledger/internal/database"
	"github.com/tidewater/subledger/internal/provider"
	"github.com/tidewater/subledger/internal/store"
)

func setupPlans(t *testing.T) (*PlansHandler, *store.ProductStore, *scriptedProvider) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	products := store.NewProductStore(db)
	sp := &scriptedProvider{
		subs:     make(map[string]*provider.Subscription),
		products: make(map[string]*provider.Product),
		prices:   make(map[string][]*provider.Price),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPlansHandler(products, sp, logger), products, sp
}

func TestListPlans(t *testing.T) {
	h, products, sp := setupPlans(t)
	if _, err := products.Create(store.ProductParams{
		StripeProductID: "prod_x", Name: "Pro", Price: 1500, IsActive: true, StripePriceID: "price_m",
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := products.Create(store.ProductParams{
		StripeProductID: "prod_y", Name: "Team", Price: 4500, IsActive: true, StripePriceID: "price_t",
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	sp.prices["prod_x"] = []*provider.Price{
		{ID: "price_m", ProductID: "prod_x", UnitAmount: 1500, Currency: "usd", Interval: "month", Active: true},
		{ID: "price_y", ProductID: "prod_x", UnitAmount: 15000, Currency: "usd", Interval: "year", Active: true},
	}

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var plans []struct {
		StripeProductID string            `json:"stripe_product_id"`
		Name            string            `json:"name"`
		Prices          []*provider.Price `json:"prices"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&plans); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("plans = %d, want 2", len(plans))
	}
	byProduct := make(map[string]int)
	for _, p := range plans {
		byProduct[p.StripeProductID] = len(p.Prices)
	}
	if byProduct["prod_x"] != 2 {
		t.Errorf("prod_x prices = %d, want 2", byProduct["prod_x"])
	}
	if byProduct["prod_y"] != 0 {
		t.Errorf("prod_y prices = %d, want 0", byProduct["prod_y"])
	}
}

func TestListPlansEmptyCatalog(t *testing.T) {
	h, _, _ := setupPlans(t)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var plans []json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&plans); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if plans == nil || len(plans) != 0 {
		t.Errorf("body = %s, want empty array", rec.Body.String())
	}
}

func TestListPlansProviderError(t *testing.T) {
	h, products, sp := setupPlans(t)
	if _, err := products.Create(store.ProductParams{StripeProductID: "prod_x", Name: "Pro"}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	sp.pricesErr = errors.New("stripe unavailable")

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
