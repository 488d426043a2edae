package handler

import (
	"log/slog"
	"net/http"

	"github.com/tidewater/subledger/internal/model"
	"github.com/tidewater/subledger/internal/provider"
	"github.com/tidewater/subledger/internal/store"
)

// PlansHandler serves the public plan catalog: every locally mirrored product
// together with its current price options from the provider.
type PlansHandler struct {
	products *store.ProductStore
	provider provider.Client
	logger   *slog.Logger
}

func NewPlansHandler(products *store.ProductStore, pc provider.Client, logger *slog.Logger) *PlansHandler {
	return &PlansHandler{products: products, provider: pc, logger: logger}
}

type plan struct {
	*model.Product
	Prices []*provider.Price `json:"prices"`
}

// List returns all products with their active prices. Prices are fetched live
// rather than mirrored; the local product row only carries the price observed
// at the last reconciliation.
func (h *PlansHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List()
	if err != nil {
		h.logger.Error("list products", "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}

	plans := make([]plan, 0, len(products))
	for _, p := range products {
		prices, err := h.provider.ListPrices(r.Context(), p.StripeProductID)
		if err != nil {
			h.logger.Error("list prices", "stripe_product_id", p.StripeProductID, "error", err)
			http.Error(w, "provider error", http.StatusBadGateway)
			return
		}
		plans = append(plans, plan{Product: p, Prices: prices})
	}

	writeJSON(w, http.StatusOK, plans)
}
