package handler

import (
	"log/slog"
	"net/http"

	"github.com/tidewater/subledger/internal/reconcile"
)

// SyncHandler exposes the drift report and the bulk sync trigger to admins.
type SyncHandler struct {
	engine *reconcile.Engine
	logger *slog.Logger
}

func NewSyncHandler(engine *reconcile.Engine, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{engine: engine, logger: logger}
}

// Status compares local row counts against provider counts.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.Status(r.Context())
	if err != nil {
		h.logger.Error("sync status", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"database": map[string]int{
			"subscriptions": status.LocalSubscriptions,
			"products":      status.LocalProducts,
		},
		"stripe": map[string]int{
			"subscriptions": status.ProviderSubscriptions,
			"products":      status.ProviderProducts,
		},
		"in_sync": status.InSync(),
	})
}

// Run triggers a full sync. A failure enumerating remote subscriptions is
// fatal to the run; per-item failures come back in the result.
func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.SyncAll(r.Context())
	if err != nil {
		h.logger.Error("sync run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": result,
	})
}
