package handlers

import (
	"net/http"

	"storylab-engine/internal/providers"
)

// ListProviders returns the registered capability provider names and the
// capability kinds the engine dispatches on.
func (h *Handlers) ListProviders(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": h.providers.Names(),
		"kinds":     []providers.Kind{providers.KindText, providers.KindImage, providers.KindVideo},
	})
}

// Health reports storage and status-cache health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Health(); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	status := "healthy"
	payload := map[string]interface{}{}
	if err := h.tracker.PingCache(r.Context()); err != nil {
		status = "degraded"
		payload["cache"] = err.Error()
	}
	payload["status"] = status

	h.writeJSON(w, http.StatusOK, payload)
}
