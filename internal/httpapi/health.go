package httpapi

import (
	"net/http"

	"authsentinel/pkg/platform/httputil"
)

// handleMetrics handles GET /metrics/ (spec §4.6, §6).
func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.metrics.Snapshot())
}

// handleHealth handles GET /health (spec §6).
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
