package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"authsentinel/internal/domain"
	"authsentinel/pkg/platform/httputil"
)

// runNormalizedBody is the JSON shape for GET /runs/{id}/normalized (spec §6).
type runNormalizedBody struct {
	EventCount int                      `json:"event_count"`
	Events     []domain.NormalizedEvent `json:"events"`
}

// runIncidentsBody is the JSON shape for GET /runs/{id}/incidents (spec §6).
type runIncidentsBody struct {
	IncidentCount int               `json:"incident_count"`
	Incidents     []domain.Incident `json:"incidents"`
}

// handleListRuns handles GET /runs/ (spec §6).
func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := h.runs.ListIDs()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, ids)
}

// handleRunMeta handles GET /runs/{id}/meta.
func (h *Handler) handleRunMeta(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, _, err := h.runs.Meta(id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, run)
}

// handleRunNormalized handles GET /runs/{id}/normalized.
func (h *Handler) handleRunNormalized(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	count, events, err := h.runs.Normalized(id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if events == nil {
		events = []domain.NormalizedEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, runNormalizedBody{EventCount: count, Events: events})
}

// handleRunIncidents handles GET /runs/{id}/incidents.
func (h *Handler) handleRunIncidents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	count, runIncidents, err := h.runs.Incidents(id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, runIncidentsBody{IncidentCount: count, Incidents: runIncidents})
}
