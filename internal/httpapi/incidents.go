package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"authsentinel/internal/domain"
	"authsentinel/internal/incidents"
	"authsentinel/pkg/domainerrors"
	"authsentinel/pkg/platform/httputil"
	"authsentinel/pkg/requestcontext"
)

// listIncidentsBody is the JSON shape for GET /incidents/ (spec §6).
type listIncidentsBody struct {
	IncidentCount int               `json:"incident_count"`
	Incidents     []domain.Incident `json:"incidents"`
}

// handleListIncidents handles GET /incidents/, optionally filtered by
// ?type= and ?status= query parameters.
func (h *Handler) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	filters := incidents.Filters{
		Type:   domain.IncidentType(r.URL.Query().Get("type")),
		Status: domain.Status(r.URL.Query().Get("status")),
	}
	list := h.registry.List(filters)
	if list == nil {
		list = []domain.Incident{}
	}
	httputil.WriteJSON(w, http.StatusOK, listIncidentsBody{IncidentCount: len(list), Incidents: list})
}

// handleGetIncident handles GET /incidents/{id}, annotating the result with
// is_stale (spec §6, §4.4).
func (h *Handler) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	incident, err := h.registry.Get(id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	incident.IsStale = incidents.IsStale(incident, requestcontext.Now(r.Context()))
	httputil.WriteJSON(w, http.StatusOK, incident)
}

// patchIncidentRequest is the PATCH /incidents/{id} request body (spec §6).
type patchIncidentRequest struct {
	Status           domain.Status `json:"status"`
	ResolutionReason *string       `json:"resolution_reason,omitempty"`
}

// handlePatchIncident handles PATCH /incidents/{id} (spec §4.4, §6).
func (h *Handler) handlePatchIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := httputil.Decode[patchIncidentRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Status == "" {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "status is required"))
		return
	}

	now := requestcontext.Now(r.Context())
	updated, err := h.registry.Transition(now, id, req.Status, req.ResolutionReason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}
