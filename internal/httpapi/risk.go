package httpapi

import (
	"net/http"

	"authsentinel/internal/risk"
	"authsentinel/pkg/platform/httputil"
	"authsentinel/pkg/requestcontext"
)

// entityRiskBody is the JSON shape for GET /entity-risk/ (spec §4.5, §6).
type entityRiskBody struct {
	Entities []risk.EntityView `json:"entities"`
}

// handleEntityRisk handles GET /entity-risk/.
func (h *Handler) handleEntityRisk(w http.ResponseWriter, r *http.Request) {
	now := requestcontext.Now(r.Context())
	entities := h.risk.GetAll(now)
	if entities == nil {
		entities = []risk.EntityView{}
	}
	httputil.WriteJSON(w, http.StatusOK, entityRiskBody{Entities: entities})
}
