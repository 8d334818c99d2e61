package httpapi

import (
	"io"
	"net/http"

	"authsentinel/internal/rawevent"
	"authsentinel/pkg/domainerrors"
	"authsentinel/pkg/platform/httputil"
	"authsentinel/pkg/requestcontext"
)

// handleIngest handles POST /ingest/ (spec §6).
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteError(w, domainerrors.Wrap(err, domainerrors.CodeBadRequest, "read request body"))
		return
	}

	batch, err := rawevent.ParseBatch(body)
	if err != nil {
		httputil.WriteError(w, domainerrors.Wrap(err, domainerrors.CodeBadRequest, "body must be a JSON array of events"))
		return
	}

	sourceHint := r.URL.Query().Get("source")

	summary, err := h.ingest.Ingest(ctx, batch, sourceHint)
	if err != nil {
		h.logger.ErrorContext(ctx, "ingest failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, summary)
}
