// Package httpapi implements the HTTP surface (spec §6): ingest, run
// artifact retrieval, incident query/lifecycle, entity risk, metrics, and
// health.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"authsentinel/internal/incidents"
	"authsentinel/internal/ingest"
	"authsentinel/internal/platform/httpmiddleware"
	"authsentinel/internal/platform/metrics"
	"authsentinel/internal/risk"
	"authsentinel/internal/runs"
	"authsentinel/pkg/platform/middleware/requesttime"
)

// Handler wires the HTTP surface to the service layer. Dependencies are the
// concrete components rather than interfaces: every test exercises real,
// in-memory instances of them, so there is no seam that needs mocking.
type Handler struct {
	ingest   *ingest.Orchestrator
	registry *incidents.Registry
	runs     *runs.Store
	risk     *risk.Engine
	metrics  *metrics.Counters
	logger   *slog.Logger
}

// New constructs the HTTP handler.
func New(orchestrator *ingest.Orchestrator, registry *incidents.Registry, runStore *runs.Store, riskEngine *risk.Engine, counters *metrics.Counters, logger *slog.Logger) *Handler {
	return &Handler{
		ingest:   orchestrator,
		registry: registry,
		runs:     runStore,
		risk:     riskEngine,
		metrics:  counters,
		logger:   logger,
	}
}

// Router builds the full chi router with the standard middleware chain.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(httpmiddleware.RequestID)
	r.Use(httpmiddleware.Recovery(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(httpmiddleware.Logging(h.logger))

	r.Post("/ingest/", h.handleIngest)
	r.Get("/runs/", h.handleListRuns)
	r.Get("/runs/{id}/meta", h.handleRunMeta)
	r.Get("/runs/{id}/normalized", h.handleRunNormalized)
	r.Get("/runs/{id}/incidents", h.handleRunIncidents)
	r.Get("/incidents/", h.handleListIncidents)
	r.Get("/incidents/{id}", h.handleGetIncident)
	r.Patch("/incidents/{id}", h.handlePatchIncident)
	r.Get("/entity-risk/", h.handleEntityRisk)
	r.Get("/metrics/", h.handleMetrics)
	r.Get("/health", h.handleHealth)
	r.Handle("/internal/metrics", promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{}))

	return r
}
