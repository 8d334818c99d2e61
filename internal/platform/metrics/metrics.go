// Package metrics holds the process-wide operational counters (spec §4.6).
//
// Counters are the authoritative, never-reset tallies returned by
// GET /metrics/. The same increments are mirrored into Prometheus
// instruments for scraping (spec §4.6); the Prometheus side is purely
// additive instrumentation and is never read back as a source of truth.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Snapshot is the JSON shape returned by GET /metrics/.
type Snapshot struct {
	Counters   map[string]int64            `json:"counters"`
	Breakdowns map[string]map[string]int64 `json:"breakdowns"`
}

// Counters is the thread-safe, process-wide tally store.
type Counters struct {
	mu sync.Mutex

	runsTotal              int64
	eventsIngestedTotal    int64
	eventsNormalizedTotal  int64
	eventsRejectedByReason map[string]int64
	incidentsCreatedByType map[string]int64
	incidentsMergedByType  map[string]int64
	transitionsByEdge      map[string]int64

	registry *prometheus.Registry
	prom     *promMetrics
}

// Registry exposes the dedicated Prometheus registry backing this
// instance's instruments, for wiring into the /internal/metrics handler.
func (c *Counters) Registry() *prometheus.Registry { return c.registry }

type promMetrics struct {
	runsTotal             prometheus.Counter
	eventsIngestedTotal   prometheus.Counter
	eventsNormalizedTotal prometheus.Counter
	eventsRejectedTotal   *prometheus.CounterVec
	incidentsCreatedTotal *prometheus.CounterVec
	incidentsMergedTotal  *prometheus.CounterVec
	transitionsTotal      *prometheus.CounterVec
}

// New creates the counters store and its own Prometheus registry, so
// multiple instances (as in tests) never collide on the process-wide
// default registerer.
func New() *Counters {
	registry := prometheus.NewRegistry()
	return &Counters{
		eventsRejectedByReason: make(map[string]int64),
		incidentsCreatedByType: make(map[string]int64),
		incidentsMergedByType:  make(map[string]int64),
		transitionsByEdge:      make(map[string]int64),
		registry:               registry,
		prom:                   newPromMetrics(registry),
	}
}

func newPromMetrics(registry *prometheus.Registry) *promMetrics {
	factory := promauto.With(registry)
	return &promMetrics{
		runsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "authsentinel_runs_total",
			Help: "Total number of ingest runs processed.",
		}),
		eventsIngestedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "authsentinel_events_ingested_total",
			Help: "Total number of raw events received across all runs.",
		}),
		eventsNormalizedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "authsentinel_events_normalized_total",
			Help: "Total number of events that survived normalization.",
		}),
		eventsRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authsentinel_events_rejected_total",
			Help: "Total number of events rejected during normalization, by reason.",
		}, []string{"reason"}),
		incidentsCreatedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authsentinel_incidents_created_total",
			Help: "Total number of new incidents created, by type.",
		}, []string{"type"}),
		incidentsMergedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authsentinel_incidents_merged_total",
			Help: "Total number of incident upserts that merged into an existing incident, by type.",
		}, []string{"type"}),
		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authsentinel_transitions_total",
			Help: "Total number of lifecycle transitions, by from->to edge.",
		}, []string{"edge"}),
	}
}

// IncRuns records one completed ingest run.
func (c *Counters) IncRuns() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runsTotal++
	c.prom.runsTotal.Inc()
}

// AddEventsIngested records n raw events received in one run.
func (c *Counters) AddEventsIngested(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventsIngestedTotal += int64(n)
	c.prom.eventsIngestedTotal.Add(float64(n))
}

// AddEventsNormalized records n events that survived normalization.
func (c *Counters) AddEventsNormalized(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventsNormalizedTotal += int64(n)
	c.prom.eventsNormalizedTotal.Add(float64(n))
}

// IncEventsRejected records one rejected event for the given reason.
func (c *Counters) IncEventsRejected(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventsRejectedByReason[reason]++
	c.prom.eventsRejectedTotal.WithLabelValues(reason).Inc()
}

// IncIncidentsCreated records one newly created incident of the given type.
func (c *Counters) IncIncidentsCreated(incidentType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incidentsCreatedByType[incidentType]++
	c.prom.incidentsCreatedTotal.WithLabelValues(incidentType).Inc()
}

// IncIncidentsMerged records one upsert that merged into an existing incident.
func (c *Counters) IncIncidentsMerged(incidentType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incidentsMergedByType[incidentType]++
	c.prom.incidentsMergedTotal.WithLabelValues(incidentType).Inc()
}

// IncTransition records one lifecycle transition from -> to.
func (c *Counters) IncTransition(from, to string) {
	edge := from + "->" + to
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitionsByEdge[edge]++
	c.prom.transitionsTotal.WithLabelValues(edge).Inc()
}

// Snapshot returns a point-in-time copy suitable for JSON serialization.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Counters: map[string]int64{
			"runs_total":             c.runsTotal,
			"events_ingested_total":  c.eventsIngestedTotal,
			"events_normalized_total": c.eventsNormalizedTotal,
		},
		Breakdowns: map[string]map[string]int64{
			"events_rejected_total":   copyMap(c.eventsRejectedByReason),
			"incidents_created_total": copyMap(c.incidentsCreatedByType),
			"incidents_merged_total":  copyMap(c.incidentsMergedByType),
			"transitions_total":       copyMap(c.transitionsByEdge),
		},
	}
	return snap
}

func copyMap(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
