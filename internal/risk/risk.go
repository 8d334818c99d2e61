// Package risk implements the entity risk engine (spec §4.5): weighted,
// exponentially decaying per-entity scores rebuilt from the registry on
// boot and updated on every incident write.
package risk

import (
	"sort"
	"sync"
	"time"

	"authsentinel/internal/domain"
)

// Engine is the thread-safe per-entity aggregate store. It satisfies the
// incidents.RiskNotifier interface without importing that package, keeping
// the registry and the risk engine decoupled (spec §9 "global mutable
// registry" design note).
type Engine struct {
	mu       sync.RWMutex
	byEntity map[string]*domain.EntityRisk
}

// New creates an empty risk engine.
func New() *Engine {
	return &Engine{byEntity: make(map[string]*domain.EntityRisk)}
}

func entityKey(kind domain.EntityKind, value string) string {
	return string(kind) + "|" + value
}

// Apply folds one incident's current state into its affected entities'
// aggregates (spec §4.5). The weight is added once per (incident_id,
// entity) pair; repeated calls (e.g. after a lifecycle transition) update
// HighestConfidence, LastSeen, and OpenIncidents without re-adding weight.
func (e *Engine) Apply(incident domain.Incident) {
	e.mu.Lock()
	defer e.mu.Unlock()

	weight := domain.WeightFor(incident.Type)
	for _, ref := range incident.Evidence.AffectedEntities {
		kind := domain.EntityKind(ref.Kind)
		key := entityKey(kind, ref.Value)

		er, ok := e.byEntity[key]
		if !ok {
			er = &domain.EntityRisk{
				Kind:                  kind,
				Value:                 ref.Value,
				ContributingIncidents: make(map[string]domain.Status),
			}
			e.byEntity[key] = er
		}

		if _, already := er.ContributingIncidents[incident.IncidentID]; !already {
			er.Score += weight
			er.TotalIncidents++
		}
		er.ContributingIncidents[incident.IncidentID] = incident.Status

		if incident.Confidence > er.HighestConfidence {
			er.HighestConfidence = incident.Confidence
		}
		if incident.LastSeen.After(er.LastSeen) {
			er.LastSeen = incident.LastSeen
		}
		er.OpenIncidents = countOpen(er.ContributingIncidents)
	}
}

func countOpen(byIncident map[string]domain.Status) int {
	n := 0
	for _, status := range byIncident {
		if status == domain.StatusOpen || status == domain.StatusAcknowledged {
			n++
		}
	}
	return n
}

// Reset clears all engine state, used before a startup rehydration replay
// (spec §4.5 "Startup").
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byEntity = make(map[string]*domain.EntityRisk)
}

// EntityView is one row of the get_all() query (spec §4.5), with decay
// applied relative to now.
type EntityView struct {
	Kind              domain.EntityKind `json:"entity_kind"`
	Value             string            `json:"entity_value"`
	Score             float64           `json:"score"`
	TotalIncidents    int               `json:"total_incidents"`
	OpenIncidents     int               `json:"open_incidents"`
	HighestConfidence int               `json:"highest_confidence"`
	LastSeen          time.Time         `json:"last_seen"`
}

// GetAll returns every tracked entity's observed (decayed) score, sorted by
// (score desc, open_incidents desc, last_seen desc) (spec §4.5).
func (e *Engine) GetAll(now time.Time) []EntityView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	views := make([]EntityView, 0, len(e.byEntity))
	for _, er := range e.byEntity {
		views = append(views, EntityView{
			Kind:              er.Kind,
			Value:             er.Value,
			Score:             er.ObservedScore(now),
			TotalIncidents:    er.TotalIncidents,
			OpenIncidents:     er.OpenIncidents,
			HighestConfidence: er.HighestConfidence,
			LastSeen:          er.LastSeen,
		})
	}

	sort.Slice(views, func(i, j int) bool {
		if views[i].Score != views[j].Score {
			return views[i].Score > views[j].Score
		}
		if views[i].OpenIncidents != views[j].OpenIncidents {
			return views[i].OpenIncidents > views[j].OpenIncidents
		}
		return views[i].LastSeen.After(views[j].LastSeen)
	})
	return views
}

// Get returns one entity's observed score, for lookups keyed by kind+value.
func (e *Engine) Get(kind domain.EntityKind, value string, now time.Time) (EntityView, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	er, ok := e.byEntity[entityKey(kind, value)]
	if !ok {
		return EntityView{}, false
	}
	return EntityView{
		Kind:              er.Kind,
		Value:             er.Value,
		Score:             er.ObservedScore(now),
		TotalIncidents:    er.TotalIncidents,
		OpenIncidents:     er.OpenIncidents,
		HighestConfidence: er.HighestConfidence,
		LastSeen:          er.LastSeen,
	}, true
}

// Rebuild resets the engine and replays incidents in order, yielding
// deterministic startup state (spec §4.5 "Startup"). Callers must pass
// incidents already sorted by created_at ascending.
func (e *Engine) Rebuild(incidentsByCreatedAt []domain.Incident) {
	e.Reset()
	for _, inc := range incidentsByCreatedAt {
		e.Apply(inc)
	}
}
