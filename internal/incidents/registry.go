// Package incidents implements the content-addressed incident registry
// (spec §4.4): upsert-with-merge, lifecycle transitions, persistence, and
// query, all behind one exclusive lock over the in-memory mapping.
package incidents

import (
	"sort"
	"sync"
	"time"

	"authsentinel/internal/domain"
	"authsentinel/internal/platform/metrics"
	"authsentinel/pkg/domainerrors"
	"authsentinel/pkg/platform/sentinel"
)

// RiskNotifier is the registry's view of the entity risk engine. The
// registry depends on this interface, not the concrete risk.Engine type, so
// the two packages stay decoupled (spec §9 "global mutable registry").
type RiskNotifier interface {
	Apply(incident domain.Incident)
}

// allowedTransitions enumerates every edge the PATCH endpoint may drive
// (spec §4.4). closed -> open only happens via merge, never through this
// table.
var allowedTransitions = map[domain.Status]map[domain.Status]bool{
	domain.StatusOpen:         {domain.StatusAcknowledged: true},
	domain.StatusAcknowledged: {domain.StatusClosed: true},
}

// Registry is the thread-safe, persisted incident store.
type Registry struct {
	mu    sync.RWMutex
	path  string
	byID  map[string]domain.Incident
	extra map[string]jsonRaw

	risk    RiskNotifier
	metrics *metrics.Counters
}

// New creates a registry backed by path, notifying notifier on every
// successful upsert and transition.
func New(path string, notifier RiskNotifier, counters *metrics.Counters) *Registry {
	return &Registry{
		path:    path,
		byID:    make(map[string]domain.Incident),
		risk:    notifier,
		metrics: counters,
	}
}

// Upsert inserts incident if its identity is new, or merges it into the
// existing record (spec §4.4). now supplies created_at/updated_at so the
// operation stays deterministic (spec invariant 3).
func (r *Registry) Upsert(now time.Time, incident domain.Incident) (domain.Incident, bool, error) {
	r.mu.Lock()

	existing, isMerge := r.byID[incident.IncidentID]

	var result domain.Incident
	if !isMerge {
		result = incident
		result.CreatedAt = now
		result.UpdatedAt = now
	} else {
		result = mergeIncidents(existing, incident, now)
	}

	r.byID[incident.IncidentID] = result

	if err := r.persistLocked(); err != nil {
		// Roll back the in-memory mutation so a persistence failure never
		// leaves the registry ahead of durable storage (spec §7).
		if isMerge {
			r.byID[incident.IncidentID] = existing
		} else {
			delete(r.byID, incident.IncidentID)
		}
		r.mu.Unlock()
		return domain.Incident{}, false, domainerrors.Wrap(err, domainerrors.CodeInternal, "persist incident registry")
	}
	r.mu.Unlock()

	// The risk engine is notified only after the registry lock is released,
	// so the two locks are never held together.
	if r.risk != nil {
		r.risk.Apply(result)
	}
	if r.metrics != nil {
		if isMerge {
			r.metrics.IncIncidentsMerged(string(result.Type))
		} else {
			r.metrics.IncIncidentsCreated(string(result.Type))
		}
	}

	return result, isMerge, nil
}

// mergeIncidents folds incoming into existing per spec §4.4's merge-on-upsert
// rules.
func mergeIncidents(existing, incoming domain.Incident, now time.Time) domain.Incident {
	merged := existing

	if incoming.FirstSeen.Before(merged.FirstSeen) {
		merged.FirstSeen = incoming.FirstSeen
	}
	if incoming.LastSeen.After(merged.LastSeen) {
		merged.LastSeen = incoming.LastSeen
	}
	if incoming.Evidence.WindowStart.Before(merged.Evidence.WindowStart) {
		merged.Evidence.WindowStart = incoming.Evidence.WindowStart
	}
	if incoming.Evidence.WindowEnd.After(merged.Evidence.WindowEnd) {
		merged.Evidence.WindowEnd = incoming.Evidence.WindowEnd
	}

	merged.Evidence.Counts.Failures += incoming.Evidence.Counts.Failures
	merged.Evidence.Counts.DistinctUsers = sumOptionalInt(merged.Evidence.Counts.DistinctUsers, incoming.Evidence.Counts.DistinctUsers)

	merged.Evidence.Timeline = dedupeTimeline(append(append([]domain.TimelineEntry(nil), merged.Evidence.Timeline...), incoming.Evidence.Timeline...))
	merged.Evidence.Events = dedupeEvents(append(append([]domain.NormalizedEvent(nil), merged.Evidence.Events...), incoming.Evidence.Events...))
	merged.Evidence.AffectedEntities = dedupeEntities(append(append([]domain.EntityRef(nil), merged.Evidence.AffectedEntities...), incoming.Evidence.AffectedEntities...))

	if incoming.Severity.Ordinal() > merged.Severity.Ordinal() {
		merged.Severity = incoming.Severity
	}
	if incoming.Confidence > merged.Confidence {
		merged.Confidence = incoming.Confidence
	}

	if merged.Status == domain.StatusClosed {
		merged.Status = domain.StatusOpen
		merged.ResolutionReason = nil
	}

	merged.Summary = incoming.Summary
	merged.RecommendedActions = incoming.RecommendedActions
	merged.UpdatedAt = now

	return merged
}

func sumOptionalInt(a, b *int) *int {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil:
		v := *a
		return &v
	default:
		v := *a + *b
		return &v
	}
}

func dedupeTimeline(entries []domain.TimelineEntry) []domain.TimelineEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]domain.TimelineEntry, 0, len(entries))
	for _, e := range entries {
		k := e.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}

func dedupeEvents(events []domain.NormalizedEvent) []domain.NormalizedEvent {
	seen := make(map[string]struct{}, len(events))
	out := make([]domain.NormalizedEvent, 0, len(events))
	for _, e := range events {
		k := domain.TimelineEntry{Timestamp: e.Timestamp, EventType: e.EventType, Username: e.Username}.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}

func dedupeEntities(entities []domain.EntityRef) []domain.EntityRef {
	seen := make(map[string]struct{}, len(entities))
	out := make([]domain.EntityRef, 0, len(entities))
	for _, e := range entities {
		k := e.Kind + "|" + e.Value
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Transition drives the incident lifecycle state machine (spec §4.4).
func (r *Registry) Transition(now time.Time, id string, target domain.Status, reason *string) (domain.Incident, error) {
	r.mu.Lock()

	existing, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return domain.Incident{}, wrapNotFound(sentinel.ErrNotFound, "incident "+id)
	}

	if !allowedTransitions[existing.Status][target] {
		r.mu.Unlock()
		return domain.Incident{}, domainerrors.Wrap(sentinel.ErrInvalidState, domainerrors.CodeConflict, "transition "+string(existing.Status)+" -> "+string(target))
	}

	if target == domain.StatusClosed && (reason == nil || *reason == "") {
		r.mu.Unlock()
		return domain.Incident{}, domainerrors.New(domainerrors.CodeUnprocessable, "resolution_reason is required to close an incident")
	}

	updated := existing
	updated.Status = target
	if target == domain.StatusClosed {
		updated.ResolutionReason = reason
	}
	updated.UpdatedAt = now

	r.byID[id] = updated
	if err := r.persistLocked(); err != nil {
		r.byID[id] = existing
		r.mu.Unlock()
		return domain.Incident{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "persist incident registry")
	}
	r.mu.Unlock()

	if r.risk != nil {
		r.risk.Apply(updated)
	}
	if r.metrics != nil {
		r.metrics.IncTransition(string(existing.Status), string(target))
	}

	return updated, nil
}

func wrapNotFound(cause error, what string) error {
	return domainerrors.Wrap(cause, domainerrors.CodeNotFound, what)
}

// Get returns a snapshot copy of one incident.
func (r *Registry) Get(id string) (domain.Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inc, ok := r.byID[id]
	if !ok {
		return domain.Incident{}, wrapNotFound(sentinel.ErrNotFound, "incident "+id)
	}
	return inc, nil
}

// Filters narrows List's result set; zero-valued fields are unconstrained.
type Filters struct {
	Type   domain.IncidentType
	Status domain.Status
}

// List returns every incident matching filters, newest-first by updated_at.
func (r *Registry) List(filters Filters) []domain.Incident {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Incident, 0, len(r.byID))
	for _, inc := range r.byID {
		if filters.Type != "" && inc.Type != filters.Type {
			continue
		}
		if filters.Status != "" && inc.Status != filters.Status {
			continue
		}
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// AllByCreatedAt returns every incident ordered by created_at ascending, for
// risk-engine rehydration (spec §4.5 "Startup").
func (r *Registry) AllByCreatedAt() []domain.Incident {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Incident, 0, len(r.byID))
	for _, inc := range r.byID {
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// IsStale reports whether incident is open and has had no new evidence for
// more than 7 days, relative to now (spec §4.4).
func IsStale(incident domain.Incident, now time.Time) bool {
	return incident.Status == domain.StatusOpen && now.Sub(incident.LastSeen) > 7*24*time.Hour
}
