package domain

import "time"

// EntityKind enumerates the two entity dimensions the risk engine tracks
// (spec §3, §4.5).
type EntityKind string

const (
	EntityUsername EntityKind = "username"
	EntitySourceIP EntityKind = "source_ip"
)

// WeightFor returns the per-event weight an incident type contributes to its
// subject entities (spec §4.5).
func WeightFor(t IncidentType) float64 {
	switch t {
	case IncidentBruteForce:
		return 10.0
	case IncidentCredentialAbuse:
		return 25.0
	default:
		return 0
	}
}

// EntityRisk is the derived per-entity view the risk engine maintains and
// rebuilds from the registry on boot (spec §3, §4.5).
type EntityRisk struct {
	Kind              EntityKind `json:"entity_kind"`
	Value             string     `json:"entity_value"`
	Score             float64    `json:"score"`
	TotalIncidents    int        `json:"total_incidents"`
	OpenIncidents     int        `json:"open_incidents"`
	HighestConfidence int        `json:"highest_confidence"`
	LastSeen          time.Time  `json:"last_seen"`

	// ContributingIncidents tracks which identities have already applied
	// their weight to this entity (so re-upsert of the same incident does
	// not compound) and their current status, so OpenIncidents can be
	// recomputed incrementally on every write (spec §4.5).
	ContributingIncidents map[string]Status `json:"-"`
}

// ObservedScore applies the continuous 24h half-life decay at read time
// (spec §4.5): score_observed = stored_score * exp(-ln2 * hours/24).
func (e EntityRisk) ObservedScore(now time.Time) float64 {
	return decay(e.Score, now.Sub(e.LastSeen))
}
