package domain

import "time"

// IncidentType enumerates the two detector rules (spec §4.3).
type IncidentType string

const (
	IncidentBruteForce      IncidentType = "brute_force"
	IncidentCredentialAbuse IncidentType = "credential_abuse"
)

// Severity is ordered low < medium < high < critical; Ordinal gives the
// merge-on-upsert comparison spec §4.4 requires ("stronger of the two").
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Ordinal returns the severity's rank for "stronger of the two" comparisons.
func (s Severity) Ordinal() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Status is the incident lifecycle state (spec §4.4).
type Status string

const (
	StatusOpen         Status = "open"
	StatusAcknowledged Status = "acknowledged"
	StatusClosed       Status = "closed"
)

// MITRE captures the ATT&CK mapping derived from Type (spec §3).
type MITRE struct {
	Tactic        string `json:"tactic"`
	Technique     string `json:"technique"`
	TechniqueName string `json:"technique_name"`
}

// Subject identifies who/what the incident is about. Username is empty for
// credential-abuse incidents, whose grouping key is source_ip alone.
type Subject struct {
	SourceIP string `json:"source_ip"`
	Username string `json:"username,omitempty"`
}

// Counts holds the evidence tallies that feed severity/confidence grading
// and that are summed across merges (spec §4.4).
type Counts struct {
	Failures      int  `json:"failures"`
	DistinctUsers *int `json:"distinct_users,omitempty"`
}

// TimelineEntry is one deduplicated (timestamp, event_type, username) tuple
// contributing to an incident's evidence (spec §4.4 merge semantics).
type TimelineEntry struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Username  string    `json:"username,omitempty"`
}

// Key returns the dedup key merge-on-upsert uses for the timeline and the
// events list (spec §4.4: "deduplicated by (timestamp, event_type, username?)").
func (t TimelineEntry) Key() string {
	return t.Timestamp.UTC().Format(time.RFC3339) + "|" + t.EventType + "|" + t.Username
}

// EntityRef identifies an entity touched by an incident (spec §3's
// affected_entities and §4.5's per-entity aggregates).
type EntityRef struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Evidence is the factual record backing an incident (spec §3).
type Evidence struct {
	WindowStart      time.Time       `json:"window_start"`
	WindowEnd        time.Time       `json:"window_end"`
	Counts           Counts          `json:"counts"`
	Timeline         []TimelineEntry `json:"timeline"`
	Events           []NormalizedEvent `json:"events"`
	AffectedEntities []EntityRef     `json:"affected_entities"`
}

// Incident is the registry's unit of record (spec §3, §4.4).
type Incident struct {
	IncidentID          string       `json:"incident_id"`
	Type                IncidentType `json:"type"`
	MITRE               MITRE        `json:"mitre"`
	Subject             Subject      `json:"subject"`
	Severity            Severity     `json:"severity"`
	Confidence          int          `json:"confidence"`
	Status              Status       `json:"status"`
	Evidence            Evidence     `json:"evidence"`
	Summary             string       `json:"summary"`
	RecommendedActions  []string     `json:"recommended_actions"`
	FirstSeen           time.Time    `json:"first_seen"`
	LastSeen            time.Time    `json:"last_seen"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
	ResolutionReason    *string      `json:"resolution_reason"`

	// IsStale is computed at read time, never persisted (spec §4.4 is_stale).
	IsStale bool `json:"is_stale,omitempty"`
}

// MITREFor returns the fixed MITRE mapping for an incident type (spec §3).
func MITREFor(t IncidentType) MITRE {
	switch t {
	case IncidentBruteForce:
		return MITRE{Tactic: "credential-access", Technique: "T1110", TechniqueName: "Brute Force"}
	case IncidentCredentialAbuse:
		return MITRE{Tactic: "credential-access", Technique: "T1110.003", TechniqueName: "Password Spraying"}
	default:
		return MITRE{}
	}
}

// RecommendedActionsFor returns the fixed 4-element action list per type
// (spec §4.3).
func RecommendedActionsFor(t IncidentType) []string {
	switch t {
	case IncidentBruteForce:
		return []string{
			"Temporarily lock or rate-limit the affected account",
			"Block or throttle the source IP at the edge",
			"Require multi-factor re-authentication for the affected account",
			"Review authentication logs for the source IP across other accounts",
		}
	case IncidentCredentialAbuse:
		return []string{
			"Block the source IP at the edge",
			"Force password reset for all targeted accounts",
			"Enable or tighten rate limiting on the authentication endpoint",
			"Audit the targeted accounts for successful logins from the source IP",
		}
	default:
		return nil
	}
}
