// Package detect implements the two sliding-window threat rules (spec
// §4.3): brute force and credential abuse (password spraying).
package detect

import (
	"fmt"
	"time"

	"authsentinel/internal/domain"
	"authsentinel/pkg/platform/strings"
)

// Config carries the detector's tunable thresholds (spec §4.3, §4.10).
type Config struct {
	Window        time.Duration
	BruteForceMin int
	SprayMinUsers int
	SprayMinFails int
}

// bruteForceWindow is the FIFO of in-window failures for one (source_ip,
// username) grouping key.
type bruteForceWindow struct {
	events      []domain.NormalizedEvent
	pendingSlot int // index into the result slice of the in-progress candidate, or -1
}

// sprayWindow is the FIFO of in-window failures for one source_ip grouping
// key, tracking per-username counts to derive the distinct-user set.
type sprayWindow struct {
	events      []domain.NormalizedEvent
	userCounts  map[string]int
	pendingSlot int
}

// Run scans the chronologically sorted events slice and returns every
// incident the two rules produced (spec §4.3). Events must already be in
// canonical ascending-timestamp order (normalize.Run's output).
func Run(events []domain.NormalizedEvent, cfg Config) []domain.Incident {
	var out []domain.Incident

	bfWindows := make(map[string]*bruteForceWindow)
	sprayWindows := make(map[string]*sprayWindow)

	for _, e := range events {
		if e.Result != domain.ResultFailure {
			continue
		}

		if e.SourceIP != "" && e.Username != "" {
			key := e.SourceIP + "|" + e.Username
			w, ok := bfWindows[key]
			if !ok {
				w = &bruteForceWindow{pendingSlot: -1}
				bfWindows[key] = w
			}
			out = runBruteForce(w, e, cfg, out)
		}

		if e.SourceIP != "" {
			w, ok := sprayWindows[e.SourceIP]
			if !ok {
				w = &sprayWindow{userCounts: make(map[string]int), pendingSlot: -1}
				sprayWindows[e.SourceIP] = w
			}
			out = runSpray(w, e, cfg, out)
		}
	}

	return out
}

func runBruteForce(w *bruteForceWindow, e domain.NormalizedEvent, cfg Config, out []domain.Incident) []domain.Incident {
	cutoff := e.Timestamp.Add(-cfg.Window)
	w.events = evictBefore(w.events, cutoff)
	w.events = append(w.events, e)

	if len(w.events) < cfg.BruteForceMin {
		w.pendingSlot = -1
		return out
	}

	incident := buildBruteForce(w.events)
	if w.pendingSlot >= 0 {
		out[w.pendingSlot] = incident
	} else {
		w.pendingSlot = len(out)
		out = append(out, incident)
	}
	return out
}

func runSpray(w *sprayWindow, e domain.NormalizedEvent, cfg Config, out []domain.Incident) []domain.Incident {
	cutoff := e.Timestamp.Add(-cfg.Window)
	evicted := evictBefore(w.events, cutoff)
	for i := 0; i < len(w.events)-len(evicted); i++ {
		w.userCounts[w.events[i].Username]--
		if w.userCounts[w.events[i].Username] <= 0 {
			delete(w.userCounts, w.events[i].Username)
		}
	}
	w.events = evicted
	w.events = append(w.events, e)
	w.userCounts[e.Username]++

	if len(w.events) < cfg.SprayMinFails || len(w.userCounts) < cfg.SprayMinUsers {
		w.pendingSlot = -1
		return out
	}

	incident := buildSpray(w.events, len(w.userCounts))
	if w.pendingSlot >= 0 {
		out[w.pendingSlot] = incident
	} else {
		w.pendingSlot = len(out)
		out = append(out, incident)
	}
	return out
}

// evictBefore drops the leading events whose timestamp precedes cutoff,
// preserving order (spec §4.3's FIFO window).
func evictBefore(events []domain.NormalizedEvent, cutoff time.Time) []domain.NormalizedEvent {
	i := 0
	for i < len(events) && events[i].Timestamp.Before(cutoff) {
		i++
	}
	if i == 0 {
		return events
	}
	return append([]domain.NormalizedEvent(nil), events[i:]...)
}

func buildBruteForce(window []domain.NormalizedEvent) domain.Incident {
	n := len(window)
	windowStart := window[0].Timestamp
	windowEnd := window[len(window)-1].Timestamp
	sourceIP := window[len(window)-1].SourceIP
	username := window[len(window)-1].Username

	severity, confidence := bruteForceSeverity(n)
	id := identity(domain.IncidentBruteForce, sourceIP, username, windowStart, windowEnd, n, nil)

	return domain.Incident{
		IncidentID: id,
		Type:       domain.IncidentBruteForce,
		MITRE:      domain.MITREFor(domain.IncidentBruteForce),
		Subject:    domain.Subject{SourceIP: sourceIP, Username: username},
		Severity:   severity,
		Confidence: confidence,
		Status:     domain.StatusOpen,
		Evidence: domain.Evidence{
			WindowStart: windowStart,
			WindowEnd:   windowEnd,
			Counts:      domain.Counts{Failures: n},
			Timeline:    timelineFor(window),
			Events:      append([]domain.NormalizedEvent(nil), window...),
			AffectedEntities: []domain.EntityRef{
				{Kind: string(domain.EntitySourceIP), Value: sourceIP},
				{Kind: string(domain.EntityUsername), Value: username},
			},
		},
		Summary: fmt.Sprintf(
			"Brute-force: %d failed login attempts against %q from %s between %s and %s",
			n, username, sourceIP, canonicalTimestamp(windowStart), canonicalTimestamp(windowEnd),
		),
		RecommendedActions: domain.RecommendedActionsFor(domain.IncidentBruteForce),
		FirstSeen:          windowStart,
		LastSeen:           windowEnd,
	}
}

func buildSpray(window []domain.NormalizedEvent, distinctUsers int) domain.Incident {
	n := len(window)
	windowStart := window[0].Timestamp
	windowEnd := window[len(window)-1].Timestamp
	sourceIP := window[len(window)-1].SourceIP

	severity, confidence := spraySeverity(distinctUsers)
	id := identity(domain.IncidentCredentialAbuse, sourceIP, "", windowStart, windowEnd, n, &distinctUsers)

	targetedUsernames := make([]string, 0, len(window))
	for _, e := range window {
		targetedUsernames = append(targetedUsernames, e.Username)
	}
	targetedUsernames = strings.DedupeAndTrim(targetedUsernames)

	affectedEntities := make([]domain.EntityRef, 0, len(targetedUsernames)+1)
	affectedEntities = append(affectedEntities, domain.EntityRef{Kind: string(domain.EntitySourceIP), Value: sourceIP})
	for _, u := range targetedUsernames {
		affectedEntities = append(affectedEntities, domain.EntityRef{Kind: string(domain.EntityUsername), Value: u})
	}

	return domain.Incident{
		IncidentID: id,
		Type:       domain.IncidentCredentialAbuse,
		MITRE:      domain.MITREFor(domain.IncidentCredentialAbuse),
		Subject:    domain.Subject{SourceIP: sourceIP},
		Severity:   severity,
		Confidence: confidence,
		Status:     domain.StatusOpen,
		Evidence: domain.Evidence{
			WindowStart:      windowStart,
			WindowEnd:        windowEnd,
			Counts:           domain.Counts{Failures: n, DistinctUsers: &distinctUsers},
			Timeline:         timelineFor(window),
			Events:           append([]domain.NormalizedEvent(nil), window...),
			AffectedEntities: affectedEntities,
		},
		Summary: fmt.Sprintf(
			"Credential abuse: %d failed login attempts against %d distinct usernames from %s between %s and %s",
			n, distinctUsers, sourceIP, canonicalTimestamp(windowStart), canonicalTimestamp(windowEnd),
		),
		RecommendedActions: domain.RecommendedActionsFor(domain.IncidentCredentialAbuse),
		FirstSeen:          windowStart,
		LastSeen:           windowEnd,
	}
}

func timelineFor(window []domain.NormalizedEvent) []domain.TimelineEntry {
	seen := make(map[string]struct{}, len(window))
	entries := make([]domain.TimelineEntry, 0, len(window))
	for _, e := range window {
		entry := domain.TimelineEntry{Timestamp: e.Timestamp, EventType: e.EventType, Username: e.Username}
		key := entry.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		entries = append(entries, entry)
	}
	return entries
}

// bruteForceSeverity grades severity/confidence by failure count (spec §4.3).
func bruteForceSeverity(n int) (domain.Severity, int) {
	switch {
	case n >= 20:
		return domain.SeverityHigh, 95
	case n >= 10:
		return domain.SeverityMedium, 85
	default:
		return domain.SeverityLow, 70
	}
}

// spraySeverity grades severity/confidence by distinct-user count (spec §4.3).
func spraySeverity(distinctUsers int) (domain.Severity, int) {
	if distinctUsers > 15 {
		return domain.SeverityCritical, 90
	}
	return domain.SeverityHigh, 90
}
