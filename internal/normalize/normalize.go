// Package normalize projects raw event batches into the canonical schema
// (spec §4.2): resolve against a source profile, drop telemetry, coerce
// timestamps, translate results, validate, and sort.
package normalize

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"authsentinel/internal/domain"
	"authsentinel/internal/mapping"
	"authsentinel/internal/rawevent"
)

// telemetryBlacklist is the global set of non-security-relevant event types
// dropped regardless of profile (spec §4.2 step 2).
var telemetryBlacklist = map[string]struct{}{
	"heartbeat":    {},
	"health_check": {},
	"ping":         {},
	"keepalive":    {},
	"metrics":      {},
}

// epochMillisThreshold is the heuristic cutoff above which a bare numeric
// timestamp is treated as milliseconds rather than seconds (spec §4.2
// step 3): any timestamp past roughly the year 5138 in seconds is instead a
// post-1973 date in milliseconds.
const epochMillisThreshold = 1e11

// Rejection records why one input event did not survive normalization
// (spec §7's event_rejected taxonomy).
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Result is the normalizer's output: the surviving events in canonical
// chronological order, plus every rejection encountered.
type Result struct {
	Events     []domain.NormalizedEvent
	Rejections []Rejection
}

// Run normalizes batch against profiles, using sourceHint to select a
// profile for the whole batch when non-empty; otherwise each event's
// resolved "source" field (against _default) selects its own profile
// (spec §4.2).
func Run(batch rawevent.Batch, profiles *mapping.Profiles, sourceHint string) Result {
	var out Result

	for i, event := range batch {
		prof := profileFor(event, sourceHint, profiles)

		ts := prof.ResolveField(event, "timestamp")
		eventType := prof.ResolveField(event, "event_type")
		result := prof.ResolveField(event, "result")

		switch {
		case !ts.Found:
			out.Rejections = append(out.Rejections, Rejection{Index: i, Reason: "missing_required:timestamp"})
			continue
		case !eventType.Found:
			out.Rejections = append(out.Rejections, Rejection{Index: i, Reason: "missing_required:event_type"})
			continue
		case !result.Found:
			out.Rejections = append(out.Rejections, Rejection{Index: i, Reason: "missing_required:result"})
			continue
		}

		lowerType := strings.ToLower(eventType.Value)
		if isTelemetry(lowerType, prof) {
			out.Rejections = append(out.Rejections, Rejection{Index: i, Reason: "telemetry"})
			continue
		}

		instant, err := coerceTimestamp(ts.Value)
		if err != nil {
			out.Rejections = append(out.Rejections, Rejection{Index: i, Reason: "timestamp_parse"})
			continue
		}

		normalized := domain.NormalizedEvent{
			Timestamp:     instant.UTC(),
			EventType:     lowerType,
			Result:        domain.Result(prof.TranslateResult(result.Value)),
			OriginalIndex: i,
		}
		if v := prof.ResolveField(event, "source_ip"); v.Found {
			normalized.SourceIP = v.Value
		}
		if v := prof.ResolveField(event, "username"); v.Found {
			normalized.Username = v.Value
		}
		if v := prof.ResolveField(event, "reason"); v.Found {
			normalized.Reason = v.Value
		}
		if v := prof.ResolveField(event, "user_agent"); v.Found {
			normalized.UserAgent = v.Value
		}
		if v := prof.ResolveField(event, "source"); v.Found {
			normalized.Source = v.Value
		}

		if !validate(normalized) {
			out.Rejections = append(out.Rejections, Rejection{Index: i, Reason: "schema"})
			continue
		}

		out.Events = append(out.Events, normalized)
	}

	sort.SliceStable(out.Events, func(a, b int) bool {
		if !out.Events[a].Timestamp.Equal(out.Events[b].Timestamp) {
			return out.Events[a].Timestamp.Before(out.Events[b].Timestamp)
		}
		return out.Events[a].OriginalIndex < out.Events[b].OriginalIndex
	})

	return out
}

func profileFor(event rawevent.Value, sourceHint string, profiles *mapping.Profiles) *mapping.Profile {
	if sourceHint != "" {
		return profiles.Resolve(sourceHint)
	}
	def := profiles.Resolve(mapping.DefaultProfileName)
	if res := def.ResolveField(event, "source"); res.Found {
		return profiles.Resolve(res.Value)
	}
	return def
}

func isTelemetry(lowerType string, prof *mapping.Profile) bool {
	if _, ok := telemetryBlacklist[lowerType]; ok {
		return true
	}
	for _, rejected := range prof.RejectEventTypes {
		if strings.EqualFold(rejected, lowerType) {
			return true
		}
	}
	return false
}

// coerceTimestamp accepts integer epoch seconds, integer/float epoch
// milliseconds, or any ISO-8601 string (spec §4.2 step 3).
func coerceTimestamp(raw string) (time.Time, error) {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if f > epochMillisThreshold {
			return time.UnixMilli(int64(f)).UTC(), nil
		}
		return time.Unix(int64(f), 0).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: "ISO-8601 or epoch", Value: raw}
}

// validate enforces the canonical schema's remaining constraints (spec
// §4.2 step 5) once resolution and coercion have already run.
func validate(e domain.NormalizedEvent) bool {
	if e.EventType == "" {
		return false
	}
	switch e.Result {
	case domain.ResultSuccess, domain.ResultFailure, domain.ResultOther:
	default:
		return false
	}
	return true
}
