package domain

import "time"

// Result is the canonical outcome enumeration for a normalized event
// (spec §3).
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultOther   Result = "other"
)

// NormalizedEvent is the canonical schema every raw event is projected into
// before the detector ever sees it (spec §3).
type NormalizedEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Result    Result    `json:"result"`
	SourceIP  string    `json:"source_ip,omitempty"`
	Username  string    `json:"username,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Source    string    `json:"source,omitempty"`

	// OriginalIndex is the event's position in the input batch, used only to
	// break stable-sort ties on identical timestamps (spec §4.2 step 6). Not
	// part of the canonical schema and never persisted.
	OriginalIndex int `json:"-"`
}

// TimestampRFC3339 renders the timestamp in the canonical on-the-wire form:
// ISO-8601 UTC, second precision, "Z" suffix (spec §4.2 step 3, §9).
func (e NormalizedEvent) TimestampRFC3339() string {
	return e.Timestamp.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}
