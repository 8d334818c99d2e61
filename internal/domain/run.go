package domain

import "time"

// Run is one completed ingest invocation's metadata (spec §3, §4.7). The
// four artifact blobs (raw, meta, normalized, incidents) live alongside it
// on disk under the runs store and are not part of this struct.
type Run struct {
	RunID      string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
	SourceHint string    `json:"source_hint,omitempty"`
	EventCount int       `json:"event_count"`
}
