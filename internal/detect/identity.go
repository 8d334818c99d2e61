package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"authsentinel/internal/domain"
)

// canonicalTimestamp renders t the one way every implementation of this
// identity scheme must agree on: ISO-8601 UTC, second precision, "Z" suffix
// (spec §9).
func canonicalTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// identity computes the content-addressed incident_id: "inc_" followed by
// the first 24 hex characters of sha256(canonical_params), where
// canonical_params pipe-joins (type, source_ip, username?, window_start,
// window_end, failure_count, distinct_user_count?) (spec §4.3).
func identity(t domain.IncidentType, sourceIP, username string, windowStart, windowEnd time.Time, failures int, distinctUsers *int) string {
	parts := []string{
		string(t),
		sourceIP,
		username,
		canonicalTimestamp(windowStart),
		canonicalTimestamp(windowEnd),
		strconv.Itoa(failures),
	}
	if distinctUsers != nil {
		parts = append(parts, strconv.Itoa(*distinctUsers))
	}
	canonical := strings.Join(parts, "|")

	sum := sha256.Sum256([]byte(canonical))
	return "inc_" + hex.EncodeToString(sum[:])[:24]
}
