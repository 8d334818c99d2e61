package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authsentinel/internal/domain"
	"authsentinel/internal/mapping"
	"authsentinel/internal/rawevent"
)

func buildProfiles(t *testing.T) *mapping.Profiles {
	t.Helper()
	return mapping.New(map[string]*mapping.Profile{
		mapping.DefaultProfileName: {
			Name: mapping.DefaultProfileName,
			Fields: map[string][]string{
				"timestamp":  {"timestamp"},
				"event_type": {"event_type"},
				"result":     {"result"},
				"source_ip":  {"source_ip"},
				"username":   {"username"},
			},
			ResultMap: map[string]string{"success": "success", "failure": "failure"},
		},
	})
}

func parseBatch(t *testing.T, js string) rawevent.Batch {
	t.Helper()
	b, err := rawevent.ParseBatch([]byte(js))
	require.NoError(t, err)
	return b
}

func TestRunBasicEvent(t *testing.T) {
	profiles := buildProfiles(t)
	batch := parseBatch(t, `[{"timestamp":"2024-01-01T05:00:00Z","event_type":"LOGIN_ATTEMPT","result":"failure","source_ip":"203.0.113.10","username":"alice"}]`)

	res := Run(batch, profiles, "")

	require.Empty(t, res.Rejections)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "login_attempt", res.Events[0].EventType)
	assert.Equal(t, domain.ResultFailure, res.Events[0].Result)
	assert.Equal(t, "alice", res.Events[0].Username)
}

func TestRunMissingRequiredField(t *testing.T) {
	profiles := buildProfiles(t)
	batch := parseBatch(t, `[{"event_type":"login_attempt","result":"failure"}]`)

	res := Run(batch, profiles, "")

	assert.Empty(t, res.Events)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, "missing_required:timestamp", res.Rejections[0].Reason)
}

func TestRunTelemetryRejection(t *testing.T) {
	profiles := buildProfiles(t)
	batch := parseBatch(t, `[
		{"timestamp":"2024-01-01T05:00:00Z","event_type":"heartbeat","result":"success"},
		{"timestamp":"2024-01-01T05:00:01Z","event_type":"login_attempt","result":"failure","source_ip":"203.0.113.10","username":"alice"}
	]`)

	res := Run(batch, profiles, "")

	require.Len(t, res.Events, 1)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, "telemetry", res.Rejections[0].Reason)
}

func TestRunTimestampCoercionEpochSecondsAndMillis(t *testing.T) {
	profiles := buildProfiles(t)
	batch := parseBatch(t, `[
		{"timestamp":1704085200,"event_type":"login_attempt","result":"success"},
		{"timestamp":1704085200000,"event_type":"login_attempt","result":"success"}
	]`)

	res := Run(batch, profiles, "")

	require.Len(t, res.Events, 2)
	assert.True(t, res.Events[0].Timestamp.Equal(res.Events[1].Timestamp))
	assert.Equal(t, 2024, res.Events[0].Timestamp.Year())
}

func TestRunTimestampParseFailure(t *testing.T) {
	profiles := buildProfiles(t)
	batch := parseBatch(t, `[{"timestamp":"not-a-date","event_type":"login_attempt","result":"failure"}]`)

	res := Run(batch, profiles, "")

	assert.Empty(t, res.Events)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, "timestamp_parse", res.Rejections[0].Reason)
}

func TestRunResultTranslationUnmappedBecomesOther(t *testing.T) {
	profiles := buildProfiles(t)
	batch := parseBatch(t, `[{"timestamp":"2024-01-01T05:00:00Z","event_type":"login_attempt","result":"denied"}]`)

	res := Run(batch, profiles, "")

	require.Len(t, res.Events, 1)
	assert.Equal(t, domain.ResultOther, res.Events[0].Result)
}

func TestRunSortsByTimestampThenOriginalIndex(t *testing.T) {
	profiles := buildProfiles(t)
	batch := parseBatch(t, `[
		{"timestamp":"2024-01-01T05:00:02Z","event_type":"a","result":"success"},
		{"timestamp":"2024-01-01T05:00:00Z","event_type":"b","result":"success"},
		{"timestamp":"2024-01-01T05:00:00Z","event_type":"c","result":"success"}
	]`)

	res := Run(batch, profiles, "")

	require.Len(t, res.Events, 3)
	assert.Equal(t, "b", res.Events[0].EventType)
	assert.Equal(t, "c", res.Events[1].EventType)
	assert.Equal(t, "a", res.Events[2].EventType)
}

func TestRunShuffleThenSortIsDeterministic(t *testing.T) {
	profiles := buildProfiles(t)
	forward := parseBatch(t, `[
		{"timestamp":"2024-01-01T05:00:00Z","event_type":"a","result":"success"},
		{"timestamp":"2024-01-01T05:00:01Z","event_type":"b","result":"success"},
		{"timestamp":"2024-01-01T05:00:02Z","event_type":"c","result":"success"}
	]`)
	shuffled := rawevent.Batch{forward[2], forward[0], forward[1]}

	resForward := Run(forward, profiles, "")
	resShuffled := Run(shuffled, profiles, "")

	require.Len(t, resForward.Events, 3)
	require.Len(t, resShuffled.Events, 3)
	for i := range resForward.Events {
		assert.Equal(t, resForward.Events[i].EventType, resShuffled.Events[i].EventType)
		assert.True(t, resForward.Events[i].Timestamp.Equal(resShuffled.Events[i].Timestamp))
	}
}

func TestRunZeroSurvivorsStillReturnsEmptyResult(t *testing.T) {
	profiles := buildProfiles(t)
	batch := parseBatch(t, `[{"timestamp":"2024-01-01T05:00:00Z","event_type":"heartbeat","result":"success"}]`)

	res := Run(batch, profiles, "")

	assert.Empty(t, res.Events)
	assert.Len(t, res.Rejections, 1)
}
