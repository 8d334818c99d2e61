package runs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authsentinel/internal/domain"
	"authsentinel/internal/normalize"
	"authsentinel/internal/rawevent"
)

func sampleRun(id string) domain.Run {
	return domain.Run{
		RunID:      id,
		CreatedAt:  time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC),
		SourceHint: "okta",
		EventCount: 2,
	}
}

func sampleBatch() rawevent.Batch {
	return rawevent.Batch{
		rawevent.Of(map[string]any{"timestamp": "2024-01-01T05:00:00Z", "event_type": "login_attempt", "result": "failure"}),
		rawevent.Of(map[string]any{"timestamp": "2024-01-01T05:00:05Z", "event_type": "login_attempt", "result": "success"}),
	}
}

func TestValidateID(t *testing.T) {
	valid := "run-" + "0123456789abcdef0123456789abcdef"
	assert.NoError(t, ValidateID(valid))
	assert.Error(t, ValidateID("run-short"))
	assert.Error(t, ValidateID("../../etc/passwd"))
	assert.Error(t, ValidateID("run-GGGGGGGGGGGGGGGGGGGGGGGGGGGGGGGG"))
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	runID := "run-0123456789abcdef0123456789abcdef"
	run := sampleRun(runID)
	run.RunID = runID

	normalized := []domain.NormalizedEvent{
		{Timestamp: run.CreatedAt, EventType: "login_attempt", Result: domain.ResultFailure, SourceIP: "203.0.113.10", Username: "alice"},
	}
	rejections := []normalize.Rejection{{Index: 1, Reason: "missing_required:result"}}
	incident := domain.Incident{IncidentID: "inc_a", Type: domain.IncidentBruteForce}

	err := store.Write(context.Background(), run, sampleBatch(), rejections, normalized, []domain.Incident{incident})
	require.NoError(t, err)

	gotMeta, gotRejections, err := store.Meta(runID)
	require.NoError(t, err)
	assert.Equal(t, runID, gotMeta.RunID)
	assert.Equal(t, "okta", gotMeta.SourceHint)
	assert.Equal(t, rejections, gotRejections)

	count, events, err := store.Normalized(runID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Username)

	incCount, incidents, err := store.Incidents(runID)
	require.NoError(t, err)
	assert.Equal(t, 1, incCount)
	require.Len(t, incidents, 1)
	assert.Equal(t, "inc_a", incidents[0].IncidentID)
}

func TestReadRejectsMalformedRunID(t *testing.T) {
	store := New(t.TempDir())

	_, _, err := store.Meta("../escape")
	require.Error(t, err)

	_, _, err = store.Normalized("not-a-run-id")
	require.Error(t, err)

	_, _, err = store.Incidents("run-tooshort")
	require.Error(t, err)
}

func TestMetaUnknownRunIsNotFound(t *testing.T) {
	store := New(t.TempDir())
	_, _, err := store.Meta("run-0123456789abcdef0123456789abcdef")
	require.Error(t, err)
}

func TestListIDsNewestFirst(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	first := "run-00000000000000000000000000000001"
	second := "run-00000000000000000000000000000002"

	require.NoError(t, store.Write(ctx, sampleRun(first), sampleBatch(), nil, nil, nil))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Write(ctx, sampleRun(second), sampleBatch(), nil, nil, nil))

	ids, err := store.ListIDs()
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, second, ids[0])
	assert.Equal(t, first, ids[1])
}

func TestListIDsEmptyStoreIsNotAnError(t *testing.T) {
	store := New(t.TempDir() + "/does-not-exist-yet")
	ids, err := store.ListIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
