package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authsentinel/internal/detect"
	"authsentinel/internal/incidents"
	"authsentinel/internal/ingest"
	"authsentinel/internal/mapping"
	"authsentinel/internal/platform/metrics"
	"authsentinel/internal/risk"
	"authsentinel/internal/runs"
)

func testProfiles() *mapping.Profiles {
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

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	riskEngine := risk.New()
	counters := metrics.New()
	registry := incidents.New(filepath.Join(t.TempDir(), "incidents.json"), riskEngine, counters)
	runStore := runs.New(t.TempDir())
	detectCfg := detect.Config{Window: 60 * time.Second, BruteForceMin: 5, SprayMinUsers: 5, SprayMinFails: 8}
	orchestrator := ingest.New(testProfiles(), registry, runStore, counters, detectCfg, nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(orchestrator, registry, runStore, riskEngine, counters, logger)
}

func bruteForceJSON() []byte {
	return []byte(`[
		{"timestamp":"2024-01-01T05:00:00Z","event_type":"login_attempt","result":"failure","source_ip":"203.0.113.10","username":"alice"},
		{"timestamp":"2024-01-01T05:00:05Z","event_type":"login_attempt","result":"failure","source_ip":"203.0.113.10","username":"alice"},
		{"timestamp":"2024-01-01T05:00:10Z","event_type":"login_attempt","result":"failure","source_ip":"203.0.113.10","username":"alice"},
		{"timestamp":"2024-01-01T05:00:15Z","event_type":"login_attempt","result":"failure","source_ip":"203.0.113.10","username":"alice"},
		{"timestamp":"2024-01-01T05:00:20Z","event_type":"login_attempt","result":"failure","source_ip":"203.0.113.10","username":"alice"}
	]`)
}

func doRequest(t *testing.T, router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestHandler(t).Router()
	rec := doRequest(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["ok"])
}

func TestIngestEmptyBodyIsBadRequest(t *testing.T) {
	router := newTestHandler(t).Router()
	rec := doRequest(t, router, http.MethodPost, "/ingest/", []byte(`[]`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestEndToEndThenQueryRuns(t *testing.T) {
	router := newTestHandler(t).Router()

	ingestRec := doRequest(t, router, http.MethodPost, "/ingest/", bruteForceJSON())
	require.Equal(t, http.StatusOK, ingestRec.Code)

	var summary ingest.Summary
	require.NoError(t, json.Unmarshal(ingestRec.Body.Bytes(), &summary))
	require.Len(t, summary.Incidents, 1)

	listRec := doRequest(t, router, http.MethodGet, "/runs/", nil)
	assert.Equal(t, http.StatusOK, listRec.Code)
	var ids []string
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &ids))
	require.Len(t, ids, 1)
	assert.Equal(t, summary.RunID, ids[0])

	metaRec := doRequest(t, router, http.MethodGet, "/runs/"+summary.RunID+"/meta", nil)
	assert.Equal(t, http.StatusOK, metaRec.Code)

	normRec := doRequest(t, router, http.MethodGet, "/runs/"+summary.RunID+"/normalized", nil)
	assert.Equal(t, http.StatusOK, normRec.Code)

	incRec := doRequest(t, router, http.MethodGet, "/runs/"+summary.RunID+"/incidents", nil)
	assert.Equal(t, http.StatusOK, incRec.Code)
}

func TestRunMetaInvalidIDIsBadRequest(t *testing.T) {
	router := newTestHandler(t).Router()
	rec := doRequest(t, router, http.MethodGet, "/runs/not-a-run-id/meta", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunMetaUnknownIDIsNotFound(t *testing.T) {
	router := newTestHandler(t).Router()
	rec := doRequest(t, router, http.MethodGet, "/runs/run-0123456789abcdef0123456789abcdef/meta", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIncidentLifecycleViaHTTP(t *testing.T) {
	router := newTestHandler(t).Router()

	ingestRec := doRequest(t, router, http.MethodPost, "/ingest/", bruteForceJSON())
	require.Equal(t, http.StatusOK, ingestRec.Code)
	var summary ingest.Summary
	require.NoError(t, json.Unmarshal(ingestRec.Body.Bytes(), &summary))
	incidentID := summary.Incidents[0].IncidentID

	getRec := doRequest(t, router, http.MethodGet, "/incidents/"+incidentID, nil)
	assert.Equal(t, http.StatusOK, getRec.Code)

	listRec := doRequest(t, router, http.MethodGet, "/incidents/", nil)
	assert.Equal(t, http.StatusOK, listRec.Code)

	acknowledge := doRequest(t, router, http.MethodPatch, "/incidents/"+incidentID, []byte(`{"status":"acknowledged"}`))
	require.Equal(t, http.StatusOK, acknowledge.Code)

	closeRejected := doRequest(t, router, http.MethodPatch, "/incidents/"+incidentID, []byte(`{"status":"closed"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, closeRejected.Code)

	closeAccepted := doRequest(t, router, http.MethodPatch, "/incidents/"+incidentID, []byte(`{"status":"closed","resolution_reason":"resolved"}`))
	assert.Equal(t, http.StatusOK, closeAccepted.Code)

	getMissing := doRequest(t, router, http.MethodGet, "/incidents/inc_missing", nil)
	assert.Equal(t, http.StatusNotFound, getMissing.Code)
}

func TestEntityRiskEndpointAfterIngest(t *testing.T) {
	router := newTestHandler(t).Router()
	ingestRec := doRequest(t, router, http.MethodPost, "/ingest/", bruteForceJSON())
	require.Equal(t, http.StatusOK, ingestRec.Code)

	rec := doRequest(t, router, http.MethodGet, "/entity-risk/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body entityRiskBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Entities)
}

func TestMetricsEndpointReflectsIngest(t *testing.T) {
	router := newTestHandler(t).Router()
	ingestRec := doRequest(t, router, http.MethodPost, "/ingest/", bruteForceJSON())
	require.Equal(t, http.StatusOK, ingestRec.Code)

	rec := doRequest(t, router, http.MethodGet, "/metrics/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.Counters["runs_total"])
}

func TestPrometheusExpositionEndpoint(t *testing.T) {
	router := newTestHandler(t).Router()
	rec := doRequest(t, router, http.MethodGet, "/internal/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "authsentinel_")
}
