// Package ingest orchestrates one end-to-end ingest call (spec §4's
// component pipeline wired together): allocate a run identity, normalize,
// detect, upsert into the registry, and persist the run's artifacts.
package ingest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"authsentinel/internal/detect"
	"authsentinel/internal/domain"
	"authsentinel/internal/incidents"
	"authsentinel/internal/mapping"
	"authsentinel/internal/normalize"
	"authsentinel/internal/platform/metrics"
	"authsentinel/internal/rawevent"
	"authsentinel/internal/runs"
	"authsentinel/pkg/domainerrors"
)

// Clock abstracts time.Now so tests can supply a fixed instant and still
// exercise the real orchestration path (spec invariant 3: determinism).
type Clock func() time.Time

// Orchestrator wires the pipeline's components together (spec §5).
type Orchestrator struct {
	profiles *mapping.Profiles
	registry *incidents.Registry
	runs     *runs.Store
	metrics  *metrics.Counters
	detect   detect.Config
	now      Clock
}

// New builds an orchestrator. now defaults to time.Now when nil.
func New(profiles *mapping.Profiles, registry *incidents.Registry, store *runs.Store, counters *metrics.Counters, detectCfg detect.Config, now Clock) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		profiles: profiles,
		registry: registry,
		runs:     store,
		metrics:  counters,
		detect:   detectCfg,
		now:      now,
	}
}

// Summary is the orchestrator's return value, shaping the POST /ingest/
// response body (spec §6).
type Summary struct {
	RunID               string            `json:"run_id"`
	EventCount          int               `json:"event_count"`
	NormalizationStatus NormalizationInfo `json:"normalization_status"`
	DetectionStatus     DetectionInfo     `json:"detection_status"`
	IncidentCount       int               `json:"incident_count"`
	Incidents           []domain.Incident `json:"incidents"`
}

// NormalizationInfo reports how many events survived normalization.
type NormalizationInfo struct {
	Survived   int                   `json:"survived"`
	Rejected   int                   `json:"rejected"`
	Rejections []normalize.Rejection `json:"rejections,omitempty"`
}

// DetectionInfo reports how many candidate incidents the detector raised.
type DetectionInfo struct {
	CandidatesRaised int `json:"candidates_raised"`
}

// Ingest runs the full pipeline over batch (spec §4.2-§4.5):
//
//  1. allocate a run identity
//  2. normalize
//  3. detect
//  4. upsert every incident into the registry
//  5. persist all four run artifacts (raw batch, meta, normalized
//     sequence, incident snapshot) together
//  6. update metrics
//  7. return a summary
//
// Nothing is written to the run store before the registry commit; the raw
// batch and normalized sequence are persisted only in step 5.
//
// A context cancellation before the registry commit leaves the registry
// untouched; once upsert begins committing, the batch's incidents are
// either all applied or none are (spec §5 "Cancellation").
func (o *Orchestrator) Ingest(ctx context.Context, batch rawevent.Batch, sourceHint string) (Summary, error) {
	if len(batch) == 0 {
		return Summary{}, domainerrors.New(domainerrors.CodeBadRequest, "ingest body must be a non-empty JSON array")
	}

	runID, err := newRunID()
	if err != nil {
		return Summary{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "allocate run id")
	}
	createdAt := o.now()

	result := normalize.Run(batch, o.profiles, sourceHint)
	candidates := detect.Run(result.Events, o.detect)

	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	committed, err := o.commit(ctx, createdAt, candidates)
	if err != nil {
		return Summary{}, err
	}

	run := domain.Run{
		RunID:      runID,
		CreatedAt:  createdAt,
		SourceHint: sourceHint,
		EventCount: len(batch),
	}
	if err := o.runs.Write(ctx, run, batch, result.Rejections, result.Events, committed); err != nil {
		return Summary{}, err
	}

	o.metrics.IncRuns()
	o.metrics.AddEventsIngested(len(batch))
	o.metrics.AddEventsNormalized(len(result.Events))
	for _, rej := range result.Rejections {
		o.metrics.IncEventsRejected(rej.Reason)
	}

	return Summary{
		RunID:      runID,
		EventCount: len(batch),
		NormalizationStatus: NormalizationInfo{
			Survived:   len(result.Events),
			Rejected:   len(result.Rejections),
			Rejections: result.Rejections,
		},
		DetectionStatus: DetectionInfo{CandidatesRaised: len(candidates)},
		IncidentCount:   len(committed),
		Incidents:       committed,
	}, nil
}

// commit upserts every candidate into the registry. The registry's own
// lock already makes each individual upsert atomic (spec §4.4); staging the
// candidate slice ahead of time and checking ctx once before the loop
// starts means a cancellation either lands before any upsert (registry
// unchanged) or the loop runs to completion (registry fully updated) —
// there is no per-candidate suspension point for ctx to interrupt mid-batch.
func (o *Orchestrator) commit(ctx context.Context, now time.Time, candidates []domain.Incident) ([]domain.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	committed := make([]domain.Incident, 0, len(candidates))
	for _, candidate := range candidates {
		result, _, err := o.registry.Upsert(now, candidate)
		if err != nil {
			return nil, err
		}
		committed = append(committed, result)
	}
	return committed, nil
}

func newRunID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "run-" + hex.EncodeToString(buf), nil
}
