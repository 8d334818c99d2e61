// Package runs implements the per-run artifact store (spec §4.7): one
// directory per ingest run holding raw/meta/normalized/incidents JSON, each
// written atomically.
package runs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"authsentinel/internal/domain"
	"authsentinel/internal/normalize"
	"authsentinel/internal/rawevent"
	"authsentinel/pkg/domainerrors"
)

// runIDPattern is the only shape of run_id this store will ever read back
// (spec §4.7): rejecting anything else at the boundary prevents path
// traversal through a crafted id.
var runIDPattern = regexp.MustCompile(`^run-[0-9a-f]{32}$`)

const (
	rawFile        = "raw.json"
	metaFile       = "meta.json"
	normalizedFile = "normalized.json"
	incidentsFile  = "incidents.json"
)

// Store persists run artifacts under a root directory.
type Store struct {
	root string
}

// New creates a run artifact store rooted at dir.
func New(dir string) *Store {
	return &Store{root: dir}
}

// ValidateID rejects anything that is not a well-formed run_id (spec §4.7).
func ValidateID(id string) error {
	if !runIDPattern.MatchString(id) {
		return domainerrors.New(domainerrors.CodeInvalidRunID, "run_id must match ^run-[0-9a-f]{32}$")
	}
	return nil
}

func (s *Store) dirFor(runID string) string { return filepath.Join(s.root, runID) }

// normalizedFileShape is the on-disk body of normalized.json (spec §6).
type normalizedFileShape struct {
	EventCount int                      `json:"event_count"`
	Events     []domain.NormalizedEvent `json:"events"`
}

// incidentsFileShape is the on-disk body of a run's incidents.json snapshot
// (spec §6): the incidents this specific run produced or touched, distinct
// from the registry's own incidents.json.
type incidentsFileShape struct {
	IncidentCount int               `json:"incident_count"`
	Incidents     []domain.Incident `json:"incidents"`
}

// Write persists all four artifacts for one run concurrently and returns the
// first failure once every write has finished; writes already under way are
// not cancelled (spec §5 "any operation that performs file I/O ... may block
// the caller").
func (s *Store) Write(ctx context.Context, run domain.Run, raw rawevent.Batch, rejections []normalize.Rejection, normalized []domain.NormalizedEvent, runIncidents []domain.Incident) error {
	dir := s.dirFor(run.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "create run directory")
	}

	rawBlobs := make([]json.RawMessage, len(raw))
	for i, v := range raw {
		b, err := json.Marshal(v.Raw())
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "marshal raw events")
		}
		rawBlobs[i] = b
	}

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error { return writeJSON(filepath.Join(dir, rawFile), rawBlobs) })
	g.Go(func() error {
		return writeJSON(filepath.Join(dir, metaFile), metaShape{
			RunID:      run.RunID,
			CreatedAt:  run.CreatedAt,
			SourceHint: run.SourceHint,
			EventCount: run.EventCount,
			Rejections: rejections,
		})
	})
	g.Go(func() error {
		return writeJSON(filepath.Join(dir, normalizedFile), normalizedFileShape{
			EventCount: len(normalized),
			Events:     normalized,
		})
	})
	g.Go(func() error {
		return writeJSON(filepath.Join(dir, incidentsFile), incidentsFileShape{
			IncidentCount: len(runIncidents),
			Incidents:     runIncidents,
		})
	})

	if err := g.Wait(); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "persist run artifacts")
	}
	return nil
}

// metaShape is the on-disk body of meta.json (spec §6), extended with the
// per-event rejection ledger so a run's normalization failures are
// inspectable after the fact.
type metaShape struct {
	RunID      string                `json:"run_id"`
	CreatedAt  time.Time             `json:"created_at"`
	SourceHint string                `json:"source_hint,omitempty"`
	EventCount int                   `json:"event_count"`
	Rejections []normalize.Rejection `json:"rejections,omitempty"`
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// ListIDs returns every persisted run_id, newest-first (spec §6 GET /runs/).
func (s *Store) ListIDs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list runs directory")
	}

	type named struct {
		id      string
		modTime int64
	}
	var ids []named
	for _, entry := range entries {
		if !entry.IsDir() || !runIDPattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		ids = append(ids, named{id: entry.Name(), modTime: info.ModTime().UnixNano()})
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].modTime > ids[j].modTime })

	out := make([]string, len(ids))
	for i, n := range ids {
		out[i] = n.id
	}
	return out, nil
}

// Meta reads meta.json for runID, along with its normalization rejections.
func (s *Store) Meta(runID string) (domain.Run, []normalize.Rejection, error) {
	if err := ValidateID(runID); err != nil {
		return domain.Run{}, nil, err
	}
	var shape metaShape
	if err := readJSON(filepath.Join(s.dirFor(runID), metaFile), &shape); err != nil {
		return domain.Run{}, nil, err
	}
	run := domain.Run{RunID: shape.RunID, CreatedAt: shape.CreatedAt, SourceHint: shape.SourceHint, EventCount: shape.EventCount}
	return run, shape.Rejections, nil
}

// Normalized reads normalized.json for runID.
func (s *Store) Normalized(runID string) (int, []domain.NormalizedEvent, error) {
	if err := ValidateID(runID); err != nil {
		return 0, nil, err
	}
	var shape normalizedFileShape
	if err := readJSON(filepath.Join(s.dirFor(runID), normalizedFile), &shape); err != nil {
		return 0, nil, err
	}
	return shape.EventCount, shape.Events, nil
}

// Incidents reads incidents.json for runID.
func (s *Store) Incidents(runID string) (int, []domain.Incident, error) {
	if err := ValidateID(runID); err != nil {
		return 0, nil, err
	}
	var shape incidentsFileShape
	if err := readJSON(filepath.Join(s.dirFor(runID), incidentsFile), &shape); err != nil {
		return 0, nil, err
	}
	return shape.IncidentCount, shape.Incidents, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return domainerrors.New(domainerrors.CodeNotFound, "run artifact "+filepath.Base(path))
	}
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "read run artifact")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "parse run artifact")
	}
	return nil
}
