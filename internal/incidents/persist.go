package incidents

import (
	"encoding/json"
	"os"
	"path/filepath"

	"authsentinel/internal/domain"
	"authsentinel/pkg/domainerrors"
)

// jsonRaw aliases json.RawMessage so the rest of the file avoids repeating
// the package-qualified name.
type jsonRaw = json.RawMessage

const registryVersion = 1

// persistedFile is the on-disk shape: {version, incidents: {id: incident}}
// (spec §4.4). Unknown top-level keys are round-tripped untouched so a
// newer writer's fields survive an older reader (spec §4.4 forward
// compatibility).
type persistedFile struct {
	Version   int                        `json:"version"`
	Incidents map[string]domain.Incident `json:"incidents"`
}

func (r *Registry) toFile() persistedFile {
	return persistedFile{Version: registryVersion, Incidents: r.byID}
}

// persistLocked atomically rewrites the registry file. Callers must already
// hold r.mu for writing.
func (r *Registry) persistLocked() error {
	if r.path == "" {
		return nil
	}

	doc := r.toFile()
	merged := make(map[string]jsonRaw, len(r.extra)+2)
	for k, v := range r.extra {
		merged[k] = v
	}

	versionJSON, err := json.Marshal(doc.Version)
	if err != nil {
		return err
	}
	incidentsJSON, err := json.Marshal(doc.Incidents)
	if err != nil {
		return err
	}
	merged["version"] = versionJSON
	merged["incidents"] = incidentsJSON

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return err
	}

	return writeAtomic(r.path, data)
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by rename, so a crash never leaves a partially written registry
// (spec §4.4 "atomic file replacement").
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

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

// Rehydrate loads the registry from disk, if a file exists at path (spec
// §4.4 "load-on-start"). A missing file is not an error: the registry
// starts empty.
func (r *Registry) Rehydrate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "read incident registry file")
	}

	var raw map[string]jsonRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "parse incident registry file")
	}

	var incidents map[string]domain.Incident
	if v, ok := raw["incidents"]; ok {
		if err := json.Unmarshal(v, &incidents); err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "parse incident registry incidents")
		}
	}
	delete(raw, "version")
	delete(raw, "incidents")

	r.byID = incidents
	if r.byID == nil {
		r.byID = make(map[string]domain.Incident)
	}
	r.extra = raw
	return nil
}
