package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authsentinel/pkg/domainerrors"
)

func writeTempMapping(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "field_mappings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadValidMapping(t *testing.T) {
	path := writeTempMapping(t, `
profiles:
  _default:
    fields:
      timestamp: ["timestamp"]
      event_type: ["event_type"]
      result: ["result"]
      source_ip: ["source_ip"]
      username: ["username"]
    result_map:
      success: success
      failure: failure
  windows_eventlog:
    fields:
      timestamp: ["winlog.event_data.UtcTime", "timestamp"]
      event_type: ["winlog.event_id"]
      result: ["winlog.keywords"]
    reject_event_types: ["4672", "4634"]
`)

	profiles, err := Load(path)
	require.NoError(t, err)

	def := profiles.Resolve("_default")
	assert.Equal(t, []string{"timestamp"}, def.Fields["timestamp"])

	win := profiles.Resolve("windows_eventlog")
	assert.Equal(t, []string{"4672", "4634"}, win.RejectEventTypes)
}

func TestLoadMissingDefaultProfileIsConfigInvalid(t *testing.T) {
	path := writeTempMapping(t, `
profiles:
  windows_eventlog:
    fields:
      timestamp: ["timestamp"]
      event_type: ["event_type"]
      result: ["result"]
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeInvalid))
}

func TestLoadEmptyRequiredFieldIsConfigInvalid(t *testing.T) {
	path := writeTempMapping(t, `
profiles:
  _default:
    fields:
      timestamp: ["timestamp"]
      event_type: []
      result: ["result"]
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeInvalid))
}

func TestLoadMissingFileIsConfigInvalid(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeInvalid))
}
