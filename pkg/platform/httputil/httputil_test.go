package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authsentinel/pkg/domainerrors"
)

func TestWriteErrorInternalOmitsDescription(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, domainerrors.New(domainerrors.CodeInternal, "disk full"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "persistence_error", body["error"])
	_, hasDescription := body["error_description"]
	assert.False(t, hasDescription)
}

func TestWriteErrorBadRequestIncludesDescription(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "body must be a non-empty array"))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "bad_request", body["error"])
	assert.Equal(t, "body must be a non-empty array", body["error_description"])
}

func TestWriteErrorUnwrapsWrappedDomainError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, domainerrors.Wrap(domainerrors.New(domainerrors.CodeNotFound, "nope"), domainerrors.CodeNotFound, "incident inc_a"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWriteErrorNonDomainErrorDefaultsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWriteJSONSetsContentType(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusOK, w.Code)
}
