// Package httputil centralizes JSON response encoding and domain-error
// translation so every handler reports errors identically (spec §7).
package httputil

import (
	"encoding/json"
	"net/http"

	"authsentinel/pkg/domainerrors"
)

// WriteJSON encodes v as the response body with status and the JSON
// content type.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON error envelope every handler returns on failure.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError translates err into the standard JSON error envelope and HTTP
// status. Internal errors never leak their message to the client; every
// other code includes it as error_description.
func WriteError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeInternal
	message := ""

	var de *domainerrors.Error
	if asError(err, &de) {
		code = de.Code
		message = de.Message
	}

	status := domainerrors.ToHTTPStatus(code)
	body := errorBody{Error: string(code)}
	if code != domainerrors.CodeInternal {
		body.ErrorDescription = message
	}

	WriteJSON(w, status, body)
}

func asError(err error, target **domainerrors.Error) bool {
	for err != nil {
		if de, ok := err.(*domainerrors.Error); ok {
			*target = de
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// Decode reads and JSON-decodes the request body into a value of type T.
// A malformed body is reported as domainerrors.CodeBadRequest.
func Decode[T any](r *http.Request) (T, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var zero T
		return zero, domainerrors.Wrap(err, domainerrors.CodeBadRequest, "malformed request body")
	}
	return v, nil
}
