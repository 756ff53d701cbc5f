// Copyright 2026 The Agentgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package apis holds what every wire protocol shares: the session factory
// each handler consumes and the error surface returned at the HTTP boundary.
//
// Setup-time failures (bad model, bad prior turns) surface as an HTTP error
// before any streaming begins. Mid-stream failures never change the already
// committed status; they are folded into the event vocabulary or logged.
package apis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/agentgate/agentgate/pkg/session"
)

// SessionFactory creates a session bound to a freshly started computation.
// Implemented by the runtime; unknown model names fail with an error that
// maps to not-found.
type SessionFactory interface {
	NewSession(ctx context.Context, id, model string, ephemeral bool) (*session.Session, error)
}

// Error is an API error with its HTTP mapping.
type Error struct {
	Status  int    `json:"-"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

// NotFound builds a 404 error (unknown target or model).
func NotFound(format string, args ...any) *Error {
	return &Error{Status: http.StatusNotFound, Type: "not_found_error", Message: fmt.Sprintf(format, args...)}
}

// InvalidRequest builds a 400 error (malformed turns or configuration).
func InvalidRequest(format string, args ...any) *Error {
	return &Error{Status: http.StatusBadRequest, Type: "invalid_request_error", Message: fmt.Sprintf(format, args...)}
}

// Internal builds a 500 error (handle or backend failure).
func Internal(format string, args ...any) *Error {
	return &Error{Status: http.StatusInternalServerError, Type: "internal_error", Message: fmt.Sprintf(format, args...)}
}

type errorEnvelope struct {
	Error *Error `json:"error"`
}

// WriteError writes err as a JSON error response. Errors that are not *Error
// are reported as internal.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = Internal("%s", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: apiErr})
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
