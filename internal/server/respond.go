/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"godashboard/internal/domain"
)

// Error codes of the API envelope.
const (
	CodeNotLoggedIn      = "notloggedin"
	CodeBadToken         = "badtoken"
	CodePermissionDenied = "permissiondenied"
	CodeRateLimited      = "ratelimited"
	CodePersistFailed    = "persistfailed"
	CodeBadJSON          = "badjson"
	CodeNoSuchUser       = "nosuchuser"
	CodeInternal         = "internal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

// writeSuccess writes {"result":"success", ...fields}.
func writeSuccess(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"result": "success"}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"code": code, "message": message}})
}

// fail maps a service error onto the envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	var pe *domain.PersistError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Code, ve.Message)
	case errors.As(err, &pe):
		s.log.ErrorContext(r.Context(), "preference store failure",
			slog.String("op", pe.Op), slog.String("key", pe.Key), slog.Any("err", pe.Err))
		writeError(w, http.StatusInternalServerError, CodePersistFailed, "your dashboard settings could not be "+persistVerb(pe.Op))
	default:
		s.log.ErrorContext(r.Context(), "request failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func persistVerb(op string) string {
	if op == "set" {
		return "saved"
	}
	return "loaded"
}
