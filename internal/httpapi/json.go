// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

// Package httpapi is the HTTP boundary of the QuestForge auth service:
// routing, request authentication, and the JSON envelope.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"
)

// maxBodyBytes caps request bodies read by the API.
const maxBodyBytes = 1 << 20

// errorBody is the error envelope: {"err": "..."}.
type errorBody struct {
	Err string `json:"err"`
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return oops.Code("BAD_REQUEST_BODY").
			Public("Invalid request body").
			Wrap(err)
	}
	return nil
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response write failed", "error", err)
	}
}
