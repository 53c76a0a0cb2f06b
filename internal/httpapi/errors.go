// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/questforge/questforge/internal/auth"
	"github.com/questforge/questforge/pkg/errutil"
)

// statusForCode maps service error codes to HTTP statuses. Credential
// and validation failures answer 401 to match the client's retry
// handling; only the OAuth "register first" refusal is a 403. Codes
// not listed here are server-side failures and answer 500.
var statusForCode = map[string]int{
	auth.CodeMissingCredentials:   http.StatusUnauthorized,
	auth.CodeNoSession:            http.StatusUnauthorized,
	auth.CodeUserNotFound:         http.StatusUnauthorized,
	auth.CodeIncorrectPassword:    http.StatusUnauthorized,
	auth.CodeDuplicateEmail:       http.StatusUnauthorized,
	auth.CodeDuplicateUsername:    http.StatusUnauthorized,
	auth.CodeValidation:           http.StatusUnauthorized,
	auth.CodeOAuthUnregistered:    http.StatusForbidden,
	"BAD_REQUEST_BODY":            http.StatusUnauthorized,
	auth.CodeResetUnknownEmail:    http.StatusInternalServerError,
	auth.CodePasswordMismatch:     http.StatusInternalServerError,
	auth.CodeOldPasswordIncorrect: http.StatusInternalServerError,
	auth.CodeStorage:              http.StatusInternalServerError,
}

// publicMessage extracts the client-safe message from a service error.
func publicMessage(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if public := oopsErr.Public(); public != "" {
			return public
		}
	}
	return "Internal server error"
}

// noIdentityError reports a handler reached without the middleware
// having published an identity. A routing bug, not a client error.
func noIdentityError() error {
	return oops.Code(auth.CodeStorage).
		Public("Internal server error").
		Errorf("handler reached without authenticated identity")
}

// writeServiceError translates a service error into the JSON error
// envelope. The public message goes to the client; the full error goes
// to the log only when it is server-side.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	if oopsErr, ok := oops.AsOops(err); ok {
		if code, isString := oopsErr.Code().(string); isString {
			if s, known := statusForCode[code]; known {
				status = s
			}
		}
		if public := oopsErr.Public(); public != "" {
			message = public
		}
	}

	if status >= http.StatusInternalServerError {
		errutil.LogError(logger, "request failed", err)
	}

	writeJSON(w, status, errorBody{Err: message})
}
