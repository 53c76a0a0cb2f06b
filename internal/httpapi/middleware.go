// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package httpapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/questforge/questforge/internal/auth"
)

// sessionCookie names the cookie carrying the opaque session ID.
const sessionCookie = "qf_session"

// Header names for the API key credential pair.
const (
	headerAPIUser = "x-api-user"
	headerAPIKey  = "x-api-key"
)

// withSession loads the request's session from the cookie, creating a
// fresh anonymous one when the cookie is missing or stale, and saves
// it after the handler when it was mutated.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, isNew, err := s.loadSession(r)
		if err != nil {
			writeServiceError(w, s.logger, err)
			return
		}
		if isNew {
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    session.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		r = r.WithContext(auth.WithSession(r.Context(), session))
		next.ServeHTTP(w, r)

		if session.Modified() {
			if err := s.sessions.Save(r.Context(), session); err != nil {
				// The response is already written; all we can do is log.
				s.logger.Warn("session save failed", "session_id", session.ID, "error", err)
			}
		}
	})
}

// loadSession resolves the cookie to a stored session. An unknown or
// missing cookie yields a fresh session, persisted immediately so the
// post-handler save has a row to update.
func (s *Server) loadSession(r *http.Request) (*auth.Session, bool, error) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		session, err := s.sessions.Get(r.Context(), cookie.Value)
		if err == nil {
			return session, false, nil
		}
		if !errors.Is(err, auth.ErrNotFound) {
			return nil, false, err
		}
	}

	session, err := auth.NewSession()
	if err != nil {
		return nil, false, err
	}
	if err := s.sessions.Create(r.Context(), session); err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// requireAPIKey authenticates the API key header pair and publishes the
// identity. The stale-client bypass is resolved here: a matching patch
// body is answered with a decremented version counter and never reaches
// the handler.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds := auth.APIKeyCredentials{
			UserID:        r.Header.Get(headerAPIUser),
			APIToken:      r.Header.Get(headerAPIKey),
			ClientVersion: r.URL.Query().Get("_v"),
		}

		// The bypass check needs the body; buffer it and hand the
		// handler a replacement reader.
		if r.Body != nil && r.ContentLength != 0 {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				writeServiceError(w, s.logger, err)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			creds.StaleSync = auth.ContainsStaleSyncOp(body)
		}

		identity, err := s.authenticator.AuthenticateAPIKey(r.Context(), creds)
		if err != nil {
			s.metrics.AuthAttempts.WithLabelValues("api_key", "denied").Inc()
			writeServiceError(w, s.logger, err)
			return
		}

		if identity.StaleSync {
			s.metrics.AuthAttempts.WithLabelValues("api_key", "stale_sync").Inc()
			writeJSON(w, http.StatusOK, map[string]int{"_v": identity.User.Version - 1})
			return
		}

		s.metrics.AuthAttempts.WithLabelValues("api_key", "ok").Inc()

		if session, ok := auth.SessionFromContext(r.Context()); ok {
			session.SetUser(identity.User.ID)
		}

		r = r.WithContext(auth.WithIdentity(r.Context(), identity))
		next.ServeHTTP(w, r)
	})
}

// requireSession authenticates via the established session and
// publishes the identity.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, _ := auth.SessionFromContext(r.Context())
		user, err := s.authenticator.AuthenticateSession(r.Context(), session)
		if err != nil {
			s.metrics.AuthAttempts.WithLabelValues("session", "denied").Inc()
			writeServiceError(w, s.logger, err)
			return
		}

		s.metrics.AuthAttempts.WithLabelValues("session", "ok").Inc()
		r = r.WithContext(auth.WithIdentity(r.Context(), &auth.Identity{User: user}))
		next.ServeHTTP(w, r)
	})
}
