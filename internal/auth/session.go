// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionIDBytes is the length of the random session identifier.
const SessionIDBytes = 32

// Session is the server-side state bag keyed by the opaque identifier
// the transport carries (a cookie). It holds a single meaningful
// field: the authenticated user's ID, set on successful
// authentication and cleared on logout. Lifetime is controlled by the
// store, not by this type; there is no expiry here.
type Session struct {
	ID        string
	UserID    string // ULID string; empty when unauthenticated
	CreatedAt time.Time
	UpdatedAt time.Time

	modified bool
}

// NewSession creates an unauthenticated session with a fresh ID.
func NewSession() (*Session, error) {
	buf := make([]byte, SessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, oops.Code("SESSION_ID_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	now := time.Now()
	return &Session{
		ID:        hex.EncodeToString(buf),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SetUser stamps the session with the authenticated user's ID.
func (s *Session) SetUser(id ulid.ULID) {
	uid := id.String()
	if s.UserID == uid {
		return
	}
	s.UserID = uid
	s.modified = true
}

// ClearUser removes the authenticated user, leaving the session
// usable but anonymous.
func (s *Session) ClearUser() {
	if s.UserID == "" {
		return
	}
	s.UserID = ""
	s.modified = true
}

// Authenticated reports whether the session carries a user ID.
func (s *Session) Authenticated() bool {
	return s.UserID != ""
}

// Modified reports whether the session needs to be written back.
func (s *Session) Modified() bool {
	return s.modified
}

// SessionStore persists sessions between requests.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID. Returns ErrNotFound if the
	// identifier is unknown.
	Get(ctx context.Context, id string) (*Session, error)

	// Save writes back a mutated session.
	Save(ctx context.Context, session *Session) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error
}
