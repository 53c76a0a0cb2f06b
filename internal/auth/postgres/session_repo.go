// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/questforge/questforge/internal/auth"
)

// SessionStore implements auth.SessionStore using PostgreSQL.
type SessionStore struct {
	pool poolIface
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool poolIface) *SessionStore {
	return &SessionStore{pool: pool}
}

// Create stores a new session.
func (s *SessionStore) Create(ctx context.Context, session *auth.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`,
		session.ID,
		nullableString(session.UserID),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			Wrap(err)
	}
	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*auth.Session, error) {
	var (
		userID    *string
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`, id).Scan(&userID, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session").
			Wrap(err)
	}

	session := &auth.Session{
		ID:        id,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if userID != nil {
		session.UserID = *userID
	}
	return session, nil
}

// Save writes back a mutated session.
func (s *SessionStore) Save(ctx context.Context, session *auth.Session) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET user_id = $2, updated_at = $3
		WHERE id = $1
	`,
		session.ID,
		nullableString(session.UserID),
		time.Now(),
	)
	if err != nil {
		return oops.Code("SESSION_SAVE_FAILED").
			With("operation", "update session").
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM sessions WHERE id = $1
	`, id)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)
