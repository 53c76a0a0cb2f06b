// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/questforge/questforge/internal/auth"
)

// poolIface is the subset of pgxpool.Pool the repositories use,
// satisfied by pgxmock for tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, api_token, version, username, email, salt, hashed_password,
	       provider, provider_user_id, provider_email, provider_name,
	       game_state, created_at, logged_in_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user. Unique-constraint violations on email and
// username map to the duplicate sentinels so racing registrations fail
// the same way the sequential pre-checks do.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	stateJSON, err := json.Marshal(user.GameState)
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "marshal game state").
			Wrap(err)
	}

	var (
		username, email, salt, hashedPassword         *string
		provider, providerID, providerEmail, provName *string
	)
	if user.Local != nil {
		username = &user.Local.Username
		email = &user.Local.Email
		salt = &user.Local.Salt
		hashedPassword = &user.Local.HashedPassword
	}
	if user.OAuth != nil {
		provider = &user.OAuth.Provider
		providerID = &user.OAuth.UserID
		providerEmail = &user.OAuth.Email
		provName = &user.OAuth.Name
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO users (
			id, api_token, version, username, email, salt, hashed_password,
			provider, provider_user_id, provider_email, provider_name,
			game_state, created_at, logged_in_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		user.ID.String(),
		user.APIToken,
		user.Version,
		username,
		email,
		salt,
		hashedPassword,
		provider,
		providerID,
		providerEmail,
		provName,
		stateJSON,
		user.CreatedAt,
		user.LoggedInAt,
	)
	if err != nil {
		if dupErr := duplicateError(err); dupErr != nil {
			return dupErr
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByIDAndToken retrieves a user whose ID and API token both match.
func (r *UserRepository) GetByIDAndToken(ctx context.Context, id ulid.ULID, token string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND api_token = $2
	`, id.String(), token)
	return r.getOne(row, "get user by id and token")
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id.String())
	return r.getOne(row, "get user by id")
}

// GetByEmail retrieves a user by local email (case-sensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email)
	return r.getOne(row, "get user by email")
}

// GetByUsername retrieves a user by local username (case-sensitive).
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username)
	return r.getOne(row, "get user by username")
}

// GetByUsernameAndHash retrieves a user whose username and stored
// password hash both match.
func (r *UserRepository) GetByUsernameAndHash(ctx context.Context, username, hashedPassword string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 AND hashed_password = $2
	`, username, hashedPassword)
	return r.getOne(row, "get user by username and hash")
}

// GetByProviderID retrieves a user linked to an OAuth provider identity.
func (r *UserRepository) GetByProviderID(ctx context.Context, provider, providerUserID string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE provider = $1 AND provider_user_id = $2
	`, provider, providerUserID)
	return r.getOne(row, "get user by provider id")
}

// Update persists an existing user and increments the version counter,
// writing the new value back into user.Version.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	stateJSON, err := json.Marshal(user.GameState)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "marshal game state").
			Wrap(err)
	}

	var (
		username, email, salt, hashedPassword         *string
		provider, providerID, providerEmail, provName *string
	)
	if user.Local != nil {
		username = &user.Local.Username
		email = &user.Local.Email
		salt = &user.Local.Salt
		hashedPassword = &user.Local.HashedPassword
	}
	if user.OAuth != nil {
		provider = &user.OAuth.Provider
		providerID = &user.OAuth.UserID
		providerEmail = &user.OAuth.Email
		provName = &user.OAuth.Name
	}

	var version int
	err = r.pool.QueryRow(ctx, `
		UPDATE users SET
			api_token = $2,
			username = $3,
			email = $4,
			salt = $5,
			hashed_password = $6,
			provider = $7,
			provider_user_id = $8,
			provider_email = $9,
			provider_name = $10,
			game_state = $11,
			logged_in_at = $12,
			version = version + 1
		WHERE id = $1
		RETURNING version
	`,
		user.ID.String(),
		user.APIToken,
		username,
		email,
		salt,
		hashedPassword,
		provider,
		providerID,
		providerEmail,
		provName,
		stateJSON,
		user.LoggedInAt,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code("USER_NOT_FOUND").
			With("id", user.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	user.Version = version
	return nil
}

// getOne scans a single row, translating pgx.ErrNoRows to ErrNotFound.
func (r *UserRepository) getOne(row pgx.Row, operation string) (*auth.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("operation", operation).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", operation).
			Wrap(err)
	}
	return user, nil
}

// scanUser scans a row into a User. Callers handle pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr          string
		apiToken       string
		version        int
		username       *string
		email          *string
		salt           *string
		hashedPassword *string
		provider       *string
		providerID     *string
		providerEmail  *string
		providerName   *string
		stateJSON      []byte
		createdAt      time.Time
		loggedInAt     time.Time
	)

	err := row.Scan(
		&idStr,
		&apiToken,
		&version,
		&username,
		&email,
		&salt,
		&hashedPassword,
		&provider,
		&providerID,
		&providerEmail,
		&providerName,
		&stateJSON,
		&createdAt,
		&loggedInAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}

	user := &auth.User{
		ID:         id,
		APIToken:   apiToken,
		Version:    version,
		CreatedAt:  createdAt,
		LoggedInAt: loggedInAt,
	}

	if username != nil {
		user.Local = &auth.LocalCredentials{Username: *username}
		if email != nil {
			user.Local.Email = *email
		}
		if salt != nil {
			user.Local.Salt = *salt
		}
		if hashedPassword != nil {
			user.Local.HashedPassword = *hashedPassword
		}
	}
	if provider != nil && providerID != nil {
		user.OAuth = &auth.OAuthProfile{
			Provider: *provider,
			UserID:   *providerID,
		}
		if providerEmail != nil {
			user.OAuth.Email = *providerEmail
		}
		if providerName != nil {
			user.OAuth.Name = *providerName
		}
	}

	if len(stateJSON) > 0 {
		if err := json.Unmarshal(stateJSON, &user.GameState); err != nil {
			return nil, oops.Code("USER_INVALID_GAME_STATE").
				With("operation", "unmarshal game state").
				Wrap(err)
		}
	}

	return user, nil
}

// duplicateError maps a unique violation to the matching duplicate
// sentinel, or returns nil for unrelated errors.
func duplicateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return oops.Code("USER_DUPLICATE_EMAIL").
			With("constraint", pgErr.ConstraintName).
			Wrap(auth.ErrDuplicateEmail)
	case strings.Contains(pgErr.ConstraintName, "username"):
		return oops.Code("USER_DUPLICATE_USERNAME").
			With("constraint", pgErr.ConstraintName).
			Wrap(auth.ErrDuplicateUsername)
	default:
		return nil
	}
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
