// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

// Package auth provides account and request-authentication primitives
// for the QuestForge API.
package auth

import (
	"context"
	"net/mail"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User is a player account. Every mutation through the repository bumps
// Version, which clients use to detect missed updates.
type User struct {
	ID       ulid.ULID
	APIToken string
	Version  int

	// At most one of Local and OAuth is set.
	Local *LocalCredentials
	OAuth *OAuthProfile

	GameState GameState

	CreatedAt  time.Time
	LoggedInAt time.Time
}

// LocalCredentials holds username/password identity. Salt is generated
// once at account creation and replaced only on password reset.
type LocalCredentials struct {
	Username       string
	Email          string
	Salt           string
	HashedPassword string
}

// OAuthProfile holds the identity an external provider vouched for.
type OAuthProfile struct {
	Provider string `json:"provider"`
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}

// GameState carries the default gameplay fields seeded at account
// creation. Gameplay mutates these elsewhere; this service only seeds
// them.
type GameState struct {
	Stats  Stats   `json:"stats"`
	Habits []Habit `json:"habits,omitempty"`
	Seeded bool    `json:"seeded"`
}

// Stats are the starting RPG attributes for a new account.
type Stats struct {
	HP    int `json:"hp"`
	MP    int `json:"mp"`
	Exp   int `json:"exp"`
	Gold  int `json:"gold"`
	Level int `json:"lvl"`
}

// Habit is a starter habit seeded for new accounts.
type Habit struct {
	Text string `json:"text"`
	Up   bool   `json:"up"`
	Down bool   `json:"down"`
}

// ValidateEmail checks that an address is well-formed.
func ValidateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return oops.Code(CodeValidation).
			Public("Invalid email").
			With("email", email).
			Wrap(err)
	}
	return nil
}

// UserRepository manages user persistence. Lookups return ErrNotFound
// when no record matches; all other failures are storage errors.
//
// Username and email lookups are case-sensitive on purpose: the login
// error message promises exactly that.
type UserRepository interface {
	// Create stores a new user. Unique collisions on email, username,
	// or API token surface as ErrDuplicateEmail, ErrDuplicateUsername,
	// or a storage error respectively.
	Create(ctx context.Context, user *User) error

	// GetByIDAndToken retrieves a user whose ID and API token both
	// match exactly.
	GetByIDAndToken(ctx context.Context, id ulid.ULID, token string) (*User, error)

	// GetByID retrieves a user by ID alone.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by local email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByUsername retrieves a user by local username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByUsernameAndHash retrieves a user whose username and stored
	// password hash both match exactly.
	GetByUsernameAndHash(ctx context.Context, username, hashedPassword string) (*User, error)

	// GetByProviderID retrieves a user linked to the given OAuth
	// provider identity.
	GetByProviderID(ctx context.Context, provider, providerUserID string) (*User, error)

	// Update persists an existing user and increments its version
	// counter. The incremented value is written back to user.Version.
	Update(ctx context.Context, user *User) error
}
