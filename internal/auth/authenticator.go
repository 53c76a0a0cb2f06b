// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// StaleSyncField is the client field whose presence in a patch body
// marks an outdated client. Requests patching it are answered with a
// decremented version counter instead of being applied, which forces
// the client to refresh without poisoning its sync queue.
const StaleSyncField = "items.pets"

// APIKeyCredentials are the per-request inputs to API-key
// authentication, extracted from the transport by the caller.
type APIKeyCredentials struct {
	// UserID and APIToken are the bearer credential pair
	// (x-api-user / x-api-key headers).
	UserID   string
	APIToken string

	// ClientVersion is the raw _v query value, empty if absent.
	ClientVersion string

	// StaleSync is set when the request body patches StaleSyncField.
	StaleSync bool
}

// Identity is the outcome of request authentication, published into
// the request context for downstream handlers.
type Identity struct {
	User *User

	// WasModified is true when the client's version counter is absent
	// or differs from the stored one, meaning the client missed
	// updates.
	WasModified bool

	// StaleSync mirrors APIKeyCredentials.StaleSync: the caller must
	// answer {_v: User.Version - 1} and stop processing.
	StaleSync bool
}

// Authenticator resolves inbound credentials to a user record.
type Authenticator struct {
	users UserRepository
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(users UserRepository) *Authenticator {
	return &Authenticator{users: users}
}

// AuthenticateAPIKey resolves an API key pair to a user.
//
// The stale-client bypass is checked before the token is validated:
// it only needs the stored version counter, and rejecting it on a bad
// token would push the stale operation back into the client's retry
// queue, which is exactly what the bypass exists to avoid.
func (a *Authenticator) AuthenticateAPIKey(ctx context.Context, creds APIKeyCredentials) (*Identity, error) {
	if creds.UserID == "" || creds.APIToken == "" {
		return nil, oops.Code(CodeMissingCredentials).
			Public("You must include a token and uid (user id) in your request").
			Errorf("missing api credentials")
	}

	id, parseErr := ulid.Parse(creds.UserID)
	if parseErr != nil {
		// A malformed ID can never match a record.
		return nil, notFoundError(oops.With("user_id", creds.UserID))
	}

	if creds.StaleSync {
		user, err := a.users.GetByID(ctx, id)
		if err != nil {
			return nil, storeError(err, "get user by id")
		}
		return &Identity{User: user, StaleSync: true}, nil
	}

	user, err := a.users.GetByIDAndToken(ctx, id, creds.APIToken)
	if err != nil {
		return nil, storeError(err, "get user by id and token")
	}

	return &Identity{
		User:        user,
		WasModified: wasModified(creds.ClientVersion, user.Version),
	}, nil
}

// AuthenticateSession resolves an established session to a user.
func (a *Authenticator) AuthenticateSession(ctx context.Context, session *Session) (*User, error) {
	if session == nil || !session.Authenticated() {
		return nil, oops.Code(CodeNoSession).
			Public("You must be logged in.").
			Errorf("session has no user")
	}

	id, parseErr := ulid.Parse(session.UserID)
	if parseErr != nil {
		return nil, notFoundError(oops.With("user_id", session.UserID))
	}

	user, err := a.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "get user by id")
	}
	return user, nil
}

// wasModified compares the client-supplied version against the stored
// counter. An absent or non-numeric client version counts as modified.
func wasModified(clientVersion string, stored int) bool {
	if clientVersion == "" {
		return true
	}
	v, err := strconv.Atoi(clientVersion)
	if err != nil {
		return true
	}
	return v != stored
}

// ContainsStaleSyncOp reports whether a request body, interpreted as a
// list of patch operations, contains an operation with an array value
// for StaleSyncField. Bodies that are not a list of operations never
// match.
func ContainsStaleSyncOp(body []byte) bool {
	var ops []json.RawMessage
	if err := json.Unmarshal(body, &ops); err != nil {
		return false
	}
	for _, raw := range ops {
		var op struct {
			Data map[string]json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &op); err != nil {
			continue
		}
		v, ok := op.Data[StaleSyncField]
		if !ok {
			continue
		}
		if trimmed := bytes.TrimSpace(v); len(trimmed) > 0 && trimmed[0] == '[' {
			return true
		}
	}
	return false
}

func notFoundError(builder oops.OopsErrorBuilder) error {
	return builder.
		Code(CodeUserNotFound).
		Public("No user found.").
		Wrap(ErrNotFound)
}

// storeError classifies a repository failure: a miss keeps its
// UserNotFound identity, anything else is a storage error.
func storeError(err error, operation string) error {
	if errors.Is(err, ErrNotFound) {
		return notFoundError(oops.With("operation", operation))
	}
	return oops.Code(CodeStorage).
		Public(err.Error()).
		With("operation", operation).
		Wrap(err)
}
