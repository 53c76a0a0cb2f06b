// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateAPIKey_MissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds APIKeyCredentials
	}{
		{"both missing", APIKeyCredentials{}},
		{"missing token", APIKeyCredentials{UserID: ulid.Make().String()}},
		{"missing user id", APIKeyCredentials{APIToken: "tok"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &fakeUsers{}
			a := NewAuthenticator(users)

			_, err := a.AuthenticateAPIKey(context.Background(), tt.creds)

			require.Error(t, err)
			assertCode(t, err, CodeMissingCredentials)
			assertPublic(t, err, "You must include a token and uid (user id) in your request")
			assert.Empty(t, users.calls, "missing credentials must be rejected before any lookup")
		})
	}
}

func TestAuthenticateAPIKey_MalformedUserID(t *testing.T) {
	a := NewAuthenticator(&fakeUsers{})

	_, err := a.AuthenticateAPIKey(context.Background(), APIKeyCredentials{
		UserID:   "not-a-ulid",
		APIToken: "tok",
	})

	require.Error(t, err)
	assertCode(t, err, CodeUserNotFound)
	assertPublic(t, err, "No user found.")
}

func TestAuthenticateAPIKey_BadToken(t *testing.T) {
	a := NewAuthenticator(&fakeUsers{})

	_, err := a.AuthenticateAPIKey(context.Background(), APIKeyCredentials{
		UserID:   ulid.Make().String(),
		APIToken: "wrong",
	})

	require.Error(t, err)
	assertCode(t, err, CodeUserNotFound)
	assertPublic(t, err, "No user found.")
}

func TestAuthenticateAPIKey_Success(t *testing.T) {
	id := ulid.Make()
	stored := &User{ID: id, APIToken: "tok", Version: 7}
	users := &fakeUsers{
		getByIDAndTokenFn: func(_ context.Context, gotID ulid.ULID, token string) (*User, error) {
			if gotID == id && token == "tok" {
				return stored, nil
			}
			return nil, ErrNotFound
		},
	}
	a := NewAuthenticator(users)

	identity, err := a.AuthenticateAPIKey(context.Background(), APIKeyCredentials{
		UserID:        id.String(),
		APIToken:      "tok",
		ClientVersion: "7",
	})

	require.NoError(t, err)
	assert.Same(t, stored, identity.User)
	assert.False(t, identity.WasModified)
	assert.False(t, identity.StaleSync)
}

func TestAuthenticateAPIKey_WasModified(t *testing.T) {
	tests := []struct {
		name          string
		clientVersion string
		stored        int
		want          bool
	}{
		{"matching version", "7", 7, false},
		{"older client", "6", 7, true},
		{"newer client", "8", 7, true},
		{"absent version", "", 7, true},
		{"non-numeric version", "abc", 7, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wasModified(tt.clientVersion, tt.stored))
		})
	}
}

func TestAuthenticateAPIKey_StaleSyncBypassesTokenCheck(t *testing.T) {
	id := ulid.Make()
	stored := &User{ID: id, APIToken: "tok", Version: 5}
	users := &fakeUsers{
		getByIDFn: func(_ context.Context, gotID ulid.ULID) (*User, error) {
			if gotID == id {
				return stored, nil
			}
			return nil, ErrNotFound
		},
	}
	a := NewAuthenticator(users)

	// The token is wrong on purpose: the bypass must trigger anyway.
	identity, err := a.AuthenticateAPIKey(context.Background(), APIKeyCredentials{
		UserID:    id.String(),
		APIToken:  "definitely-wrong",
		StaleSync: true,
	})

	require.NoError(t, err)
	assert.True(t, identity.StaleSync)
	assert.Equal(t, 5, identity.User.Version)
	assert.NotContains(t, users.calls, "GetByIDAndToken")
}

func TestAuthenticateAPIKey_StoreFailure(t *testing.T) {
	users := &fakeUsers{
		getByIDAndTokenFn: func(context.Context, ulid.ULID, string) (*User, error) {
			return nil, errors.New("connection refused")
		},
	}
	a := NewAuthenticator(users)

	_, err := a.AuthenticateAPIKey(context.Background(), APIKeyCredentials{
		UserID:   ulid.Make().String(),
		APIToken: "tok",
	})

	require.Error(t, err)
	assertCode(t, err, CodeStorage)
}

func TestAuthenticateSession_NoSession(t *testing.T) {
	a := NewAuthenticator(&fakeUsers{})

	for _, session := range []*Session{nil, {ID: "anon"}} {
		_, err := a.AuthenticateSession(context.Background(), session)
		require.Error(t, err)
		assertCode(t, err, CodeNoSession)
		assertPublic(t, err, "You must be logged in.")
	}
}

func TestAuthenticateSession_Success(t *testing.T) {
	id := ulid.Make()
	stored := &User{ID: id}
	users := &fakeUsers{
		getByIDFn: func(_ context.Context, gotID ulid.ULID) (*User, error) {
			if gotID == id {
				return stored, nil
			}
			return nil, ErrNotFound
		},
	}
	a := NewAuthenticator(users)

	user, err := a.AuthenticateSession(context.Background(), &Session{ID: "s", UserID: id.String()})

	require.NoError(t, err)
	assert.Same(t, stored, user)
}

func TestAuthenticateSession_DeletedUser(t *testing.T) {
	a := NewAuthenticator(&fakeUsers{})

	_, err := a.AuthenticateSession(context.Background(), &Session{ID: "s", UserID: ulid.Make().String()})

	require.Error(t, err)
	assertCode(t, err, CodeUserNotFound)
}

func TestContainsStaleSyncOp(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{
			"array-valued pets op",
			`[{"op":"update","data":{"items.pets":["wolf","bear"]}}]`,
			true,
		},
		{
			"object-valued pets op",
			`[{"op":"update","data":{"items.pets":{"wolf":5}}}]`,
			false,
		},
		{
			"pets among several ops",
			`[{"op":"score","data":{"habit":"x"}},{"op":"update","data":{"items.pets":[]}}]`,
			true,
		},
		{"no pets field", `[{"op":"update","data":{"stats.hp":50}}]`, false},
		{"not a list", `{"op":"update","data":{"items.pets":["wolf"]}}`, false},
		{"empty body", ``, false},
		{"not json", `hello`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsStaleSyncOp([]byte(tt.body)))
		})
	}
}

// assertCode asserts err carries the given oops code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// assertPublic asserts err carries the given public message.
func assertPublic(t *testing.T, err error, message string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, message, oopsErr.Public())
}
