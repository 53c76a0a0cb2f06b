// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package auth

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	session, err := NewSession()
	require.NoError(t, err)

	assert.Len(t, session.ID, SessionIDBytes*2)
	assert.False(t, session.Authenticated())
	assert.False(t, session.Modified())

	other, err := NewSession()
	require.NoError(t, err)
	assert.NotEqual(t, session.ID, other.ID)
}

func TestSession_SetUser(t *testing.T) {
	session, err := NewSession()
	require.NoError(t, err)

	id := ulid.Make()
	session.SetUser(id)

	assert.True(t, session.Authenticated())
	assert.True(t, session.Modified())
	assert.Equal(t, id.String(), session.UserID)
}

func TestSession_SetUser_SameUserNotModified(t *testing.T) {
	id := ulid.Make()
	session := &Session{ID: "abc", UserID: id.String()}

	session.SetUser(id)

	assert.False(t, session.Modified(), "re-stamping the same user is a no-op")
}

func TestSession_ClearUser(t *testing.T) {
	session := &Session{ID: "abc", UserID: ulid.Make().String()}

	session.ClearUser()

	assert.False(t, session.Authenticated())
	assert.True(t, session.Modified())
}

func TestSession_ClearUser_AnonymousNotModified(t *testing.T) {
	session := &Session{ID: "abc"}

	session.ClearUser()

	assert.False(t, session.Modified())
}
