// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package oauth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Provider(t *testing.T) {
	c := NewClient("client-id", "secret", "https://questforge.example/auth/facebook/callback")
	assert.Equal(t, "facebook", c.Provider())
}

func TestClient_AuthCodeURL(t *testing.T) {
	c := NewClient("client-id", "secret", "https://questforge.example/auth/facebook/callback")

	raw := c.AuthCodeURL("st-123")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "www.facebook.com", u.Host)

	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "st-123", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "https://questforge.example/auth/facebook/callback", q.Get("redirect_uri"))
	assert.Equal(t, "email", q.Get("scope"))
}
