// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

// Package oauth exchanges authorization codes for user profiles.
package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/samber/oops"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/questforge/questforge/internal/auth"
)

// profileURL is the Graph API endpoint for the authenticated user.
const profileURL = "https://graph.facebook.com/me?fields=id,name,email"

// maxProfileBody caps the profile response read.
const maxProfileBody = 1 << 20

// Client drives the Facebook authorization-code flow.
type Client struct {
	conf *oauth2.Config
}

// NewClient creates a Client. redirectURL is the absolute callback URL
// registered with the provider.
func NewClient(clientID, clientSecret, redirectURL string) *Client {
	return &Client{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"email"},
			Endpoint:     facebook.Endpoint,
		},
	}
}

// Provider returns the provider name used in stored profiles.
func (c *Client) Provider() string {
	return "facebook"
}

// AuthCodeURL returns the provider consent page URL for the given
// anti-forgery state.
func (c *Client) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

// FetchProfile exchanges an authorization code and fetches the user's
// profile.
func (c *Client) FetchProfile(ctx context.Context, code string) (auth.OAuthProfile, error) {
	errb := oops.Code("OAUTH_EXCHANGE_FAILED").With("provider", c.Provider())

	token, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return auth.OAuthProfile{}, errb.
			Public("Could not verify your Facebook login.").
			Wrap(err)
	}

	httpClient := c.conf.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, nil)
	if err != nil {
		return auth.OAuthProfile{}, errb.Wrap(err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return auth.OAuthProfile{}, errb.
			Public("Could not verify your Facebook login.").
			Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return auth.OAuthProfile{}, errb.
			With("status", resp.StatusCode).
			Public("Could not verify your Facebook login.").
			Errorf("profile fetch returned %d", resp.StatusCode)
	}

	var payload struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBody)).Decode(&payload); err != nil {
		return auth.OAuthProfile{}, errb.
			Public("Could not verify your Facebook login.").
			Wrap(err)
	}
	if payload.ID == "" {
		return auth.OAuthProfile{}, errb.
			Public("Could not verify your Facebook login.").
			Errorf("profile response missing id")
	}

	return auth.OAuthProfile{
		Provider: c.Provider(),
		UserID:   payload.ID,
		Email:    payload.Email,
		Name:     payload.Name,
	}, nil
}
