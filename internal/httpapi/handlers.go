// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/questforge/questforge/internal/auth"
)

// stateCookie names the cookie holding the OAuth anti-forgery state.
const stateCookie = "qf_oauth_state"

// frontPath is where browser flows land after OAuth.
const frontPath = "/static/front"

// userPayload is the sanitized user representation. Salt and password
// hash never leave the server.
type userPayload struct {
	ID       string       `json:"id"`
	APIToken string       `json:"apiToken,omitempty"`
	Version  int          `json:"_v"`
	Auth     authPayload  `json:"auth"`
	Stats    auth.Stats   `json:"stats"`
	Habits   []auth.Habit `json:"habits,omitempty"`
	LoggedIn time.Time    `json:"loggedIn"`
}

type authPayload struct {
	Local    *localPayload      `json:"local,omitempty"`
	Facebook *auth.OAuthProfile `json:"facebook,omitempty"`
}

type localPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// sanitizeUser builds the client-visible view of a user. The API token
// is included only where the endpoint issues credentials.
func sanitizeUser(user *auth.User, includeToken bool) userPayload {
	p := userPayload{
		ID:       user.ID.String(),
		Version:  user.Version,
		Stats:    user.GameState.Stats,
		Habits:   user.GameState.Habits,
		LoggedIn: user.LoggedInAt,
	}
	if includeToken {
		p.APIToken = user.APIToken
	}
	if user.Local != nil {
		p.Auth.Local = &localPayload{Username: user.Local.Username, Email: user.Local.Email}
	}
	if user.OAuth != nil && user.OAuth.Provider == "facebook" {
		p.Auth.Facebook = user.OAuth
	}
	return p
}

// handleRegister creates a local account and returns the full sanitized
// user, API token included, so the client can start syncing at once.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username        string `json:"username"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	user, err := s.accounts.Register(r.Context(), auth.RegisterInput{
		Username:        body.Username,
		Email:           body.Email,
		Password:        body.Password,
		ConfirmPassword: body.ConfirmPassword,
	})
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	s.metrics.Registrations.WithLabelValues("local").Inc()

	if session, ok := auth.SessionFromContext(r.Context()); ok {
		session.SetUser(user.ID)
	}

	writeJSON(w, http.StatusOK, sanitizeUser(user, true))
}

// handleLoginLocal authenticates a username/password pair and issues
// the API credential pair.
func (s *Server) handleLoginLocal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	user, err := s.accounts.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	if session, ok := auth.SessionFromContext(r.Context()); ok {
		session.SetUser(user.ID)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":    user.ID.String(),
		"token": user.APIToken,
	})
}

// handleLoginOAuth authenticates a client-submitted provider ID. The
// identifier is taken at face value; only already-linked accounts can
// log in this way, and a miss directs the user to register first.
func (s *Server) handleLoginOAuth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FacebookID string `json:"facebook_id"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	user, err := s.accounts.LoginOAuth(r.Context(), s.oauth.Provider(), body.FacebookID)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	if session, ok := auth.SessionFromContext(r.Context()); ok {
		session.SetUser(user.ID)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":    user.ID.String(),
		"token": user.APIToken,
	})
}

// handleOAuthStart redirects the browser to the provider consent page.
func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateSalt()
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

// handleOAuthCallback completes the provider flow: verify state,
// exchange the code, resolve (or create) the account, and bounce the
// browser to the front page carrying the credential pair.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		s.redirectFrontError(w, r, "OAuth state mismatch, please try again")
		return
	}

	profile, err := s.oauth.FetchProfile(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.redirectFrontError(w, r, publicMessage(err))
		return
	}

	user, err := s.accounts.OAuthCallback(r.Context(), profile)
	if err != nil {
		s.redirectFrontError(w, r, publicMessage(err))
		return
	}

	s.metrics.Registrations.WithLabelValues("oauth").Inc()

	if session, ok := auth.SessionFromContext(r.Context()); ok {
		session.SetUser(user.ID)
	}

	target := fmt.Sprintf("%s%s?_id=%s&apiToken=%s",
		s.baseURL, frontPath, user.ID.String(), url.QueryEscape(user.APIToken))
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) redirectFrontError(w http.ResponseWriter, r *http.Request, message string) {
	target := fmt.Sprintf("%s%s?err=%s", s.baseURL, frontPath, url.QueryEscape(message))
	http.Redirect(w, r, target, http.StatusFound)
}

// handleLogout clears the session's user and sends the browser home.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if session, ok := auth.SessionFromContext(r.Context()); ok {
		session.ClearUser()
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleResetPassword resets the account password and mails the new
// one. The response claims the email was sent; delivery is
// best-effort.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	if err := s.accounts.ResetPassword(r.Context(), body.Email); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	s.metrics.ResetEmails.Inc()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "New password sent to %s", body.Email)
}

// handleChangePassword replaces the password of the session's user.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, s.logger, noIdentityError())
		return
	}

	var body struct {
		OldPassword        string `json:"oldPassword"`
		NewPassword        string `json:"newPassword"`
		ConfirmNewPassword string `json:"confirmNewPassword"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	err := s.accounts.ChangePassword(r.Context(), identity.User,
		body.OldPassword, body.NewPassword, body.ConfirmNewPassword)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{})
}

// handleGetUser returns the sanitized user for an API-key request.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, s.logger, noIdentityError())
		return
	}
	writeJSON(w, http.StatusOK, sanitizeUser(identity.User, false))
}

// handleTouchUser stamps the login time and bumps the version counter.
// Sync clients call it to refresh their local _v after a bypass.
func (s *Server) handleTouchUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeServiceError(w, s.logger, noIdentityError())
		return
	}

	identity.User.LoggedInAt = time.Now()
	if err := s.users.Update(r.Context(), identity.User); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, sanitizeUser(identity.User, false))
}
