// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package httpapi

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/questforge/questforge/internal/auth"
	"github.com/questforge/questforge/internal/observability"
)

// memUsers is an in-memory auth.UserRepository.
type memUsers struct {
	mu    sync.Mutex
	users map[ulid.ULID]*auth.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[ulid.ULID]*auth.User)}
}

func (m *memUsers) Create(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if user.Local != nil && existing.Local != nil {
			if existing.Local.Email == user.Local.Email {
				return auth.ErrDuplicateEmail
			}
			if existing.Local.Username == user.Local.Username {
				return auth.ErrDuplicateUsername
			}
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memUsers) GetByIDAndToken(_ context.Context, id ulid.ULID, token string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok && user.APIToken == token {
		return user, nil
	}
	return nil, auth.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, auth.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	return m.find(func(u *auth.User) bool {
		return u.Local != nil && u.Local.Email == email
	})
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	return m.find(func(u *auth.User) bool {
		return u.Local != nil && u.Local.Username == username
	})
}

func (m *memUsers) GetByUsernameAndHash(_ context.Context, username, hash string) (*auth.User, error) {
	return m.find(func(u *auth.User) bool {
		return u.Local != nil && u.Local.Username == username && u.Local.HashedPassword == hash
	})
}

func (m *memUsers) GetByProviderID(_ context.Context, provider, providerUserID string) (*auth.User, error) {
	return m.find(func(u *auth.User) bool {
		return u.OAuth != nil && u.OAuth.Provider == provider && u.OAuth.UserID == providerUserID
	})
}

func (m *memUsers) Update(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return auth.ErrNotFound
	}
	user.Version++
	m.users[user.ID] = user
	return nil
}

func (m *memUsers) find(match func(*auth.User) bool) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if match(user) {
			return user, nil
		}
	}
	return nil, auth.ErrNotFound
}

// memSessions is an in-memory auth.SessionStore.
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]auth.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]auth.Session)}
}

func (m *memSessions) Create(_ context.Context, session *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = *session
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[id]; ok {
		return &session, nil
	}
	return nil, auth.ErrNotFound
}

func (m *memSessions) Save(_ context.Context, session *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return auth.ErrNotFound
	}
	m.sessions[session.ID] = *session
	return nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// fakeOAuth implements OAuthClient without talking to a provider.
type fakeOAuth struct {
	profile auth.OAuthProfile
	err     error
}

func (f *fakeOAuth) Provider() string { return "facebook" }

func (f *fakeOAuth) AuthCodeURL(state string) string {
	return "https://provider.example/dialog?state=" + state
}

func (f *fakeOAuth) FetchProfile(context.Context, string) (auth.OAuthProfile, error) {
	if f.err != nil {
		return auth.OAuthProfile{}, f.err
	}
	return f.profile, nil
}

// testEnv bundles a fully wired Server with its backing fakes.
type testEnv struct {
	server   *Server
	users    *memUsers
	sessions *memSessions
	oauth    *fakeOAuth
	hasher   auth.PasswordHasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemUsers()
	sessions := newMemSessions()
	oauthClient := &fakeOAuth{profile: auth.OAuthProfile{
		Provider: "facebook", UserID: "fb-123", Email: "fb@b.com", Name: "Ann",
	}}
	hasher := auth.NewPBKDF2Hasher()

	accounts, err := auth.NewAccountService(auth.AccountServiceConfig{
		Users:     users,
		Factory:   auth.NewDefaultUserFactory(),
		Hasher:    hasher,
		Logger:    slog.Default(),
		BaseURL:   "https://questforge.example",
		EmailFrom: "no-reply@questforge.example",
	})
	require.NoError(t, err)

	server, err := NewServer(ServerConfig{
		Addr:          "127.0.0.1:0",
		BaseURL:       "https://questforge.example",
		Accounts:      accounts,
		Authenticator: auth.NewAuthenticator(users),
		Users:         users,
		Sessions:      sessions,
		OAuth:         oauthClient,
		Metrics:       observability.NewMetrics(prometheus.NewRegistry()),
		Logger:        slog.Default(),
	})
	require.NoError(t, err)

	return &testEnv{
		server:   server,
		users:    users,
		sessions: sessions,
		oauth:    oauthClient,
		hasher:   hasher,
	}
}

// seedLocalUser stores a registered local account directly.
func (e *testEnv) seedLocalUser(t *testing.T, username, email, password string) *auth.User {
	t.Helper()
	salt, err := auth.GenerateSalt()
	require.NoError(t, err)
	token, err := auth.GenerateAPIToken()
	require.NoError(t, err)

	user := auth.NewDefaultUserFactory().NewUser(true)
	user.APIToken = token
	user.Local = &auth.LocalCredentials{
		Username:       username,
		Email:          email,
		Salt:           salt,
		HashedPassword: e.hasher.Hash(password, salt),
	}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}
