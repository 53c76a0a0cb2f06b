// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// fakeUsers implements UserRepository with overridable functions. Any
// lookup without an override reports a miss; Create and Update without
// an override succeed.
type fakeUsers struct {
	createFn               func(ctx context.Context, user *User) error
	getByIDAndTokenFn      func(ctx context.Context, id ulid.ULID, token string) (*User, error)
	getByIDFn              func(ctx context.Context, id ulid.ULID) (*User, error)
	getByEmailFn           func(ctx context.Context, email string) (*User, error)
	getByUsernameFn        func(ctx context.Context, username string) (*User, error)
	getByUsernameAndHashFn func(ctx context.Context, username, hash string) (*User, error)
	getByProviderIDFn      func(ctx context.Context, provider, providerUserID string) (*User, error)
	updateFn               func(ctx context.Context, user *User) error

	calls []string
}

func (f *fakeUsers) Create(ctx context.Context, user *User) error {
	f.calls = append(f.calls, "Create")
	if f.createFn != nil {
		return f.createFn(ctx, user)
	}
	return nil
}

func (f *fakeUsers) GetByIDAndToken(ctx context.Context, id ulid.ULID, token string) (*User, error) {
	f.calls = append(f.calls, "GetByIDAndToken")
	if f.getByIDAndTokenFn != nil {
		return f.getByIDAndTokenFn(ctx, id, token)
	}
	return nil, ErrNotFound
}

func (f *fakeUsers) GetByID(ctx context.Context, id ulid.ULID) (*User, error) {
	f.calls = append(f.calls, "GetByID")
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, ErrNotFound
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*User, error) {
	f.calls = append(f.calls, "GetByEmail")
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return nil, ErrNotFound
}

func (f *fakeUsers) GetByUsername(ctx context.Context, username string) (*User, error) {
	f.calls = append(f.calls, "GetByUsername")
	if f.getByUsernameFn != nil {
		return f.getByUsernameFn(ctx, username)
	}
	return nil, ErrNotFound
}

func (f *fakeUsers) GetByUsernameAndHash(ctx context.Context, username, hash string) (*User, error) {
	f.calls = append(f.calls, "GetByUsernameAndHash")
	if f.getByUsernameAndHashFn != nil {
		return f.getByUsernameAndHashFn(ctx, username, hash)
	}
	return nil, ErrNotFound
}

func (f *fakeUsers) GetByProviderID(ctx context.Context, provider, providerUserID string) (*User, error) {
	f.calls = append(f.calls, "GetByProviderID")
	if f.getByProviderIDFn != nil {
		return f.getByProviderIDFn(ctx, provider, providerUserID)
	}
	return nil, ErrNotFound
}

func (f *fakeUsers) Update(ctx context.Context, user *User) error {
	f.calls = append(f.calls, "Update")
	if f.updateFn != nil {
		return f.updateFn(ctx, user)
	}
	user.Version++
	return nil
}

var _ UserRepository = (*fakeUsers)(nil)

// capturingMailer records every Send call.
type capturingMailer struct {
	sends []capturedEmail
	err   error
}

type capturedEmail struct {
	from, to, subject, text, html string
}

func (m *capturingMailer) Send(_ context.Context, from, to, subject, text, html string) error {
	m.sends = append(m.sends, capturedEmail{from, to, subject, text, html})
	return m.err
}

// countingStats records RefreshAsync calls.
type countingStats struct {
	refreshes int
}

func (s *countingStats) RefreshAsync() {
	s.refreshes++
}
