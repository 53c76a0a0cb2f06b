// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package auth

import "context"

type contextKey int

const (
	identityKey contextKey = iota
	sessionKey
)

// WithIdentity publishes an authenticated identity into the request
// context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity published by request
// authentication, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	return identity, ok
}

// WithSession attaches the request's session to the context.
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext returns the request's session, if any.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionKey).(*Session)
	return session, ok
}
