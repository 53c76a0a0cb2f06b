// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/samber/oops"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. The hash must be deterministic for a given
// (password, salt) pair because login re-queries the store by the
// computed hash, so the salt is stored per user instead of being
// embedded in the encoded hash.
const (
	pbkdf2Iterations = 10_000
	pbkdf2KeyLen     = 32

	saltBytes     = 16
	apiTokenBytes = 32
)

// PasswordHasher computes and checks salted password hashes.
type PasswordHasher interface {
	// Hash derives the hex-encoded hash of password under salt.
	Hash(password, salt string) string

	// Verify reports whether password hashes to encoded under salt.
	Verify(password, salt, encoded string) bool
}

// PBKDF2Hasher implements PasswordHasher using PBKDF2-SHA256.
type PBKDF2Hasher struct{}

// NewPBKDF2Hasher creates a new PBKDF2Hasher.
func NewPBKDF2Hasher() *PBKDF2Hasher {
	return &PBKDF2Hasher{}
}

// Hash derives the hex-encoded PBKDF2-SHA256 hash of password under salt.
func (h *PBKDF2Hasher) Hash(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return hex.EncodeToString(key)
}

// Verify reports whether password hashes to encoded under salt.
// Uses constant-time comparison.
func (h *PBKDF2Hasher) Verify(password, salt, encoded string) bool {
	computed := h.Hash(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(encoded)) == 1
}

// GenerateSalt creates a per-user random salt. Also used as the source
// of temporary passwords on reset, matching the account contract that
// a reset password is an opaque random value the user replaces later.
func GenerateSalt() (string, error) {
	return randomHex(saltBytes, "AUTH_SALT_FAILED")
}

// GenerateAPIToken creates a long-lived opaque API token. Issued once
// at account creation; there is no expiry or rotation.
func GenerateAPIToken() (string, error) {
	return randomHex(apiTokenBytes, "AUTH_TOKEN_FAILED")
}

func randomHex(n int, failCode string) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code(failCode).
			With("operation", "crypto/rand.Read").
			With("requested_bytes", n).
			Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

var _ PasswordHasher = (*PBKDF2Hasher)(nil)
