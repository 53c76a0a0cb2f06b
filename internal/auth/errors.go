// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package auth

import "errors"

// ErrNotFound is returned by repositories when no record matches.
var ErrNotFound = errors.New("not found")

// Duplicate-key sentinels returned by UserRepository.Create when a
// unique constraint rejects the insert.
var (
	ErrDuplicateEmail    = errors.New("email already taken")
	ErrDuplicateUsername = errors.New("username already taken")
)

// Error codes for the closed failure set. Every error leaving this
// package carries exactly one of these oops codes; the HTTP boundary
// maps codes to status codes and the Public() message to the response
// body. None of them is retried internally.
const (
	// CodeMissingCredentials: the API key pair is incomplete.
	CodeMissingCredentials = "AUTH_MISSING_CREDENTIALS"
	// CodeNoSession: the session carries no authenticated user.
	CodeNoSession = "AUTH_NO_SESSION"
	// CodeUserNotFound: no user matched the supplied identity.
	CodeUserNotFound = "AUTH_USER_NOT_FOUND"
	// CodeIncorrectPassword: second-phase login lookup matched nothing.
	CodeIncorrectPassword = "AUTH_INCORRECT_PASSWORD"
	// CodeDuplicateEmail: registration email already taken.
	CodeDuplicateEmail = "AUTH_DUPLICATE_EMAIL"
	// CodeDuplicateUsername: registration username already taken.
	CodeDuplicateUsername = "AUTH_DUPLICATE_USERNAME"
	// CodeValidation: a request failed an input check.
	CodeValidation = "AUTH_VALIDATION"
	// CodeOAuthUnregistered: manual OAuth login for an unlinked
	// provider identity. This path never auto-creates accounts.
	CodeOAuthUnregistered = "AUTH_OAUTH_UNREGISTERED"
	// CodeResetUnknownEmail: password reset for an unknown address.
	CodeResetUnknownEmail = "AUTH_RESET_UNKNOWN_EMAIL"
	// CodePasswordMismatch: password change confirmation mismatch.
	CodePasswordMismatch = "AUTH_PASSWORD_MISMATCH"
	// CodeOldPasswordIncorrect: password change old-password check.
	CodeOldPasswordIncorrect = "AUTH_OLD_PASSWORD_INCORRECT"
	// CodeStorage: the user store itself failed.
	CodeStorage = "STORAGE_FAILED"
)
