// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// EmailSender delivers account emails. Best-effort from this package's
// perspective: reset emails are sent after the account is already
// updated, and a delivery failure does not fail the request.
type EmailSender interface {
	Send(ctx context.Context, from, to, subject, text, html string) error
}

// StatsRefresher triggers the site-wide statistics refresh.
type StatsRefresher interface {
	// RefreshAsync starts a detached, best-effort refresh. Callers
	// must not assume it has completed, or ever will.
	RefreshAsync()
}

// AccountService implements credential issuance: registration, login,
// OAuth linking, password reset, and password change.
type AccountService struct {
	users   UserRepository
	factory NewUserFactory
	hasher  PasswordHasher
	mailer  EmailSender
	stats   StatsRefresher
	logger  *slog.Logger

	baseURL   string
	emailFrom string
}

// AccountServiceConfig carries the collaborators and settings for an
// AccountService.
type AccountServiceConfig struct {
	Users   UserRepository
	Factory NewUserFactory
	Hasher  PasswordHasher
	Mailer  EmailSender
	Stats   StatsRefresher
	Logger  *slog.Logger

	// BaseURL is the public site URL used in account emails and OAuth
	// guidance messages.
	BaseURL string
	// EmailFrom is the sender address for account emails.
	EmailFrom string
}

// NewAccountService creates a new AccountService.
func NewAccountService(cfg AccountServiceConfig) (*AccountService, error) {
	if cfg.Users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if cfg.Factory == nil {
		return nil, oops.Errorf("new-user factory is required")
	}
	if cfg.Hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		users:     cfg.Users,
		factory:   cfg.Factory,
		hasher:    cfg.Hasher,
		mailer:    cfg.Mailer,
		stats:     cfg.Stats,
		logger:    logger,
		baseURL:   cfg.BaseURL,
		emailFrom: cfg.EmailFrom,
	}, nil
}

// RegisterInput is the registration request payload.
type RegisterInput struct {
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
}

// Register creates a local account. Uniqueness is checked email first,
// then username; the first collision found aborts, so the reported
// error depends on that order.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if in.Username == "" || in.Password == "" || in.Email == "" {
		return nil, oops.Code(CodeValidation).
			Public(":username, :email, :password, :confirmPassword required").
			Errorf("registration field missing")
	}
	if in.Password != in.ConfirmPassword {
		return nil, oops.Code(CodeValidation).
			Public(":password and :confirmPassword don't match").
			Errorf("password confirmation mismatch")
	}
	if err := ValidateEmail(in.Email); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, duplicateEmailError(in.Email)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, storeError(err, "get user by email")
	}

	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return nil, duplicateUsernameError(in.Username)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, storeError(err, "get user by username")
	}

	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	token, err := GenerateAPIToken()
	if err != nil {
		return nil, err
	}

	user := s.factory.NewUser(true)
	user.APIToken = token
	user.Local = &LocalCredentials{
		Username:       in.Username,
		Email:          in.Email,
		Salt:           salt,
		HashedPassword: s.hasher.Hash(in.Password, salt),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, s.createError(err, in.Email, in.Username)
	}

	// Detached statistics refresh; the response never waits for it.
	if s.stats != nil {
		s.stats.RefreshAsync()
	}

	return user, nil
}

// Login authenticates a username/password pair and returns the user,
// whose ID and API token form the bearer credential pair this endpoint
// issues. No session is created here.
//
// The lookup is two-phase: the salt is per-user, so the hash cannot be
// computed before the first fetch reveals which salt to use.
func (s *AccountService) Login(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, oops.Code(CodeValidation).
			Public("Missing :username or :password in request body, please provide both").
			Errorf("login field missing")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUserNotFound).
				Public(fmt.Sprintf("Username '%s' not found. Usernames are case-sensitive, click 'Forgot Password' if you can't remember the capitalization.", username)).
				With("username", username).
				Wrap(ErrNotFound)
		}
		return nil, storeError(err, "get user by username")
	}

	hashed := s.hasher.Hash(password, user.Local.Salt)
	user, err = s.users.GetByUsernameAndHash(ctx, username, hashed)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeIncorrectPassword).
				Public("Incorrect password").
				With("username", username).
				Wrap(ErrNotFound)
		}
		return nil, storeError(err, "get user by username and hash")
	}
	return user, nil
}

// LoginOAuth authenticates a provider-issued identifier submitted
// directly by the client. Unlike the callback path it never creates an
// account on a miss.
func (s *AccountService) LoginOAuth(ctx context.Context, provider, providerUserID string) (*User, error) {
	if providerUserID == "" {
		return nil, oops.Code(CodeValidation).
			Public(fmt.Sprintf("No %s id provided", provider)).
			Errorf("missing provider user id")
	}

	user, err := s.users.GetByProviderID(ctx, provider, providerUserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeOAuthUnregistered).
				Public(fmt.Sprintf("Please register with %s at %s, then come back here and log in.", provider, s.baseURL)).
				With("provider", provider).
				Wrap(ErrNotFound)
		}
		return nil, storeError(err, "get user by provider id")
	}
	return user, nil
}

// OAuthCallback resolves a provider-verified profile to a user,
// creating the account on first login.
func (s *AccountService) OAuthCallback(ctx context.Context, profile OAuthProfile) (*User, error) {
	user, err := s.users.GetByProviderID(ctx, profile.Provider, profile.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, storeError(err, "get user by provider id")
	}

	token, err := GenerateAPIToken()
	if err != nil {
		return nil, err
	}

	user = s.factory.NewUser(true)
	user.APIToken = token
	user.OAuth = &profile

	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeError(err, "create oauth user")
	}
	return user, nil
}

// ResetPassword replaces the account's salt and password with fresh
// random values and emails the new password to the user in cleartext.
// Delivery is best-effort: the account is already updated when the
// email goes out, and a send failure is logged, not returned.
func (s *AccountService) ResetPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeResetUnknownEmail).
				Public(fmt.Sprintf("Couldn't find a user registered for email %s", email)).
				With("email", email).
				Wrap(ErrNotFound)
		}
		return storeError(err, "get user by email")
	}
	if user.Local == nil {
		return oops.Code(CodeResetUnknownEmail).
			Public(fmt.Sprintf("Couldn't find a user registered for email %s", email)).
			With("email", email).
			Wrap(ErrNotFound)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return err
	}
	newPassword, err := GenerateSalt()
	if err != nil {
		return err
	}

	user.Local.Salt = salt
	user.Local.HashedPassword = s.hasher.Hash(newPassword, salt)

	if err := s.users.Update(ctx, user); err != nil {
		return storeError(err, "update user password")
	}

	if s.mailer != nil {
		subject := "Password Reset for QuestForge"
		text := fmt.Sprintf("Password for %s has been reset to %s. Log in at %s",
			user.Local.Username, newPassword, s.baseURL)
		html := fmt.Sprintf("Password for <strong>%s</strong> has been reset to <strong>%s</strong>. Log in at %s",
			user.Local.Username, newPassword, s.baseURL)
		sendCtx := context.WithoutCancel(ctx)
		if err := s.mailer.Send(sendCtx, s.emailFrom, email, subject, text, html); err != nil {
			s.logger.Warn("reset email delivery failed", "email", email, "error", err)
		}
	}

	return nil
}

// ChangePassword replaces the stored hash for an already-authenticated
// user. The salt is left unchanged.
func (s *AccountService) ChangePassword(ctx context.Context, user *User, oldPassword, newPassword, confirmNewPassword string) error {
	if newPassword != confirmNewPassword {
		return oops.Code(CodePasswordMismatch).
			Public("Password & Confirm don't match").
			Errorf("password confirmation mismatch")
	}
	if user.Local == nil {
		return oops.Code(CodeValidation).
			Public("Account has no local password").
			Errorf("change password on non-local account")
	}
	if !s.hasher.Verify(oldPassword, user.Local.Salt, user.Local.HashedPassword) {
		return oops.Code(CodeOldPasswordIncorrect).
			Public("Old password doesn't match").
			Errorf("old password mismatch")
	}

	user.Local.HashedPassword = s.hasher.Hash(newPassword, user.Local.Salt)
	if err := s.users.Update(ctx, user); err != nil {
		return storeError(err, "update user password")
	}
	return nil
}

// createError maps persistence-level duplicate collisions (a race the
// sequential pre-checks cannot close) onto the same duplicate errors.
func (s *AccountService) createError(err error, email, username string) error {
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		return duplicateEmailError(email)
	case errors.Is(err, ErrDuplicateUsername):
		return duplicateUsernameError(username)
	default:
		return storeError(err, "create user")
	}
}

func duplicateEmailError(email string) error {
	return oops.Code(CodeDuplicateEmail).
		Public("Email already taken").
		With("email", email).
		Wrap(ErrDuplicateEmail)
}

func duplicateUsernameError(username string) error {
	return oops.Code(CodeDuplicateUsername).
		Public("Username already taken").
		With("username", username).
		Wrap(ErrDuplicateUsername)
}
