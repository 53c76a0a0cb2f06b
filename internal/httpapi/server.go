// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/questforge/questforge/internal/auth"
	"github.com/questforge/questforge/internal/observability"
)

// OAuthClient is the provider flow the server drives. Implemented by
// oauth.Client; faked in tests.
type OAuthClient interface {
	Provider() string
	AuthCodeURL(state string) string
	FetchProfile(ctx context.Context, code string) (auth.OAuthProfile, error)
}

// ServerConfig carries the collaborators for an API server.
type ServerConfig struct {
	Addr          string
	BaseURL       string
	Accounts      *auth.AccountService
	Authenticator *auth.Authenticator
	Users         auth.UserRepository
	Sessions      auth.SessionStore
	OAuth         OAuthClient
	Metrics       *observability.Metrics
	Logger        *slog.Logger
}

// Server is the public HTTP API.
type Server struct {
	addr    string
	baseURL string

	accounts      *auth.AccountService
	authenticator *auth.Authenticator
	users         auth.UserRepository
	sessions      auth.SessionStore
	oauth         OAuthClient
	metrics       *observability.Metrics
	logger        *slog.Logger

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates an API server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Accounts == nil {
		return nil, oops.Errorf("account service is required")
	}
	if cfg.Authenticator == nil {
		return nil, oops.Errorf("authenticator is required")
	}
	if cfg.Users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if cfg.Sessions == nil {
		return nil, oops.Errorf("session store is required")
	}
	if cfg.OAuth == nil {
		return nil, oops.Errorf("oauth client is required")
	}
	if cfg.Metrics == nil {
		return nil, oops.Errorf("metrics are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:          cfg.Addr,
		baseURL:       cfg.BaseURL,
		accounts:      cfg.Accounts,
		authenticator: cfg.Authenticator,
		users:         cfg.Users,
		sessions:      cfg.Sessions,
		oauth:         cfg.OAuth,
		metrics:       cfg.Metrics,
		logger:        logger,
	}, nil
}

// Handler builds the routed handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Browser and credential-issuing endpoints: session-aware, no
	// authentication required.
	mux.Handle("POST /api/v1/register", http.HandlerFunc(s.handleRegister))
	mux.Handle("POST /api/v1/user/auth/local", http.HandlerFunc(s.handleLoginLocal))
	mux.Handle("POST /api/v1/user/auth/facebook", http.HandlerFunc(s.handleLoginOAuth))
	mux.Handle("POST /api/v1/user/reset-password", http.HandlerFunc(s.handleResetPassword))
	mux.Handle("GET /auth/facebook", http.HandlerFunc(s.handleOAuthStart))
	mux.Handle("GET /auth/facebook/callback", http.HandlerFunc(s.handleOAuthCallback))
	mux.Handle("GET /logout", http.HandlerFunc(s.handleLogout))

	// Session-authenticated endpoints.
	mux.Handle("POST /api/v1/user/change-password", s.requireSession(http.HandlerFunc(s.handleChangePassword)))

	// API-key-authenticated endpoints.
	mux.Handle("GET /api/v1/user", s.requireAPIKey(http.HandlerFunc(s.handleGetUser)))
	mux.Handle("PUT /api/v1/user", s.requireAPIKey(http.HandlerFunc(s.handleTouchUser)))

	return s.withSession(mux)
}

// Start begins serving. It returns an error channel that receives any
// server failure and is closed on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := s.httpServer.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown api server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the bound address, or "" when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
