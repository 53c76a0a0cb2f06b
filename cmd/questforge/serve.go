// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/questforge/questforge/internal/auth"
	authpg "github.com/questforge/questforge/internal/auth/postgres"
	"github.com/questforge/questforge/internal/config"
	"github.com/questforge/questforge/internal/httpapi"
	"github.com/questforge/questforge/internal/logging"
	"github.com/questforge/questforge/internal/mail"
	"github.com/questforge/questforge/internal/oauth"
	"github.com/questforge/questforge/internal/observability"
	"github.com/questforge/questforge/internal/stats"
	"github.com/questforge/questforge/internal/store"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the auth API server",
		Long: `Start the HTTP server that handles registration, login, OAuth,
password reset, and request authentication.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	cmd.Flags().String("http-addr", config.DefaultHTTPAddr, "API listen address")
	cmd.Flags().String("metrics-addr", config.DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database-url", "", "PostgreSQL URL (default: DATABASE_URL)")
	cmd.Flags().String("log-format", config.DefaultLogFormat, "log format (json or text)")
	cmd.Flags().String("base-url", config.DefaultBaseURL, "externally visible site URL")
	cmd.Flags().String("smtp-addr", "", "SMTP relay address (empty = log emails instead of sending)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Server, cmd *cobra.Command) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetDefault("questforge", version, cfg.LogFormat)
	logger := slog.Default()

	logger.Info("starting auth server",
		"http_addr", cfg.HTTPAddr,
		"log_format", cfg.LogFormat,
	)

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	logger.Info("connected to database")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Observability first: its registry owns the app metrics.
	obsServer := observability.NewServer(cfg.MetricsAddr, func() bool {
		return pool.Ping(ctx) == nil
	})
	metrics := obsServer.Metrics()

	users := authpg.NewUserRepository(pool)
	sessions := authpg.NewSessionStore(pool)

	var mailer auth.EmailSender
	if cfg.SMTPAddr != "" {
		mailer = mail.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPUser, cfg.SMTPPass)
	} else {
		mailer = mail.NoopSender{Logger: logger}
	}

	refresher := stats.NewRefresher(pool, metrics.Users, logger)

	accounts, err := auth.NewAccountService(auth.AccountServiceConfig{
		Users:     users,
		Factory:   auth.NewDefaultUserFactory(),
		Hasher:    auth.NewPBKDF2Hasher(),
		Mailer:    mailer,
		Stats:     refresher,
		Logger:    logger,
		BaseURL:   cfg.BaseURL,
		EmailFrom: cfg.EmailFrom,
	})
	if err != nil {
		return err
	}

	oauthClient := oauth.NewClient(
		cfg.FacebookClientID,
		cfg.FacebookClientSecret,
		cfg.BaseURL+"/auth/facebook/callback",
	)

	apiServer, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr:          cfg.HTTPAddr,
		BaseURL:       cfg.BaseURL,
		Accounts:      accounts,
		Authenticator: auth.NewAuthenticator(users),
		Users:         users,
		Sessions:      sessions,
		OAuth:         oauthClient,
		Metrics:       metrics,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	apiErrChan, err := apiServer.Start()
	if err != nil {
		return oops.With("operation", "start api server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	if cfg.MetricsAddr != "" {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if stopErr := apiServer.Stop(shutdownCtx); stopErr != nil {
				logger.Warn("failed to stop api server during cleanup", "error", stopErr)
			}
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	// Seed the user gauge before the first registration.
	refresher.RefreshAsync()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Auth server started")
	logger.Info("auth server ready", "addr", apiServer.Addr())

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if cfg.MetricsAddr != "" {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// This ensures that server failures trigger graceful shutdown of the entire process.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
