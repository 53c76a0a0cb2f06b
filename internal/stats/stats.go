// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

// Package stats maintains site-wide aggregates.
package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
)

// refreshTimeout bounds a single detached refresh. Requests never wait
// on it, so the only thing the timeout protects is the pool.
const refreshTimeout = 10 * time.Second

// poolIface is the subset of pgxpool.Pool the refresher uses,
// satisfied by pgxmock for tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Refresher recomputes the site_stats row from the users table and
// mirrors the count into a Prometheus gauge.
type Refresher struct {
	pool   poolIface
	gauge  prometheus.Gauge
	logger *slog.Logger
}

// NewRefresher creates a Refresher. gauge and logger may be nil.
func NewRefresher(pool poolIface, gauge prometheus.Gauge, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{pool: pool, gauge: gauge, logger: logger}
}

// RefreshAsync starts a detached, best-effort refresh. There is no
// success guarantee and no way to wait for completion; a failure is
// logged and otherwise invisible to the caller.
func (r *Refresher) RefreshAsync() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := r.Refresh(ctx); err != nil {
			r.logger.Warn("site stats refresh failed", "error", err)
		}
	}()
}

// Refresh recomputes the aggregates synchronously.
func (r *Refresher) Refresh(ctx context.Context) error {
	var count int64
	err := r.pool.QueryRow(ctx, `
		UPDATE site_stats
		SET user_count = (SELECT COUNT(*) FROM users), refreshed_at = NOW()
		WHERE id = 1
		RETURNING user_count
	`).Scan(&count)
	if err != nil {
		return oops.Code("STATS_REFRESH_FAILED").
			With("operation", "update site stats").
			Wrap(err)
	}

	if r.gauge != nil {
		r.gauge.Set(float64(count))
	}
	return nil
}
