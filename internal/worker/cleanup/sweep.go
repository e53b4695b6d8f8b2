// Package cleanup provides the periodic sweep that clears expired refresh tokens.
// A cleared row can no longer be refreshed and needs a fresh sign-in.
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor abstracts ExecContext so *sql.DB and *sql.Tx both fit.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SweepRecorder receives the number of rows cleared by each run.
type SweepRecorder interface {
	RecordRefreshTokensSwept(count int64)
}

const sweepQuery = `UPDATE users
SET refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = now()
WHERE refresh_token_hash IS NOT NULL AND refresh_token_expires_at < now()`

// RefreshTokenSweep clears stored refresh-token hashes whose expiry has passed.
// Runs are idempotent.
type RefreshTokenSweep struct {
	db      Executor
	logger  *slog.Logger
	metrics SweepRecorder
}

// NewRefreshTokenSweep creates a RefreshTokenSweep. metrics may be nil.
func NewRefreshTokenSweep(db Executor, logger *slog.Logger, metrics SweepRecorder) *RefreshTokenSweep {
	return &RefreshTokenSweep{
		db:      db,
		logger:  logger,
		metrics: metrics,
	}
}

// Run executes one sweep.
func (j *RefreshTokenSweep) Run(ctx context.Context) error {
	start := time.Now()

	result, err := j.db.ExecContext(ctx, sweepQuery)
	if err != nil {
		j.logger.Error("refresh token sweep failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to sweep refresh tokens: %w", err)
	}

	cleared, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("failed to read swept row count",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to read swept row count: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordRefreshTokensSwept(cleared)
	}

	j.logger.Info("refresh token sweep completed",
		slog.Int64("cleared_count", cleared),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start runs the sweep once immediately and then every interval until ctx is done.
// Failures are logged and do not stop the loop.
func (j *RefreshTokenSweep) Start(ctx context.Context, interval time.Duration) {
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
