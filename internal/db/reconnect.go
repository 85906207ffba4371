package db

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/unklstewy/hilalscope/pkg/config"
)

// maxBackoff caps the delay between connection attempts.
const maxBackoff = 60 * time.Second

// ConnectWithRetry connects with exponential backoff, which lets the web
// server start before its database is ready.
//
// Parameters:
//   - cfg: Database configuration
//   - maxRetries: Maximum number of connection attempts (0 = until ctx ends)
//   - initialDelay: Initial wait time between attempts
func ConnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration) (*DB, error) {
	delay := initialDelay
	attempt := 0

	for {
		attempt++
		zap.L().Debug("database connection attempt", zap.Int("attempt", attempt), zap.String("host", cfg.Host))

		db, err := Connect(ctx, cfg)
		if err == nil {
			if attempt > 1 {
				zap.L().Info("database connected", zap.Int("attempts", attempt))
			}
			return db, nil
		}

		if maxRetries > 0 && attempt >= maxRetries {
			return nil, eris.Wrapf(err, "failed to connect after %d attempts", attempt)
		}

		zap.L().Warn("database connection failed",
			zap.Error(err),
			zap.Duration("retry_in", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, eris.Wrap(ctx.Err(), "database connection cancelled")
		case <-timer.C:
		}

		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
}

// HealthCheck reports whether the database answers a trivial query.
func HealthCheck(ctx context.Context, db *DB) bool {
	if db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		zap.L().Warn("database health check failed", zap.Error(err))
		return false
	}
	return result == 1
}
