package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiredCloser closes ACTIVE sessions older than maxAge.
type ExpiredCloser interface {
	CloseExpired(ctx context.Context, maxAge time.Duration, now time.Time) (int, error)
}

// StartSessionCloseJob sweeps abandoned sessions: an ACTIVE session the
// teacher never closed is force-closed once it is older than maxAge. A
// maxAge of zero disables the sweeper entirely, preserving sessions that
// stay open until explicitly closed.
func StartSessionCloseJob(ctx context.Context, store ExpiredCloser, maxAge, interval time.Duration, logger *zap.Logger) {
	if maxAge <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				closed, err := store.CloseExpired(ctx, maxAge, time.Now().UTC())
				if err != nil {
					logger.Error("session close sweep failed", zap.Error(err))
					continue
				}
				if closed > 0 {
					logger.Info("closed abandoned sessions", zap.Int("count", closed))
				}
			}
		}
	}()
}
