package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunSweeper deletes expired sessions once immediately and then every interval until ctx is done.
// Failures are logged and retried on the next tick.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := s.SweepExpired(ctx)
		switch {
		case err != nil:
			s.log.Warn("session sweep failed", zap.Error(err))
		case n > 0:
			s.log.Info("expired sessions swept", zap.Int64("count", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
