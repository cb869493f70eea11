package watch

// scheduler.go provides the fixed-interval trigger.
//
// Filesystem events are not delivered for every kind of mount (network
// shares, some container volumes). Polling on a fixed interval covers those.

import (
	"context"
	"log/slog"
	"time"
)

// Poll calls fn every interval until ctx is cancelled. The first call
// happens after one interval. Errors are logged and polling continues.
func Poll(ctx context.Context, interval time.Duration, fn RunFunc) {
	slog.Info("poll scheduler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poll scheduler stopped")
			return
		case <-ticker.C:
			start := time.Now()
			if err := fn(ctx); err != nil {
				slog.Error("scheduled run failed", "error", err)
				continue
			}
			slog.Debug("scheduled run completed", "duration_ms", time.Since(start).Milliseconds())
		}
	}
}
