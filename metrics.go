package main

import (
	"context"
	"log/slog"
	"time"

	"parley/server/internal/core"
)

// RunMetrics logs registry stats every interval until ctx is canceled.
func RunMetrics(ctx context.Context, registry *core.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := registry.Stats()
			if stats.Sessions > 0 || stats.Messages > 0 {
				slog.Info("stats",
					"sessions", stats.Sessions,
					"online_users", stats.OnlineUsers,
					"rooms", stats.Rooms,
					"messages", stats.Messages,
					"conversations", stats.Conversations,
					"mailboxes", stats.Mailboxes)
			}
		}
	}
}

// RunRetention purges messages older than retention on a fixed sweep
// interval until ctx is canceled.
func RunRetention(ctx context.Context, registry *core.Registry, retention, sweep time.Duration) {
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.PurgeOlderThan(retention); n > 0 {
				slog.Info("retention sweep", "purged", n, "retention", retention)
			}
		}
	}
}
