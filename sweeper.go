// sweeper.go
package main

import (
	"context"
	"time"
)

// runSweeper purges expired pending-association markers and stale auth
// nonces: once immediately at boot (the auto-fix pass), then on every tick.
// The sweep is idempotent copy-if-missing-style cleanup, so it runs with no
// coordination against live request handling.
func runSweeper(ctx context.Context, store *Store, interval, ttl time.Duration) {
	sweep := func() {
		sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		markers, err := store.SweepExpired(sweepCtx, ttl)
		if err != nil {
			LogError("Sweep failed: %v", err)
			return
		}
		if markers > 0 {
			LogInfo("🧹 Sweep cleared %d expired markers", markers)
		} else {
			LogDebug("Sweep found nothing to clear")
		}
	}

	sweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
