// Package workers implements the seven periodic background loops that drive
// signals from ingestion through decisioning, execution, and exit.
// The ticker-with-immediate-first-run shape is grounded on the teacher's
// core.Engine.positionMonitorLoop: a goroutine holding a time.Ticker, select
// on a stop channel and the ticker, running the work function once before
// the first tick fires.
package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// runLoop runs fn immediately, then again on every tick, until ctx is
// cancelled. Every worker's Run method is a thin wrapper around this.
func runLoop(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context)) {
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("worker", name).Msg("worker stopped")
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
