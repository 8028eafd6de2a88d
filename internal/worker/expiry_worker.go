// Package worker holds background loops started alongside the HTTP server.
package worker

import (
	"context"
	"time"

	"github.com/gradewise/gradewise-backend/internal/clock"
	"github.com/gradewise/gradewise-backend/internal/repository"
	"github.com/rs/zerolog"
)

// ExpiryWorker periodically materializes stale in-progress attempts as
// expired. Expiry is still detected lazily on every access, so the engine
// stays correct with the sweep disabled; the sweep only keeps stored
// statuses honest for instructor-facing listings.
type ExpiryWorker struct {
	attempts *repository.AttemptRepository
	clk      clock.Clock
	interval time.Duration
	grace    time.Duration
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(attempts *repository.AttemptRepository, clk clock.Clock, interval, grace time.Duration, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		attempts: attempts,
		clk:      clk,
		interval: interval,
		grace:    grace,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("ExpiryWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ExpiryWorker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	n, err := w.attempts.ExpireStale(ctx, w.clk.Now(), w.grace)
	if err != nil {
		w.log.Error().Err(err).Msg("Expiry sweep failed")
		return
	}
	if n > 0 {
		w.log.Info().Int64("expired", n).Msg("Materialized stale attempts")
	}
}
