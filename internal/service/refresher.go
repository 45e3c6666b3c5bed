package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/snippet-box/internal/reconcile"
)

// refresherTarget is the part of SnippetService the Refresher drives.
type refresherTarget interface {
	Refresh(ctx context.Context) (reconcile.Result, error)
}

// Refresher re-merges the external snippet list on an interval and on demand.
type Refresher struct {
	target   refresherTarget
	interval time.Duration
	logger   *slog.Logger
	trigger  chan struct{}
}

// NewRefresher returns a Refresher. An interval <= 0 disables the ticker, so
// only Trigger causes refreshes.
func NewRefresher(target refresherTarget, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		target:   target,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests a refresh without waiting for it. Triggers that arrive
// while one is already queued are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Start runs the refresh loop until ctx is canceled.
func (r *Refresher) Start(ctx context.Context) {
	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	r.logger.Info("snippet refresher started", slog.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("snippet refresher stopped")
			return
		case <-tick:
			r.run(ctx, "interval")
		case <-r.trigger:
			r.run(ctx, "trigger")
		}
	}
}

func (r *Refresher) run(ctx context.Context, reason string) {
	res, err := r.target.Refresh(ctx)
	if err != nil {
		r.logger.Warn("background refresh failed",
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Debug("background refresh done",
		slog.String("reason", reason),
		slog.Int("imported", res.Imported),
	)
}
