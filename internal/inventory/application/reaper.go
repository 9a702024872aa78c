package application

import (
	"context"
	"log/slog"
	"time"
)

type ExpiredReleaser interface {
	ReleaseExpired(ctx context.Context) (int, error)
}

// Reaper periodically returns stock held by lapsed reservations.
type Reaper struct {
	log      *slog.Logger
	releaser ExpiredReleaser
	interval time.Duration
}

func NewReaper(log *slog.Logger, releaser ExpiredReleaser, interval time.Duration) *Reaper {
	return &Reaper{log: log, releaser: releaser, interval: interval}
}

func (r *Reaper) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.log.Info("reaper started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopping")
			return nil
		case <-t.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Reaper) Sweep(ctx context.Context) int {
	n, err := r.releaser.ReleaseExpired(ctx)
	if err != nil {
		r.log.ErrorContext(ctx, "reaper sweep failed", "released", n, "err", err)
		return n
	}
	if n > 0 {
		r.log.InfoContext(ctx, "released expired reservations", "count", n)
	}
	return n
}
