package webhooks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// Sweeper periodically runs InvalidateIfStale over every cached channel on a
// cron schedule. WEBHOOKS_UPDATE events already cover the common case; the
// sweep catches updates missed while the gateway was disconnected.
type Sweeper struct {
	cache *Cache
	expr  string
}

// NewSweeper validates expr and returns a sweeper for cache.
func NewSweeper(cache *Cache, expr string) (*Sweeper, error) {
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid sweep schedule %q", expr)
	}
	return &Sweeper{cache: cache, expr: expr}, nil
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("webhook sweep started", "schedule", s.expr)
	for {
		next, err := gronx.NextTick(s.expr, false)
		if err != nil {
			slog.Error("webhook sweep: next tick", "schedule", s.expr, "error", err)
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("webhook sweep stopped")
			return
		case <-timer.C:
		}

		s.SweepOnce(ctx)
	}
}

// SweepOnce checks every cached channel once and returns how many were checked.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	channels := s.cache.Channels()
	for _, id := range channels {
		if err := s.cache.InvalidateIfStale(ctx, id); err != nil {
			slog.Warn("webhook sweep: check failed", "channel_id", id, "error", err)
		}
	}
	slog.Debug("webhook sweep done", "channels", len(channels))
	return len(channels)
}
