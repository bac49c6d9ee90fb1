package server

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

// Purger deletes refresh tokens past their retention window.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper runs the purge on a fixed interval.
type Sweeper struct {
	purger   Purger
	interval time.Duration
	logger   logging.Logger
}

func NewSweeper(p Purger, interval time.Duration, l logging.Logger) *Sweeper {
	return &Sweeper{purger: p, interval: interval, logger: l.With("module", "sweeper")}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// A non-positive interval disables the sweeper.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error(ctx, "sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info(ctx, "expired refresh tokens purged", "count", n)
	}
}
