package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/staydex/internal/metrics"
)

// SweepTarget names one store for the periodic sweep.
type SweepTarget struct {
	Name  string
	Store Sweeper
}

// PeriodicSweeper removes expired rows from every target on a fixed interval.
type PeriodicSweeper struct {
	targets  []SweepTarget
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewPeriodicSweeper creates a sweeper over targets.
func NewPeriodicSweeper(interval time.Duration, logger *zap.Logger, targets ...SweepTarget) *PeriodicSweeper {
	return &PeriodicSweeper{
		targets:  targets,
		interval: interval,
		now:      time.Now,
		logger:   logger.With(zap.String("component", "sweeper")),
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *PeriodicSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Warn("Sweep finished with errors", zap.Error(err))
			}
		}
	}
}

// SweepOnce sweeps all targets concurrently. A failing target does not stop the others.
func (s *PeriodicSweeper) SweepOnce(ctx context.Context) error {
	now := s.now()
	var g errgroup.Group

	for _, t := range s.targets {
		g.Go(func() error {
			n, err := t.Store.Sweep(ctx, now)
			if n > 0 {
				metrics.CacheSweptTotal.WithLabelValues(t.Name).Add(float64(n))
				s.logger.Debug("Swept expired rows", zap.String("table", t.Name), zap.Int("removed", n))
			}
			if err != nil {
				return fmt.Errorf("sweep %s: %w", t.Name, err)
			}
			return nil
		})
	}
	return g.Wait() //nolint:wrapcheck // each goroutine wraps its own error
}
