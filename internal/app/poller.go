package app

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const defaultRevalidateInterval = 6 * time.Minute

// revalidator is a cache that can refresh everything it retains.
type revalidator interface {
	RevalidateAll(ctx context.Context) int
}

// StartRevalidator launches a background goroutine that evicts and refreshes
// the caches at a fixed cadence. It returns immediately; the returned channel
// closes once ctx is cancelled and the goroutine has exited.
func StartRevalidator(ctx context.Context, clk clock.Clock, interval time.Duration, logger *zap.Logger, caches ...revalidator) <-chan struct{} {
	if interval <= 0 {
		interval = defaultRevalidateInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := clk.Ticker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				revalidate(ctx, logger, caches)
			}
		}
	}()
	return done
}

func revalidate(ctx context.Context, logger *zap.Logger, caches []revalidator) {
	started := 0
	for _, c := range caches {
		started += c.RevalidateAll(ctx)
	}
	if started > 0 {
		logger.Debug("revalidation started", zap.Int("fetches", started))
	}
}
