package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const purgeTimeout = 2 * time.Minute

// GarbageCollector drops dead-lettered jobs once they are older than the
// retention period. Failed sweeps and calendar publishes stay inspectable in
// the DLQ until then.
type GarbageCollector struct {
	purger    DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

func NewGarbageCollector(purger DLQPurger, interval, retention time.Duration, log *zap.Logger) *GarbageCollector {
	if log == nil {
		log = zap.NewNop()
	}
	return &GarbageCollector{purger: purger, interval: interval, retention: retention, logger: log}
}

// Start purges immediately and then every interval. It returns ctx.Err()
// once ctx is done; purge failures are logged and retried next tick.
func (gc *GarbageCollector) Start(ctx context.Context) error {
	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()

	for {
		purged, err := gc.purge(ctx)
		switch {
		case err != nil:
			gc.logger.Error("dlq_purge_failed", zap.Error(err))
		case purged > 0:
			gc.logger.Info("dlq_purged",
				zap.Int("count", purged),
				zap.Duration("retention", gc.retention),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (gc *GarbageCollector) purge(ctx context.Context) (int, error) {
	if gc.purger == nil || ctx.Err() != nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	n, err := gc.purger.PurgeOlderThan(ctx, gc.retention)
	if err != nil {
		return n, fmt.Errorf("failed to purge dead letters: %w", err)
	}
	return n, nil
}
