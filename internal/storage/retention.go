package storage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunRetentionCleaner deletes records older than retention once an hour
// until ctx is done. A non-positive retention disables it.
func RunRetentionCleaner(ctx context.Context, store *Store, retention time.Duration, logger *zap.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Prune(ctx, store.now().Add(-retention))
			if err != nil {
				logger.Error("Error pruning usage records", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("Pruned usage records", zap.Int64("rows", n))
			}
		}
	}
}
