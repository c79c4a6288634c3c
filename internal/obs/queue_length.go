// Copyright 2025 James Ross
package obs

import (
	"context"
	"time"

	"github.com/flyingrobots/go-redis-work-queue/internal/queuestore"
	"go.uber.org/zap"
)

// StartQueueLengthUpdater periodically samples every queue the store
// currently knows about (pend, the work queues, and every retr_*/
// fail_* queue) and publishes it on the queue_length gauge.
func StartQueueLengthUpdater(ctx context.Context, store *queuestore.Store, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sampleOnce(ctx, store, log)
			}
		}
	}()
}

func sampleOnce(ctx context.Context, store *queuestore.Store, log *zap.Logger) {
	names := []string{queuestore.Pending, queuestore.PendingWork, queuestore.FailWork}
	retryNames, err := store.List(ctx, queuestore.RetryPattern)
	if err != nil {
		log.Debug("queue length poll error", String("pattern", queuestore.RetryPattern), Err(err))
	} else {
		names = append(names, retryNames...)
	}
	failNames, err := store.List(ctx, queuestore.FailPattern)
	if err != nil {
		log.Debug("queue length poll error", String("pattern", queuestore.FailPattern), Err(err))
	} else {
		names = append(names, failNames...)
	}

	for _, q := range names {
		n, err := store.Len(ctx, q)
		if err != nil {
			log.Debug("queue length poll error", String("queue", q), Err(err))
			continue
		}
		QueueLength.WithLabelValues(q).Set(float64(n))
	}
}
