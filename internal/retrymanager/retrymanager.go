// Copyright 2025 James Ross
package retrymanager

import (
	"context"
	"time"

	"github.com/flyingrobots/go-redis-work-queue/internal/config"
	"github.com/flyingrobots/go-redis-work-queue/internal/obs"
	"github.com/flyingrobots/go-redis-work-queue/internal/queuestore"
	"github.com/flyingrobots/go-redis-work-queue/internal/uploader"
	"go.uber.org/zap"
)

// PassResult summarizes one pass over the retr_* family (spec.md §4.4).
type PassResult struct {
	Total     int
	IsOverrun bool
	Errors    []string
}

// Manager owns the retr_* queue family: attempt counters, promotion
// to fail, and splay pacing that grows with how many queues remain.
type Manager struct {
	store *queuestore.Store
	up    *uploader.Uploader
	cfg   *config.Config
	log   *zap.Logger
}

func New(store *queuestore.Store, up *uploader.Uploader, cfg *config.Config, log *zap.Logger) *Manager {
	return &Manager{store: store, up: up, cfg: cfg, log: log}
}

// CreateFromPendingWork renames pend.work to a fresh retr_{now}_#0
// queue. rename_if_absent guards against the astronomically unlikely
// timestamp collision; on collision the rename fails and the work
// queue is left untouched for the next upload_pending pass to retry
// (spec.md §4.4, §9).
func (m *Manager) CreateFromPendingWork(ctx context.Context, now time.Time) (name string, created bool, err error) {
	name = queuestore.RetryQueueName(now, 0)
	created, err = m.store.RenameIfAbsent(ctx, queuestore.PendingWork, name)
	if err != nil {
		return name, false, err
	}
	if created {
		obs.RetryQueuesCreated.Inc()
		m.log.Warn("created retry queue from pending work", zap.String("queue", name))
	} else {
		obs.RetryRenameCollisions.Inc()
		m.log.Warn("retry queue rename collision, leaving pend.work in place", zap.String("queue", name))
	}
	return name, created, nil
}

// RunPass executes one pass over all retr_* queues as described in
// spec.md §4.4.
func (m *Manager) RunPass(ctx context.Context) (PassResult, error) {
	result := PassResult{}

	queues, err := m.store.List(ctx, queuestore.RetryPattern)
	if err != nil {
		return result, err
	}

	result.IsOverrun = len(queues) >= m.cfg.Cache.RetryQueueLimit
	if result.IsOverrun {
		obs.RetryQueueOverrun.Set(1)
	} else {
		obs.RetryQueueOverrun.Set(0)
	}

	remaining := len(queues)
	for _, q := range queues {
		attempt, ok := queuestore.ParseRetryName(q)
		if !ok {
			obs.UnparseableRetryQueues.Inc()
			m.log.Error("unparseable retry queue name, skipping", zap.String("queue", q))
			continue
		}

		entries, err := m.store.Range(ctx, q, 0, -1)
		if err != nil {
			return result, err
		}

		ok2, msg, upErr := m.up.Upload(ctx, entries, remaining)
		if upErr != nil {
			m.promote(ctx, q, attempt, entries, &result, upErr.Error())
			continue
		}
		if !ok2 {
			result.Errors = append(result.Errors, msg)
			m.log.Warn("retry upload unreachable, stopping pass", zap.String("queue", q))
			break
		}

		if _, err := m.store.Delete(ctx, q); err != nil {
			return result, err
		}
		result.Total += len(entries)
		remaining--
		m.log.Info("retry queue uploaded", zap.String("queue", q), zap.Int("count", len(entries)))
	}

	return result, nil
}

func (m *Manager) promote(ctx context.Context, queue string, attempt int, entries []string, result *PassResult, errMsg string) {
	newAttempt := attempt + 1
	result.Errors = append(result.Errors, errMsg)

	if newAttempt >= m.cfg.Cache.MaxRetry {
		failQueue := queuestore.FailQueueName(time.Now())
		if err := m.store.AtomicPushExpireDelete(ctx, failQueue, entries, m.cfg.Cache.FailTTL, queue); err != nil {
			m.log.Error("promote to fail queue failed", zap.String("queue", queue), zap.Error(err))
			return
		}
		obs.RetryQueuesPromoted.Inc()
		m.log.Warn("max retry reached, promoted to fail queue", zap.String("retry_queue", queue), zap.String("fail_queue", failQueue))
		return
	}

	newName := queuestore.RetryQueueWithAttempt(queue, newAttempt)
	renamed, err := m.store.RenameIfAbsent(ctx, queue, newName)
	if err != nil {
		m.log.Error("advance retry attempt failed", zap.String("queue", queue), zap.Error(err))
		return
	}
	if !renamed {
		obs.RetryRenameCollisions.Inc()
		m.log.Warn("retry attempt rename collision, will retry next pass", zap.String("queue", queue), zap.String("target", newName))
	}
}
