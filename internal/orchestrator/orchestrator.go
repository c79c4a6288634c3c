// Copyright 2025 James Ross
package orchestrator

import (
	"context"
	"time"

	"github.com/flyingrobots/go-redis-work-queue/internal/batchengine"
	"github.com/flyingrobots/go-redis-work-queue/internal/queuestore"
	"github.com/flyingrobots/go-redis-work-queue/internal/retrymanager"
	"go.uber.org/zap"
)

// Summary is the return shape common to all three drive operations
// (spec.md §4.5): a total count plus an optional error list.
type Summary struct {
	Total     int      `json:"total"`
	Errors    []string `json:"errors,omitempty"`
	IsOverrun bool     `json:"is_overrun,omitempty"`
}

// Orchestrator exposes the three externally-callable drive entry
// points. None of them is safe to invoke concurrently with itself or
// with one another (spec.md §5) — the caller (a cron schedule, a CLI
// command) is responsible for that serialization.
type Orchestrator struct {
	store  *queuestore.Store
	engine *batchengine.Engine
	retry  *retrymanager.Manager
	log    *zap.Logger
}

func New(store *queuestore.Store, engine *batchengine.Engine, retry *retrymanager.Manager, log *zap.Logger) *Orchestrator {
	return &Orchestrator{store: store, engine: engine, retry: retry, log: log}
}

// UploadPending drains pend via pend.work. On a server-error it
// creates a retry queue from the surviving work queue (spec.md §4.5).
func (o *Orchestrator) UploadPending(ctx context.Context) (Summary, error) {
	res, err := o.engine.UploadBatchContinuing(ctx, queuestore.Pending, queuestore.PendingWork)
	summary := Summary{Total: res.Count}
	if res.Error != "" {
		summary.Errors = append(summary.Errors, res.Error)
	}
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		if _, _, cerr := o.retry.CreateFromPendingWork(ctx, time.Now()); cerr != nil {
			return summary, cerr
		}
	}
	return summary, nil
}

// UploadRetrying runs one pass over the retr_* family.
func (o *Orchestrator) UploadRetrying(ctx context.Context) (Summary, error) {
	pr, err := o.retry.RunPass(ctx)
	summary := Summary{Total: pr.Total, Errors: pr.Errors, IsOverrun: pr.IsOverrun}
	if err != nil {
		return summary, err
	}
	return summary, nil
}

// UploadFailing lists fail_* queues ascending and drains each in turn,
// stopping at the first error of any kind (spec.md §4.5).
func (o *Orchestrator) UploadFailing(ctx context.Context) (Summary, error) {
	queues, err := o.store.List(ctx, queuestore.FailPattern)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{}
	for _, q := range queues {
		res, err := o.engine.UploadBatchContinuing(ctx, q, queuestore.FailWork)
		summary.Total += res.Count
		if res.Error != "" {
			summary.Errors = append(summary.Errors, res.Error)
			break
		}
		if err != nil {
			summary.Errors = append(summary.Errors, err.Error())
			break
		}
	}
	return summary, nil
}
