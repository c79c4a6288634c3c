// Copyright 2025 James Ross
package batchengine

import (
	"context"

	"github.com/flyingrobots/go-redis-work-queue/internal/config"
	"github.com/flyingrobots/go-redis-work-queue/internal/obs"
	"github.com/flyingrobots/go-redis-work-queue/internal/queuestore"
	"github.com/flyingrobots/go-redis-work-queue/internal/uploader"
	"go.uber.org/zap"
)

// Result mirrors the original's {count, error?} return shape (spec.md
// §4.3). Error is the transport-failure message; a server-error is
// returned as a Go error instead, since it must propagate to the
// caller rather than being absorbed into the queue state.
type Result struct {
	Count int
	Error string
}

// Engine implements the two BatchEngine operations from spec.md §4.3.
type Engine struct {
	store *queuestore.Store
	up    *uploader.Uploader
	cfg   *config.Config
	log   *zap.Logger
}

func New(store *queuestore.Store, up *uploader.Uploader, cfg *config.Config, log *zap.Logger) *Engine {
	return &Engine{store: store, up: up, cfg: cfg, log: log}
}

// UploadBatch moves one batch from source to work and uploads it.
//
//   - empty source/work -> {Count: 0}, nil
//   - upload succeeds    -> work deleted, {Count: len(batch)}, nil
//   - transport failure  -> work left intact, {Count: len(batch), Error: msg}, nil
//   - server-error       -> propagates as the returned error; work is
//     left in place for the caller to promote (spec.md §4.4)
func (e *Engine) UploadBatch(ctx context.Context, source, work string) (Result, error) {
	batch, err := e.store.DequeueBatch(ctx, source, work, e.cfg.Cache.BatchSize)
	if err != nil {
		return Result{}, err
	}
	if len(batch) == 0 {
		return Result{Count: 0}, nil
	}

	ok, msg, err := e.up.Upload(ctx, batch, 1)
	if err != nil {
		// server-error: propagate, leave work queue in place.
		return Result{Count: len(batch)}, err
	}
	if ok {
		if _, delErr := e.store.Delete(ctx, work); delErr != nil {
			e.log.Error("delete work queue failed", zap.String("queue", work), zap.Error(delErr))
		}
		obs.EntriesUploaded.Add(float64(len(batch)))
		e.log.Info("uploaded batch", zap.String("source", source), zap.Int("count", len(batch)))
		return Result{Count: len(batch)}, nil
	}

	e.log.Warn("transient upload failure", zap.String("source", source), zap.String("error", msg))
	return Result{Count: len(batch), Error: msg}, nil
}

// UploadBatchContinuing repeatedly drains source until either an
// error surfaces or the last batch was smaller than batch_size.
func (e *Engine) UploadBatchContinuing(ctx context.Context, source, work string) (Result, error) {
	total := Result{}

	res, err := e.UploadBatch(ctx, source, work)
	total.Count += res.Count
	if err != nil {
		return total, err
	}
	if res.Error != "" {
		total.Error = res.Error
		return total, nil
	}

	for res.Count == e.cfg.Cache.BatchSize {
		res, err = e.UploadBatch(ctx, source, work)
		total.Count += res.Count
		if err != nil {
			return total, err
		}
		if res.Error != "" {
			total.Error = res.Error
			break
		}
	}
	return total, nil
}
