// Copyright 2025 James Ross
package enqueuer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/flyingrobots/go-redis-work-queue/internal/config"
	"github.com/flyingrobots/go-redis-work-queue/internal/entry"
	"github.com/flyingrobots/go-redis-work-queue/internal/obs"
	"github.com/flyingrobots/go-redis-work-queue/internal/queuestore"
	"go.uber.org/zap"
)

// Enqueuer is the producer-side collaborator spec.md §1 keeps out of
// the core: it serializes records and calls QueueStore.AppendHead.
// The core's only contract with it is enqueue(record).
type Enqueuer struct {
	cfg   *config.Config
	store *queuestore.Store
	log   *zap.Logger
}

func New(cfg *config.Config, store *queuestore.Store, log *zap.Logger) *Enqueuer {
	return &Enqueuer{cfg: cfg, store: store, log: log}
}

// Enqueue serializes v as compact JSON and appends it to pend.
func (e *Enqueuer) Enqueue(ctx context.Context, v interface{}) error {
	ent, err := entry.New(v)
	if err != nil {
		return err
	}
	return e.enqueueEntry(ctx, ent)
}

// EnqueueRaw appends an already-serialized JSON document to pend
// without re-marshaling it.
func (e *Enqueuer) EnqueueRaw(ctx context.Context, raw string) error {
	return e.enqueueEntry(ctx, entry.FromRaw(raw))
}

func (e *Enqueuer) enqueueEntry(ctx context.Context, ent entry.Entry) error {
	if err := e.rateLimit(ctx); err != nil {
		return err
	}
	if err := e.store.AppendHead(ctx, queuestore.Pending, ent.String()); err != nil {
		return err
	}
	obs.EntriesEnqueued.Inc()
	return nil
}

// Run walks scan_dir and enqueues the contents of every matching file
// as one entry, grounded on the teacher's directory-walking producer.
func (e *Enqueuer) Run(ctx context.Context) error {
	root := e.cfg.Enqueuer.ScanDir
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	include := e.cfg.Enqueuer.IncludeGlobs
	exclude := e.cfg.Enqueuer.ExcludeGlobs

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			return nil
		}
		if !strings.HasPrefix(abs, absRoot+string(os.PathSeparator)) && abs != absRoot {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		incMatch := len(include) == 0
		for _, g := range include {
			if ok, _ := doublestar.PathMatch(g, rel); ok {
				incMatch = true
				break
			}
		}
		if !incMatch {
			return nil
		}
		for _, g := range exclude {
			if ok, _ := doublestar.PathMatch(g, rel); ok {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			e.log.Warn("skipping unreadable file", zap.String("path", path), zap.Error(readErr))
			return nil
		}
		if err := e.EnqueueRaw(ctx, strings.TrimSpace(string(raw))); err != nil {
			return err
		}
		e.log.Info("enqueued record", zap.String("path", path))
		return nil
	})
}

// rateLimit is a fixed-window limiter identical in shape to the
// teacher's producer.rateLimit: INCR the window key, EXPIRE it on
// first hit, sleep out the remaining TTL if the window is exceeded.
func (e *Enqueuer) rateLimit(ctx context.Context) error {
	if e.cfg.Enqueuer.RateLimitPerSec <= 0 {
		return nil
	}
	key := e.cfg.Enqueuer.RateLimitKey
	n, err := e.store.Incr(ctx, key)
	if err != nil {
		return err
	}
	if n == 1 {
		_ = e.store.Expire(ctx, key, time.Second)
	}
	if int(n) > e.cfg.Enqueuer.RateLimitPerSec {
		ttl, err := e.store.TTL(ctx, key)
		if err == nil && ttl > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(ttl):
			}
		}
	}
	return nil
}
