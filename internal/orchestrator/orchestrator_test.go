// Copyright 2025 James Ross
package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/flyingrobots/go-redis-work-queue/internal/batchengine"
	"github.com/flyingrobots/go-redis-work-queue/internal/config"
	"github.com/flyingrobots/go-redis-work-queue/internal/queuestore"
	"github.com/flyingrobots/go-redis-work-queue/internal/retrymanager"
	"github.com/flyingrobots/go-redis-work-queue/internal/uploader"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestOrchestrator(t *testing.T, endpoint string) (*Orchestrator, *queuestore.Store, context.Context) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := queuestore.New(rdb)
	cfg := &config.Config{}
	cfg.Cache.BatchSize = 10
	cfg.Cache.Endpoint.URL = endpoint
	cfg.Cache.Endpoint.AuthToken = "tok"
	cfg.Cache.MaxRetry = 3
	cfg.Cache.RetryQueueLimit = 10
	cfg.Cache.FailTTL = time.Hour

	up := uploader.New(cfg, zap.NewNop())
	engine := batchengine.New(store, up, cfg, zap.NewNop())
	retry := retrymanager.New(store, up, cfg, zap.NewNop())
	return New(store, engine, retry, zap.NewNop()), store, context.Background()
}

func TestUploadPendingServerErrorCreatesRetryQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	orch, store, ctx := newTestOrchestrator(t, srv.URL)
	require.NoError(t, store.AppendHead(ctx, queuestore.Pending, `{"a":1}`))

	summary, err := orch.UploadPending(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, summary.Errors)

	names, err := store.List(ctx, queuestore.RetryPattern)
	require.NoError(t, err)
	require.Len(t, names, 1)
}

func TestUploadFailingStopsAtFirstError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	orch, store, ctx := newTestOrchestrator(t, srv.URL)
	require.NoError(t, store.AppendHead(ctx, "fail_20240101", `{"a":1}`))
	require.NoError(t, store.AppendHead(ctx, "fail_20240102", `{"b":2}`))

	summary, err := orch.UploadFailing(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Total, "the batch that hit the server error still counts toward the total")
	require.NotEmpty(t, summary.Errors)

	n, err := store.Len(ctx, "fail.work")
	require.NoError(t, err)
	require.Equal(t, int64(1), n, "failed batch must remain in fail.work for the next pass")
}
