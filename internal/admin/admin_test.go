// Copyright 2025 James Ross
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/flyingrobots/go-redis-work-queue/internal/batchengine"
	"github.com/flyingrobots/go-redis-work-queue/internal/config"
	"github.com/flyingrobots/go-redis-work-queue/internal/orchestrator"
	"github.com/flyingrobots/go-redis-work-queue/internal/queuestore"
	"github.com/flyingrobots/go-redis-work-queue/internal/retrymanager"
	"github.com/flyingrobots/go-redis-work-queue/internal/uploader"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *queuestore.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := queuestore.New(rdb)
	cfg := &config.Config{}
	cfg.Cache.BatchSize = 10
	cfg.Cache.MaxRetry = 3
	cfg.Cache.RetryQueueLimit = 10

	up := uploader.New(cfg, zap.NewNop())
	engine := batchengine.New(store, up, cfg, zap.NewNop())
	retry := retrymanager.New(store, up, cfg, zap.NewNop())
	orch := orchestrator.New(store, engine, retry, zap.NewNop())
	return New(":0", store, orch, zap.NewNop()), store
}

func TestHandleListQueuesReportsLengths(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.AppendHead(context.Background(), queuestore.Pending, "x"))

	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/queues", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var out listQueuesResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, int64(1), out.Queues[queuestore.Pending])
}

func TestHandlePeekReturnsItems(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.AppendHead(context.Background(), "pend", "a"))
	require.NoError(t, store.AppendHead(context.Background(), "pend", "b"))

	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/queues/pend/peek?n=1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var out peekResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, "pend", out.Queue)
	require.Len(t, out.Items, 1)
}

func TestHandlePurgeDeletesQueue(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.AppendHead(context.Background(), "pend", "a"))

	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/queues/pend/purge", nil))
	require.Equal(t, http.StatusOK, w.Code)

	n, err := store.Len(context.Background(), "pend")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestHandleDrivePendingEmptyIsANoop(t *testing.T) {
	srv, _ := newTestServer(t)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/drive/pending", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
