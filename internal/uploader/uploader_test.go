// Copyright 2025 James Ross
package uploader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flyingrobots/go-redis-work-queue/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(endpoint string) *config.Config {
	cfg := &config.Config{}
	cfg.Cache.Endpoint.URL = endpoint
	cfg.Cache.Endpoint.AuthToken = "tok"
	cfg.Cache.HTTPTimeout = 2 * time.Second
	return cfg
}

func TestUploadSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "token tok", r.Header.Get("authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	up := New(testConfig(srv.URL), zap.NewNop())
	ok, msg, err := up.Upload(context.Background(), []string{`{"a":1}`}, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, msg)
}

func TestUploadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	up := New(testConfig(srv.URL), zap.NewNop())
	ok, _, err := up.Upload(context.Background(), []string{`{"a":1}`}, 1)
	require.False(t, ok)
	require.Error(t, err)

	var serr *ServerError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, http.StatusInternalServerError, serr.StatusCode)
}

func TestUploadTransportFailureNeverReturnsError(t *testing.T) {
	up := New(testConfig("http://127.0.0.1:1"), zap.NewNop())
	ok, msg, err := up.Upload(context.Background(), []string{`{"a":1}`}, 1)
	require.NoError(t, err)
	require.False(t, ok)
	require.NotEmpty(t, msg)
}

func TestUploadNoEndpointConfigured(t *testing.T) {
	up := New(testConfig(""), zap.NewNop())
	ok, msg, err := up.Upload(context.Background(), []string{`{"a":1}`}, 1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, "no endpoint configured", msg)
}

func TestUploadSplayDelayIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Cache.UploadSplay = 1
	up := New(cfg, zap.NewNop())

	start := time.Now()
	_, _, err := up.Upload(context.Background(), []string{`{"a":1}`}, 1)
	require.NoError(t, err)
	_, _, err = up.Upload(context.Background(), []string{`{"a":1}`}, 1)
	require.NoError(t, err)
	require.True(t, time.Since(start) < 3*time.Second, "splay must not exceed upload_splay*splay_factor seconds")
}
