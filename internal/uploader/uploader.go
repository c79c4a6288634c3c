// Copyright 2025 James Ross
package uploader

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/flyingrobots/go-redis-work-queue/internal/config"
	"github.com/flyingrobots/go-redis-work-queue/internal/obs"
	"go.uber.org/zap"
)

// Uploader is the HTTP transport capability from spec.md §4.2. It
// owns exactly one piece of mutable state — the last-upload
// timestamp used for splay pacing — matching the original Python
// agent's self.upload_timer; safe only under the single-worker
// contract described in spec.md §5.
type Uploader struct {
	cfg    *config.Config
	client *http.Client
	log    *zap.Logger

	mu         sync.Mutex
	lastUpload time.Time
	hasUploaded bool
}

// New builds an Uploader against the configured endpoint. No
// ecosystem HTTP client library is pulled in here — see DESIGN.md for
// why net/http.Client is the grounded choice for this concern.
func New(cfg *config.Config, log *zap.Logger) *Uploader {
	return &Uploader{
		cfg: cfg,
		log: log,
		client: &http.Client{
			Timeout: cfg.Cache.HTTPTimeout,
		},
	}
}

// Upload POSTs entries as a JSON array and classifies the response
// per spec.md §4.2:
//   - 2xx                 -> (true, "", nil)
//   - non-2xx             -> (false, "", *ServerError)
//   - transport exception -> (false, message, nil)
//   - no endpoint         -> (false, "no endpoint configured", nil)
func (u *Uploader) Upload(ctx context.Context, entries []string, splayFactor int) (bool, string, error) {
	if u.cfg.Cache.Endpoint.URL == "" {
		obs.UploadAttempts.WithLabelValues("no_endpoint").Inc()
		return false, "no endpoint configured", nil
	}
	if splayFactor < 1 {
		splayFactor = 1
	}

	u.pace(ctx, splayFactor)
	defer u.markUploaded()

	body := "[" + strings.Join(entries, ", ") + "]"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.cfg.Cache.Endpoint.URL, strings.NewReader(body))
	if err != nil {
		return false, err.Error(), nil
	}
	req.Header.Set("authorization", "token "+u.cfg.Cache.Endpoint.AuthToken)
	req.Header.Set("content-type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		obs.UploadAttempts.WithLabelValues("transport_error").Inc()
		return false, err.Error(), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		obs.UploadAttempts.WithLabelValues("ok").Inc()
		return true, "", nil
	}

	obs.UploadAttempts.WithLabelValues("server_error").Inc()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return false, "", &ServerError{StatusCode: resp.StatusCode, Body: string(respBody)}
}

// pace sleeps for a random 0..upload_splay delay (multiplied by
// splayFactor) if the previous upload completed within that window.
func (u *Uploader) pace(ctx context.Context, splayFactor int) {
	u.mu.Lock()
	last := u.lastUpload
	hasUploaded := u.hasUploaded
	u.mu.Unlock()

	if u.cfg.Cache.UploadSplay <= 0 {
		return
	}
	delay := time.Duration(rand.Intn(u.cfg.Cache.UploadSplay+1)) * time.Duration(splayFactor) * time.Second
	if delay <= 0 {
		return
	}
	if hasUploaded && time.Since(last) < delay {
		obs.UploadSplayDelay.Observe(delay.Seconds())
		if splayFactor > 1 {
			u.log.Warn("increased upload delay", zap.Duration("delay", delay), zap.Int("splay_factor", splayFactor))
		}
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}
}

// markUploaded updates the last-upload timestamp from a guaranteed
// post-condition, regardless of outcome — matching the original's
// `finally: self.upload_timer = timer()`.
func (u *Uploader) markUploaded() {
	u.mu.Lock()
	u.lastUpload = time.Now()
	u.hasUploaded = true
	u.mu.Unlock()
}
