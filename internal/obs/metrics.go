// Copyright 2025 James Ross
package obs

import (
	"fmt"
	"net/http"

	"github.com/flyingrobots/go-redis-work-queue/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EntriesEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "entries_enqueued_total",
		Help: "Total number of entries appended to the pending queue",
	})
	EntriesUploaded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "entries_uploaded_total",
		Help: "Total number of entries successfully acknowledged by the upload endpoint",
	})
	UploadAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_attempts_total",
		Help: "Upload attempts by outcome",
	}, []string{"outcome"}) // ok|transport_error|server_error|no_endpoint
	UploadSplayDelay = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "upload_splay_delay_seconds",
		Help:    "Observed pacing delay before an upload call",
		Buckets: prometheus.DefBuckets,
	})
	RetryQueuesPromoted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retry_queues_promoted_total",
		Help: "Total number of retry queues promoted to a fail queue",
	})
	RetryQueuesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retry_queues_created_total",
		Help: "Total number of retry queues created from a failed pending upload",
	})
	RetryRenameCollisions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retry_rename_collisions_total",
		Help: "Total number of rename_if_absent collisions while creating or advancing a retry queue",
	})
	RetryQueueOverrun = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "retry_queue_overrun",
		Help: "1 when the retry queue count is at or above retry_queue_limit",
	})
	QueueLength = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_length",
		Help: "Current length of a named queue, sampled periodically",
	}, []string{"queue"})
	UnparseableRetryQueues = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unparseable_retry_queues_total",
		Help: "Total number of retr_* queue names that failed the attempt-counter regex and were skipped",
	})
)

func init() {
	prometheus.MustRegister(
		EntriesEnqueued,
		EntriesUploaded,
		UploadAttempts,
		UploadSplayDelay,
		RetryQueuesPromoted,
		RetryQueuesCreated,
		RetryRenameCollisions,
		RetryQueueOverrun,
		QueueLength,
		UnparseableRetryQueues,
	)
}

// StartMetricsServer exposes /metrics and returns a server for controlled shutdown.
func StartMetricsServer(cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Observability.MetricsPort), Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
