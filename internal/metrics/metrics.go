package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Envelope ingestion metrics
	EnvelopesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_ingest_envelopes_total",
			Help: "Total number of envelopes received",
		},
		[]string{"status"},
	)

	EnvelopeBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_ingest_envelope_bytes_total",
			Help: "Total bytes of envelope data received after decoding",
		},
	)

	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_ingest_items_total",
			Help: "Total number of envelope items by type and dispatch outcome",
		},
		[]string{"type", "outcome"},
	)

	// Transport metrics
	DecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_ingest_decode_failures_total",
			Help: "Total number of body decompression failures",
		},
		[]string{"encoding"},
	)

	// Authentication metrics
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_ingest_auth_failures_total",
			Help: "Total number of authentication failures",
		},
		[]string{"reason"},
	)

	// Task queue metrics
	TasksPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_ingest_tasks_published_total",
			Help: "Total number of async tasks published",
		},
		[]string{"kind", "status"},
	)

	// Worker metrics
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faultline_worker_task_duration_seconds",
			Help:    "Duration of async task processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	TaskErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_worker_task_errors_total",
			Help: "Total number of async task processing errors",
		},
		[]string{"kind"},
	)

	DuplicateEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultline_worker_duplicate_events_total",
			Help: "Total number of redelivered events dropped by event_id dedup",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultline_ingest_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"project"},
	)
)
