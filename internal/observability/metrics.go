package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosUploaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoevents",
		Name:      "photos_uploaded_total",
		Help:      "Total number of photos accepted for processing",
	}, []string{"event_id"})

	UploadsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoevents",
		Name:      "uploads_rejected_total",
		Help:      "Total number of uploads rejected by validation",
	}, []string{"reason"})

	EncodeJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoevents",
		Name:      "encode_jobs_total",
		Help:      "Total number of encode jobs by outcome",
	}, []string{"outcome"})

	EncodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photoevents",
		Name:      "encode_duration_seconds",
		Help:      "Duration of face encoding by encoder implementation",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"encoder"})

	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoevents",
		Name:      "search_requests_total",
		Help:      "Total number of selfie search requests by outcome",
	}, []string{"outcome"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "photoevents",
		Name:      "queue_depth",
		Help:      "Number of pending encode jobs in the queue",
	})

	QueueDegraded = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "photoevents",
		Name:      "queue_degraded",
		Help:      "1 when the queue backing store was unreachable at startup",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photoevents",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "photoevents",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})

	FilesCleaned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoevents",
		Name:      "files_cleaned_total",
		Help:      "Total number of files removed by cleanup jobs",
	}, []string{"type"})
)
