package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mvgeo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mvgeo_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Estimation metrics
	estimationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mvgeo_estimations_total",
			Help: "Total number of estimations",
		},
		[]string{"kind", "status"},
	)

	estimationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mvgeo_estimation_duration_seconds",
			Help:    "Estimation duration in seconds",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"kind"},
	)

	estimationRank = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mvgeo_estimation_rank",
			Help:    "Effective rank of the estimated matrix or tensor",
			Buckets: []float64{0, 1, 2, 3, 4},
		},
		[]string{"kind"},
	)

	estimationCorrespondences = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mvgeo_estimation_correspondences",
			Help:    "Number of correspondences per estimation",
			Buckets: []float64{4, 8, 16, 32, 64, 128, 256, 1024, 4096},
		},
		[]string{"kind"},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mvgeo_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: burst, hour, requests, data
	)

	requestBodyBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mvgeo_request_body_bytes",
			Help:    "Size of request bodies in bytes",
			Buckets: []float64{256, 1024, 10 * 1024, 100 * 1024, 1024 * 1024, 4 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mvgeo_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mvgeo_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
