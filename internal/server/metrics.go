package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langdetect_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "langdetect_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Detection metrics
	detectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langdetect_detections_total",
			Help: "Total number of detections",
		},
		[]string{"source", "status"}, // source: http, websocket
	)

	detectedLanguages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langdetect_detected_language_total",
			Help: "Detections by resulting language",
		},
		[]string{"language"},
	)

	detectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "langdetect_detection_duration_seconds",
			Help:    "Detection duration in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"source"},
	)

	textLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "langdetect_text_length_bytes",
			Help:    "Length of submitted texts",
			Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
	)

	// Token cache metrics
	tokenCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langdetect_token_cache_lookups_total",
			Help: "Token cache lookups",
		},
		[]string{"result"}, // result: hit, miss
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langdetect_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: requests_per_minute, text_per_day
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "langdetect_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "langdetect_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

// ObserveCache records a token cache lookup. It is meant to be passed to
// detector.WithCacheObserver.
func ObserveCache(hit bool) {
	if hit {
		tokenCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	tokenCacheLookups.WithLabelValues("miss").Inc()
}
