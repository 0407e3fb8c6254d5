package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsbridge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adsbridge_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	// UpstreamRequestTotal counts Graph API calls by response status class.
	UpstreamRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsbridge_upstream_requests_total",
			Help: "Total number of Graph API requests",
		},
		[]string{"status"},
	)
	// UpstreamRequestDuration is the latency of Graph API calls.
	UpstreamRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adsbridge_upstream_request_duration_seconds",
			Help:    "Graph API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	// OAuthCallbacksTotal counts OAuth callbacks by outcome.
	OAuthCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsbridge_oauth_callbacks_total",
			Help: "Total number of OAuth callbacks by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveUpstream records one Graph API call. status 0 means a transport failure.
func ObserveUpstream(status int, elapsed time.Duration) {
	UpstreamRequestTotal.WithLabelValues(StatusClass(status)).Inc()
	UpstreamRequestDuration.Observe(elapsed.Seconds())
}

// ObserveRequest records one inbound HTTP request.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	RequestTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// StatusClass maps a status code to 2xx/4xx/5xx, or "error" for 0.
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
