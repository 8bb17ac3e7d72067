package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "winemap", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "winemap", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	RemoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "winemap", Name: "remote_requests_total", Help: "Document-store requests."},
		[]string{"endpoint", "status"},
	)
	RemoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "winemap", Name: "remote_request_duration_seconds",
			Help:    "Document-store request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "winemap", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	DecodeFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "winemap", Name: "decode_fallbacks_total", Help: "Remote documents decoded leniently."},
	)
	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "winemap", Name: "operations_total", Help: "Orchestrator operations by terminal phase."},
		[]string{"kind", "phase"},
	)
)

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, RemoteRequests, RemoteLatency,
		CacheEvents, DecodeFallbacks, Operations)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveRemote(endpoint string, status int, dur time.Duration) {
	RemoteRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	RemoteLatency.WithLabelValues(endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveDecodeFallback() { DecodeFallbacks.Inc() }

func ObserveOperation(kind, phase string) {
	Operations.WithLabelValues(kind, phase).Inc()
}
