package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface
// and the reconciliation batches.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	syncGroups      *prometheus.CounterVec
	remoteCalls     *prometheus.HistogramVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	syncGroups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sge_sync_groups_total",
		Help: "Attendance groups processed per batch operation and outcome",
	}, []string{"operation", "outcome"})

	remoteCalls := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sge_remote_call_duration_seconds",
		Help:    "Duration of calls against the SGE gateway",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	registry.MustRegister(requestDuration, requestTotal, syncGroups, remoteCalls)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		syncGroups:      syncGroups,
		remoteCalls:     remoteCalls,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return s.handler
}

// ObserveHTTPRequest captures one HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "path": path, "status": httpStatusLabel(status)}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// ObserveGroupOutcome counts one group reaching a terminal status.
func (s *MetricsService) ObserveGroupOutcome(operation, outcome string) {
	if s == nil {
		return
	}
	s.syncGroups.WithLabelValues(operation, outcome).Inc()
}

// ObserveRemoteCall captures the latency of one gateway call.
func (s *MetricsService) ObserveRemoteCall(op string, duration time.Duration) {
	if s == nil {
		return
	}
	s.remoteCalls.WithLabelValues(op).Observe(duration.Seconds())
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
