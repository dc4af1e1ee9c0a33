package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rutaescolar/planner-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry            *prometheus.Registry
	handler             http.Handler
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
	workspaceOps        *prometheus.CounterVec
	workspaceRejections *prometheus.CounterVec
	reassignments       *prometheus.CounterVec
	feasibilityDuration *prometheus.HistogramVec
	refreshRuns         *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	workspaceOpCount     uint64
	rejectionCount       uint64
	feasibilityCallCount uint64
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

	workspaceOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_operations_total",
		Help: "Total committed workspace mutations",
	}, []string{"operation"})

	workspaceRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_rejections_total",
		Help: "Total rejected placement attempts",
	}, []string{"reason"})

	reassignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reassignment_runs_total",
		Help: "Total reassignment runs",
	}, []string{"trigger", "outcome"})

	feasibilityDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feasibility_request_duration_seconds",
		Help:    "Duration of feasibility channel requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	refreshRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "positioning_refresh_runs_total",
		Help: "Total positioning refresh runs",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, workspaceOps, workspaceRejections, reassignments, feasibilityDuration, refreshRuns, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		workspaceOps:        workspaceOps,
		workspaceRejections: workspaceRejections,
		reassignments:       reassignments,
		feasibilityDuration: feasibilityDuration,
		refreshRuns:         refreshRuns,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// CountWorkspaceOp counts one committed workspace mutation by kind.
func (m *MetricsService) CountWorkspaceOp(operation string) {
	if m == nil {
		return
	}
	m.workspaceOps.WithLabelValues(operation).Inc()
	atomic.AddUint64(&m.workspaceOpCount, 1)
}

// CountWorkspaceRejection counts a rejected placement by its reason.
func (m *MetricsService) CountWorkspaceRejection(reason string) {
	if m == nil {
		return
	}
	m.workspaceRejections.WithLabelValues(reason).Inc()
	atomic.AddUint64(&m.rejectionCount, 1)
}

// CountReassignment counts a reassignment run by trigger and outcome.
func (m *MetricsService) CountReassignment(trigger, outcome string) {
	if m == nil {
		return
	}
	m.reassignments.WithLabelValues(trigger, outcome).Inc()
}

// ObserveFeasibilityRequest records timing for one feasibility channel call.
func (m *MetricsService) ObserveFeasibilityRequest(requestType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.feasibilityDuration.WithLabelValues(requestType).Observe(duration.Seconds())
	atomic.AddUint64(&m.feasibilityCallCount, 1)
}

// CountRefreshRun counts one positioning refresh run by outcome.
func (m *MetricsService) CountRefreshRun(cancelled bool) {
	if m == nil {
		return
	}
	outcome := "completed"
	if cancelled {
		outcome = "cancelled"
	}
	m.refreshRuns.WithLabelValues(outcome).Inc()
}

// Snapshot returns aggregated metrics suitable for the stats endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		WorkspaceOpsTotal:        atomic.LoadUint64(&m.workspaceOpCount),
		RejectionsTotal:          atomic.LoadUint64(&m.rejectionCount),
		FeasibilityCallsTotal:    atomic.LoadUint64(&m.feasibilityCallCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
