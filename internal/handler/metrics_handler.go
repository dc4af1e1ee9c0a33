package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rutaescolar/planner-api/internal/feasibility"
	"github.com/rutaescolar/planner-api/internal/service"
	"github.com/rutaescolar/planner-api/pkg/response"
)

// MetricsHandler exposes the observability endpoints: Prometheus scrape,
// aggregated counters for dashboards, and liveness/readiness probes.
type MetricsHandler struct {
	metrics   *service.MetricsService
	feasState func() feasibility.State
}

// NewMetricsHandler builds the handler. feasState may be nil when no
// feasibility channel is configured; readiness then omits it.
func NewMetricsHandler(metrics *service.MetricsService, feasState func() feasibility.State) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, feasState: feasState}
}

// Prometheus serves the scrape endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Snapshot serves the aggregated counters for dashboards.
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

// Health is the liveness probe.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports readiness. A disconnected feasibility channel degrades the
// answer but stays 200: the workspace still serves reads and local edits.
func (h *MetricsHandler) Ready(c *gin.Context) {
	payload := gin.H{"status": "ok"}
	if h.feasState != nil {
		state := h.feasState()
		payload["feasibility"] = string(state)
		if state != feasibility.StateConnected {
			payload["status"] = "degraded"
		}
	}
	c.JSON(http.StatusOK, payload)
}
