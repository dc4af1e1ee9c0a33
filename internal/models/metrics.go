package models

import "time"

// SystemMetrics is the lightweight aggregate exposed on the stats endpoint,
// alongside the full Prometheus scrape.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	WorkspaceOpsTotal        uint64    `json:"workspace_ops_total"`
	RejectionsTotal          uint64    `json:"rejections_total"`
	FeasibilityCallsTotal    uint64    `json:"feasibility_calls_total"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
