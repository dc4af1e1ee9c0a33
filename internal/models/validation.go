package models

// IssueType classifies adjacent-pair findings from the local validator.
type IssueType string

const (
	IssueOverlap               IssueType = "overlap"
	IssuePositioningInfeasible IssueType = "positioning_infeasible"
	IssuePositioningTight      IssueType = "positioning_tight"
	IssueShortBuffer           IssueType = "short_buffer"
)

// Incident issue types reported by the whole-schedule validation service.
const (
	IncidentInsufficientTime  = "INSUFFICIENT_TIME"
	IncidentOverlappingRoutes = "OVERLAPPING_ROUTES"
	IncidentInvalidTimeRange  = "INVALID_TIME_RANGE"
)

// Incident severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Issue is a single finding for a consecutive route pair on one bus.
type Issue struct {
	Type               IssueType `json:"type"`
	Message            string    `json:"message"`
	RouteIndex         int       `json:"routeIndex"`
	RouteID            string    `json:"routeId"`
	PrevRouteID        string    `json:"prevRouteId,omitempty"`
	WindowMinutes      int       `json:"windowMinutes"`
	PositioningMinutes int       `json:"positioningMinutes"`
	MarginMinutes      int       `json:"marginMinutes"`
}

// RouteIssues groups findings attributed to a single route.
type RouteIssues struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// ValidationResult is the per-bus projection of the local validator. It is
// fully recomputed on every bus mutation, never patched incrementally.
type ValidationResult struct {
	Errors   []Issue                `json:"errors"`
	Warnings []Issue                `json:"warnings"`
	Routes   map[string]RouteIssues `json:"routes"`
}

// HasErrors reports whether the bus carries at least one blocking issue.
func (r ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// ReportSummary aggregates a whole-schedule validation outcome.
type ReportSummary struct {
	IncidentsTotal int `json:"incidents_total"`
	IncidentsError int `json:"incidents_error"`
	TotalBuses     int `json:"total_buses"`
}

// ReportIncident is one finding from the whole-schedule validation service.
type ReportIncident struct {
	Day           string `json:"day"`
	BusID         string `json:"bus_id"`
	RouteA        string `json:"route_a"`
	RouteB        string `json:"route_b"`
	IssueType     string `json:"issue_type"`
	Severity      string `json:"severity"`
	Message       string `json:"message"`
	Suggestion    string `json:"suggestion,omitempty"`
	TimeAvailable int    `json:"time_available"`
	TravelTime    int    `json:"travel_time"`
	BufferMinutes int    `json:"buffer_minutes"`
}

// GlobalValidationReport caches the last whole-schedule validation. It goes
// stale the instant any bus mutates and must be re-requested explicitly.
type GlobalValidationReport struct {
	Summary   ReportSummary    `json:"summary"`
	Incidents []ReportIncident `json:"incidents"`
}

// CriticalIncidents filters error-severity incidents of the kinds that
// trigger automatic reassignment, restricted to one day.
func (r *GlobalValidationReport) CriticalIncidents(day string) []ReportIncident {
	if r == nil {
		return nil
	}
	var out []ReportIncident
	for _, inc := range r.Incidents {
		if inc.Severity != SeverityError {
			continue
		}
		if day != "" && inc.Day != "" && inc.Day != day {
			continue
		}
		switch inc.IssueType {
		case IncidentInsufficientTime, IncidentOverlappingRoutes, IncidentInvalidTimeRange:
			out = append(out, inc)
		}
	}
	return out
}
