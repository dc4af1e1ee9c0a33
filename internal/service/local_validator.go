package service

import (
	"fmt"

	"github.com/rutaescolar/planner-api/internal/models"
	"github.com/rutaescolar/planner-api/pkg/config"
)

// LocalValidator is the synchronous, pure projection of a fleet into per-bus
// issue lists. It assumes each bus's routes are already chronological.
type LocalValidator struct {
	shortBuffer int
	tightMargin int
}

// NewLocalValidator wires the minute thresholds from config.
func NewLocalValidator(cfg config.WorkspaceConfig) *LocalValidator {
	shortBuffer := cfg.ShortBufferMinutes
	if shortBuffer <= 0 {
		shortBuffer = 10
	}
	tightMargin := cfg.TightPositioningMargin
	if tightMargin <= 0 {
		tightMargin = 5
	}
	return &LocalValidator{shortBuffer: shortBuffer, tightMargin: tightMargin}
}

// ValidateBuses classifies every adjacent route pair of every bus. Exactly
// one classification applies per pair; the branches are mutually exclusive.
func (v *LocalValidator) ValidateBuses(buses []models.Bus) map[string]models.ValidationResult {
	results := make(map[string]models.ValidationResult, len(buses))
	for _, bus := range buses {
		results[bus.ID] = v.validateBus(bus)
	}
	return results
}

func (v *LocalValidator) validateBus(bus models.Bus) models.ValidationResult {
	result := models.ValidationResult{
		Errors:   []models.Issue{},
		Warnings: []models.Issue{},
		Routes:   make(map[string]models.RouteIssues, len(bus.Routes)),
	}

	for i := 1; i < len(bus.Routes); i++ {
		prev, curr := bus.Routes[i-1], bus.Routes[i]
		buffer := ParseClockMinutes(curr.StartTime) - ParseClockMinutes(prev.EndTime)
		positioning := curr.PositioningMinutes
		margin := buffer - positioning

		issue := models.Issue{
			RouteIndex:         i,
			RouteID:            curr.ID,
			PrevRouteID:        prev.ID,
			WindowMinutes:      buffer,
			PositioningMinutes: positioning,
			MarginMinutes:      margin,
		}

		switch {
		case buffer < 0:
			issue.Type = models.IssueOverlap
			issue.Message = fmt.Sprintf("%s solapa con %s (%d min)", curr.Code, prev.Code, -buffer)
			result.Errors = append(result.Errors, issue)
		case positioning > 0 && margin < 0:
			issue.Type = models.IssuePositioningInfeasible
			issue.Message = fmt.Sprintf("%s necesita %d min de posicionamiento y solo hay %d", curr.Code, positioning, buffer)
			result.Errors = append(result.Errors, issue)
		case positioning > 0 && margin <= v.tightMargin:
			issue.Type = models.IssuePositioningTight
			issue.Message = fmt.Sprintf("%s llega justo: margen de %d min tras posicionamiento", curr.Code, margin)
			result.Warnings = append(result.Warnings, issue)
		case buffer < v.shortBuffer:
			issue.Type = models.IssueShortBuffer
			issue.Message = fmt.Sprintf("solo %d min entre %s y %s", buffer, prev.Code, curr.Code)
			result.Warnings = append(result.Warnings, issue)
		default:
			continue
		}

		routeIssues := result.Routes[curr.ID]
		if issue.Type == models.IssueOverlap || issue.Type == models.IssuePositioningInfeasible {
			routeIssues.Errors = append(routeIssues.Errors, issue)
		} else {
			routeIssues.Warnings = append(routeIssues.Warnings, issue)
		}
		result.Routes[curr.ID] = routeIssues
	}

	return result
}

// FleetHasErrors reports whether any bus in the map carries blocking issues.
func FleetHasErrors(results map[string]models.ValidationResult) bool {
	for _, result := range results {
		if result.HasErrors() {
			return true
		}
	}
	return false
}
