package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/rutaescolar/planner-api/internal/feasibility"
	"github.com/rutaescolar/planner-api/internal/models"
	appErrors "github.com/rutaescolar/planner-api/pkg/errors"
)

// endOfDayMinutes caps open-ended gaps so a bus with no neighbour on one side
// still scores on the other.
const endOfDayMinutes = 24 * 60

type workspaceGateway interface {
	Buses() []models.Bus
	ActiveDay() string
	Report() (*models.GlobalValidationReport, bool)
	Validation() map[string]models.ValidationResult
	ReplaceBuses(buses []models.Bus)
	FeasibilityState() feasibility.State
	CanAssign(ctx context.Context, route models.Route, existing []models.Route) (feasibility.AssignDecision, error)
	ValidateSchedule(ctx context.Context, persist bool) (*models.GlobalValidationReport, error)
	Refresher() *PositioningRefresher
}

// ReassignedItem records one route's outcome within a reassignment run.
type ReassignedItem struct {
	RouteID string `json:"route_id"`
	FromBus string `json:"from_bus"`
	ToBus   string `json:"to_bus,omitempty"`
	NewBus  bool   `json:"new_bus,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ReassignmentSummary is the run report returned to the caller.
type ReassignmentSummary struct {
	Trigger            string           `json:"trigger"`
	Moved              int              `json:"moved"`
	Created            int              `json:"created"`
	Unresolved         int              `json:"unresolved"`
	Skipped            int              `json:"skipped"`
	PostIncidentsTotal int              `json:"post_incidents_total"`
	MovedItems         []ReassignedItem `json:"moved_items,omitempty"`
	UnresolvedItems    []ReassignedItem `json:"unresolved_items,omitempty"`
}

// ReassignmentService relocates routes implicated in critical incidents. It
// works on a private copy of the fleet, confirms every placement with the
// feasibility service, and commits the whole result in one swap so readers
// never observe a half-applied plan.
type ReassignmentService struct {
	workspace   workspaceGateway
	metrics     *MetricsService
	logger      *zap.Logger
	loadPenalty float64
	autoEnabled bool
}

func NewReassignmentService(workspace workspaceGateway, metrics *MetricsService, logger *zap.Logger, loadPenalty float64, autoEnabled bool) *ReassignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loadPenalty <= 0 {
		loadPenalty = 0.35
	}
	return &ReassignmentService{
		workspace:   workspace,
		metrics:     metrics,
		logger:      logger,
		loadPenalty: loadPenalty,
		autoEnabled: autoEnabled,
	}
}

// AutoReassignIfCritical runs a reassignment when the feature is enabled and
// the freshly computed report carries critical incidents for the active day.
func (s *ReassignmentService) AutoReassignIfCritical(ctx context.Context, report *models.GlobalValidationReport) (*ReassignmentSummary, error) {
	if !s.autoEnabled {
		return nil, nil
	}
	if len(report.CriticalIncidents(s.workspace.ActiveDay())) == 0 {
		return nil, nil
	}
	summary, err := s.Reassign(ctx, "auto")
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Reassign collects the conflicted routes, finds each a better bus and
// commits the result atomically. Trigger is "auto" or "manual" and is echoed
// back in the summary.
func (s *ReassignmentService) Reassign(ctx context.Context, trigger string) (*ReassignmentSummary, error) {
	if s.workspace.FeasibilityState() != feasibility.StateConnected {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "servicio de validación no disponible")
	}

	working := models.CloneBuses(s.workspace.Buses())
	targets := s.collectTargets()
	summary := &ReassignmentSummary{Trigger: trigger}
	if len(targets) == 0 {
		return summary, nil
	}

	relocated := make(map[string]struct{})
	for _, target := range targets {
		route, fromIdx, ok := extractRoute(working, target.busID, target.routeID)
		if !ok && target.fallbackID != "" {
			route, fromIdx, ok = extractRoute(working, target.busID, target.fallbackID)
		}
		if !ok {
			summary.Unresolved++
			summary.UnresolvedItems = append(summary.UnresolvedItems, ReassignedItem{
				RouteID: target.routeID, FromBus: target.busID, Reason: "ruta no encontrada en el bus",
			})
			continue
		}
		if _, dup := relocated[route.ID]; dup {
			// A route moves at most once per pass.
			summary.Skipped++
			continue
		}
		if route.IsLocked {
			summary.Skipped++
			continue
		}

		// The route leaves its source only inside the working copy; the
		// live fleet is untouched until the final commit.
		working[fromIdx].Routes = removeRouteByID(working[fromIdx].Routes, route.ID)

		toIdx, err := s.placeRoute(ctx, working, route, fromIdx)
		if err != nil {
			// Transport failure mid-plan: put the route back and stop
			// trying further targets, the channel is unreliable now.
			// Placements already confirmed by the feasibility service stay
			// in the working copy and commit below in the single swap; only
			// the in-flight route returns to its source.
			working[fromIdx].Routes = insertChrono(working[fromIdx].Routes, route)
			summary.Unresolved++
			summary.UnresolvedItems = append(summary.UnresolvedItems, ReassignedItem{
				RouteID: route.ID, FromBus: target.busID, Reason: "no se pudo validar la reubicación",
			})
			s.logger.Warn("reassignment aborted on transport failure", zap.String("route", route.ID), zap.Error(err))
			break
		}
		if toIdx < 0 {
			busID := NextBusID(working)
			route.PositioningMinutes = 0
			working = append(working, models.Bus{ID: busID, Type: models.BusTypeStandard, Routes: []models.Route{route}})
			relocated[route.ID] = struct{}{}
			summary.Created++
			summary.Moved++
			summary.MovedItems = append(summary.MovedItems, ReassignedItem{
				RouteID: route.ID, FromBus: target.busID, ToBus: busID, NewBus: true,
			})
			continue
		}

		working[toIdx].Routes = insertChrono(working[toIdx].Routes, route)
		relocated[route.ID] = struct{}{}
		summary.Moved++
		summary.MovedItems = append(summary.MovedItems, ReassignedItem{
			RouteID: route.ID, FromBus: target.busID, ToBus: working[toIdx].ID,
		})
	}

	if summary.Moved == 0 && summary.Created == 0 {
		if s.metrics != nil {
			s.metrics.CountReassignment(trigger, "noop")
		}
		return summary, nil
	}

	s.workspace.ReplaceBuses(working)
	s.workspace.Refresher().RequestRefresh(nil, 0)

	report, err := s.workspace.ValidateSchedule(ctx, false)
	if err != nil {
		s.logger.Warn("post-reassignment validation failed", zap.Error(err))
	} else {
		summary.PostIncidentsTotal = report.Summary.IncidentsTotal
	}

	if s.metrics != nil {
		s.metrics.CountReassignment(trigger, "applied")
	}
	s.logger.Info("reassignment applied",
		zap.String("trigger", trigger),
		zap.Int("moved", summary.Moved),
		zap.Int("created", summary.Created),
		zap.Int("unresolved", summary.Unresolved),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}

type reassignTarget struct {
	busID      string
	routeID    string
	fallbackID string
}

// collectTargets merges the cached report's critical incidents with the local
// validator's blocking findings, deduplicated by (bus, route). Each target
// keeps the pair's other route id as a fallback lookup.
func (s *ReassignmentService) collectTargets() []reassignTarget {
	type targetKey struct{ busID, routeID string }
	seen := make(map[targetKey]struct{})
	var out []reassignTarget
	add := func(busID, routeID, fallbackID string) {
		if routeID == "" {
			routeID, fallbackID = fallbackID, ""
		}
		if busID == "" || routeID == "" {
			return
		}
		key := targetKey{busID: busID, routeID: routeID}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, reassignTarget{busID: busID, routeID: routeID, fallbackID: fallbackID})
	}

	report, _ := s.workspace.Report()
	for _, inc := range report.CriticalIncidents(s.workspace.ActiveDay()) {
		// The later route of the pair is the one that moves; some backends
		// report single-route incidents under route_a only.
		add(inc.BusID, inc.RouteB, inc.RouteA)
	}
	for busID, result := range s.workspace.Validation() {
		for _, issue := range result.Errors {
			add(busID, issue.RouteID, issue.PrevRouteID)
		}
	}
	return out
}

// placeRoute evaluates every other bus as a destination and returns the index
// of the best-scoring feasible one, or -1 when none accepts the route.
func (s *ReassignmentService) placeRoute(ctx context.Context, working []models.Bus, route models.Route, fromIdx int) (int, error) {
	bestIdx := -1
	bestScore := 0.0

	for i := range working {
		if i == fromIdx {
			continue
		}
		if precheckPlacement(working[i], route) != "" {
			continue
		}
		decision, err := s.workspace.CanAssign(ctx, route, working[i].Routes)
		if err != nil {
			return -1, err
		}
		if !decision.Feasible {
			continue
		}
		score := placementScore(working[i], route, s.loadPenalty)
		if bestIdx < 0 || score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}
	return bestIdx, nil
}

// placementScore prefers the bus whose schedule leaves the widest slack
// around the incoming route, discounted by how loaded the bus already is.
func placementScore(bus models.Bus, route models.Route, penalty float64) float64 {
	start := ParseClockMinutes(route.StartTime)
	end := ParseClockMinutes(route.EndTime)

	gapBefore := float64(start)
	gapAfter := float64(endOfDayMinutes - end)
	for _, existing := range bus.Routes {
		existingEnd := ParseClockMinutes(existing.EndTime)
		existingStart := ParseClockMinutes(existing.StartTime)
		if existingEnd <= start {
			if gap := float64(start - existingEnd); gap < gapBefore {
				gapBefore = gap
			}
		}
		if existingStart >= end {
			if gap := float64(existingStart - end); gap < gapAfter {
				gapAfter = gap
			}
		}
	}

	slack := gapBefore
	if gapAfter < slack {
		slack = gapAfter
	}
	return slack - penalty*float64(len(bus.Routes))
}

func extractRoute(buses []models.Bus, busID, routeID string) (models.Route, int, bool) {
	for i, bus := range buses {
		if bus.ID != busID {
			continue
		}
		for _, route := range bus.Routes {
			if route.ID == routeID {
				return route, i, true
			}
		}
	}
	return models.Route{}, -1, false
}

func insertChrono(routes []models.Route, route models.Route) []models.Route {
	idx := ChronologicalInsertIndex(routes, route)
	out := make([]models.Route, 0, len(routes)+1)
	out = append(out, routes[:idx]...)
	out = append(out, route)
	out = append(out, routes[idx:]...)
	return out
}
