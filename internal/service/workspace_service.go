package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rutaescolar/planner-api/internal/feasibility"
	"github.com/rutaescolar/planner-api/internal/models"
	"github.com/rutaescolar/planner-api/pkg/config"
	appErrors "github.com/rutaescolar/planner-api/pkg/errors"
)

// Rejection reasons surfaced to the planning UI. Kept in Spanish because the
// desks operate in Spanish; the UI shows them verbatim.
const (
	ReasonBusNotFound      = "Bus no encontrado"
	ReasonDuplicateRoute   = "Ruta duplicada"
	ReasonScheduleOverlap  = "Solapamiento de horario"
	ReasonRouteNotFound    = "Ruta no encontrada"
	ReasonCannotValidate   = "No se pudo validar la asignación"
	ReasonValidatorBlocked = "No se puede publicar con errores de validación"
)

type feasibilityChecker interface {
	CanAssignRoute(ctx context.Context, route models.Route, existing []models.Route) (feasibility.AssignDecision, error)
	ValidateBus(ctx context.Context, bus models.Bus) (feasibility.BusValidation, error)
	ValidateAllBuses(ctx context.Context, days []models.DayValidationPayload, persist bool) (*models.GlobalValidationReport, error)
	ValidateConnection(ctx context.Context, a, b models.Route) (feasibility.ConnectionEstimate, error)
	State() feasibility.State
}

// SnapshotStore persists draft schedules keyed by day and mode.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, data models.ScheduleData) error
	LoadSnapshot(ctx context.Context, day, mode string) (*models.ScheduleData, error)
}

// ArchiveStore records immutable published versions.
type ArchiveStore interface {
	InsertPublished(ctx context.Context, data models.ScheduleData) (string, error)
}

// OperationResult carries the explicit success flag and human-readable reason
// every engine operation resolves with. Expected failures never throw.
type OperationResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	BusID   string `json:"busId,omitempty"`
}

// WorkspaceStats summarises the live aggregate for dashboards.
type WorkspaceStats struct {
	Day              string `json:"day"`
	Mode             string `json:"mode"`
	TotalBuses       int    `json:"total_buses"`
	TotalRoutes      int    `json:"total_routes"`
	AvailableRoutes  int    `json:"available_routes"`
	TransferRoutes   int    `json:"transfer_routes"`
	CompressibleGaps int    `json:"compressible_gaps"`
	ReportStale      bool   `json:"report_stale"`
}

// WorkspaceService owns the per-day assignment aggregate: buses, the transfer
// holding area and the unassigned pool. Every mutation goes through its
// operations; the buses slice is only ever replaced wholesale under the lock
// so readers always observe a consistent fleet.
type WorkspaceService struct {
	mu        sync.Mutex
	day       string
	mode      string
	buses     []models.Bus
	transfer  []models.Route
	available []models.Route

	report      *models.GlobalValidationReport
	reportStale bool

	validator *LocalValidator
	feas      feasibilityChecker
	snapshots SnapshotStore
	archive   ArchiveStore
	refresher *PositioningRefresher
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       config.WorkspaceConfig
}

// NewWorkspaceService wires the engine. The positioning refresher is owned by
// the service so its callbacks always see the latest aggregate.
func NewWorkspaceService(
	feas feasibilityChecker,
	snapshots SnapshotStore,
	archive ArchiveStore,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg config.WorkspaceConfig,
) *WorkspaceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &WorkspaceService{
		day:       "monday",
		mode:      "draft",
		buses:     []models.Bus{{ID: FormatBusID(1), Type: models.BusTypeStandard, Routes: []models.Route{}}},
		validator: NewLocalValidator(cfg),
		feas:      feas,
		snapshots: snapshots,
		archive:   archive,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
	s.refresher = NewPositioningRefresher(s, feas, metrics, logger, cfg.RefreshDebounce)
	return s
}

// Refresher exposes the scheduler for handlers and tests.
func (s *WorkspaceService) Refresher() *PositioningRefresher { return s.refresher }

// ActiveDay returns the day the aggregate currently edits.
func (s *WorkspaceService) ActiveDay() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day
}

// LoadSchedule replaces the aggregate wholesale from an external schedule
// (optimizer output or persisted draft) plus an optional unassigned pool.
func (s *WorkspaceService) LoadSchedule(day, mode string, rawBuses []models.RawBus, rawAvailable []models.RawRoute) {
	buses := NormalizeBuses(rawBuses)
	if len(buses) == 0 {
		buses = []models.Bus{{ID: FormatBusID(1), Type: models.BusTypeStandard, Routes: []models.Route{}}}
	}

	assigned := make(map[string]struct{})
	for _, bus := range buses {
		for _, route := range bus.Routes {
			assigned[route.ID] = struct{}{}
		}
	}
	available := make([]models.Route, 0, len(rawAvailable))
	for _, raw := range rawAvailable {
		route := NormalizeRoute(raw)
		if route.ID == "" {
			continue
		}
		if _, taken := assigned[route.ID]; taken {
			continue
		}
		available = append(available, route)
	}
	available = DedupeRoutesByID(available)
	SortRoutesChrono(available)

	s.mu.Lock()
	if day != "" {
		s.day = day
	}
	if mode != "" {
		s.mode = mode
	}
	s.buses = buses
	s.available = available
	s.transfer = nil
	s.report = nil
	s.reportStale = false
	s.mu.Unlock()

	s.refresher.RequestRefresh(nil, 0)
}

// SwitchDay swaps the active day, restoring a stored draft when one exists
// and falling back to the empty single-bus default.
func (s *WorkspaceService) SwitchDay(ctx context.Context, day string) error {
	if day == "" {
		return appErrors.Clone(appErrors.ErrValidation, "day is required")
	}

	s.mu.Lock()
	mode := s.mode
	s.mu.Unlock()

	if s.snapshots != nil {
		snapshot, err := s.snapshots.LoadSnapshot(ctx, day, mode)
		if err == nil && snapshot != nil {
			s.LoadSchedule(day, mode, snapshotToRawBuses(*snapshot), nil)
			return nil
		}
		if err != nil && appErrors.FromError(err).Code != appErrors.ErrSnapshotMiss.Code {
			return err
		}
	}

	s.LoadSchedule(day, mode, nil, nil)
	return nil
}

// DropRoute places a route onto the target bus: synchronous pre-checks, then
// feasibility confirmation, then a single locked commit at the chronological
// index. On any failure the aggregate is untouched.
func (s *WorkspaceService) DropRoute(ctx context.Context, route models.Route, targetBusID string) (OperationResult, error) {
	s.mu.Lock()
	if stored, _, ok := s.findRouteLocked(route.ID); ok {
		route = stored
	} else if route.StartTime == "" || route.EndTime == "" {
		s.mu.Unlock()
		return OperationResult{Reason: ReasonRouteNotFound}, nil
	}
	target, ok := s.findBusLocked(targetBusID)
	if !ok {
		s.mu.Unlock()
		return OperationResult{Reason: ReasonBusNotFound}, nil
	}
	if reason := precheckPlacement(target, route); reason != "" {
		s.mu.Unlock()
		s.countRejection(reason)
		return OperationResult{Reason: reason}, nil
	}
	existing := make([]models.Route, len(target.Routes))
	copy(existing, target.Routes)
	s.mu.Unlock()

	started := time.Now()
	decision, err := s.feas.CanAssignRoute(ctx, route, existing)
	s.metrics.ObserveFeasibilityRequest("can_assign", time.Since(started))
	if err != nil {
		s.logger.Warn("can_assign_route failed", zap.String("route", route.ID), zap.String("bus", targetBusID), zap.Error(err))
		s.countRejection(ReasonCannotValidate)
		return OperationResult{Reason: ReasonCannotValidate}, nil
	}
	if !decision.Feasible {
		reason := decision.Reason
		if reason == "" {
			reason = "El servicio de validación rechazó la asignación"
		}
		s.countRejection(reason)
		return OperationResult{Reason: reason}, nil
	}

	s.mu.Lock()
	target, ok = s.findBusLocked(targetBusID)
	if !ok {
		s.mu.Unlock()
		return OperationResult{Reason: ReasonBusNotFound}, nil
	}
	// The fleet may have moved while feasibility was in flight; the
	// pre-checks must hold at commit time too.
	if reason := precheckPlacement(target, route); reason != "" {
		s.mu.Unlock()
		s.countRejection(reason)
		return OperationResult{Reason: reason}, nil
	}
	s.commitRouteLocked(route, targetBusID)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CountWorkspaceOp("drop")
	}
	s.refresher.RequestRefresh([]string{targetBusID}, 0)
	return OperationResult{Success: true, BusID: targetBusID}, nil
}

// MoveToTransfer parks a route in the neutral holding area. The transfer add
// happens before the source removal so the route is never in zero
// collections.
func (s *WorkspaceService) MoveToTransfer(routeID string) (OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	route, _, ok := s.findRouteLocked(routeID)
	if !ok {
		return OperationResult{Reason: ReasonRouteNotFound}, nil
	}
	for _, parked := range s.transfer {
		if parked.ID == routeID {
			return OperationResult{Reason: ReasonDuplicateRoute}, nil
		}
	}

	s.transfer = append(s.transfer, route)
	s.removeFromSourcesLocked(routeID, "transfer")
	s.reportStale = true
	return OperationResult{Success: true}, nil
}

// MoveFromTransfer places a parked route onto a bus, or onto a newly created
// bus when targetBusID is empty.
func (s *WorkspaceService) MoveFromTransfer(ctx context.Context, routeID, targetBusID string) (OperationResult, error) {
	s.mu.Lock()
	var route models.Route
	found := false
	for _, parked := range s.transfer {
		if parked.ID == routeID {
			route = parked
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return OperationResult{Reason: ReasonRouteNotFound}, nil
	}

	if targetBusID == "" {
		return s.CreateBusWithRoute(routeID)
	}
	return s.DropRoute(ctx, route, targetBusID)
}

// CreateBusWithRoute generates the next free bus id and seeds it with exactly
// the given route. An empty bus is trivially feasible so no service call.
func (s *WorkspaceService) CreateBusWithRoute(routeID string) (OperationResult, error) {
	s.mu.Lock()
	route, _, ok := s.findRouteLocked(routeID)
	if !ok {
		s.mu.Unlock()
		return OperationResult{Reason: ReasonRouteNotFound}, nil
	}

	busID := NextBusID(s.buses)
	route.PositioningMinutes = 0
	next := append(models.CloneBuses(s.buses), models.Bus{
		ID:     busID,
		Type:   models.BusTypeStandard,
		Routes: []models.Route{route},
	})
	s.buses = next
	s.removeFromSourcesLocked(routeID, busID)
	s.reportStale = true
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CountWorkspaceOp("create_bus")
	}
	s.refresher.RequestRefresh([]string{busID}, 0)
	return OperationResult{Success: true, BusID: busID}, nil
}

// AddBus creates an empty bus with the next free id.
func (s *WorkspaceService) AddBus() string {
	s.mu.Lock()
	busID := NextBusID(s.buses)
	s.buses = append(models.CloneBuses(s.buses), models.Bus{
		ID:     busID,
		Type:   models.BusTypeStandard,
		Routes: []models.Route{},
	})
	s.reportStale = true
	s.mu.Unlock()
	return busID
}

// RemoveRoute unconditionally unassigns a route back into the available pool
// and schedules a positioning refresh for the bus, since downstream deadhead
// changed.
func (s *WorkspaceService) RemoveRoute(busID, routeID string) (OperationResult, error) {
	s.mu.Lock()
	bus, ok := s.findBusLocked(busID)
	if !ok {
		s.mu.Unlock()
		return OperationResult{Reason: ReasonBusNotFound}, nil
	}
	idx := -1
	for i, route := range bus.Routes {
		if route.ID == routeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return OperationResult{Reason: ReasonRouteNotFound}, nil
	}

	removed := bus.Routes[idx]
	removed.PositioningMinutes = 0
	s.available = append(s.available, removed)
	SortRoutesChrono(s.available)

	next := models.CloneBuses(s.buses)
	for i := range next {
		if next[i].ID == busID {
			next[i].Routes = append(next[i].Routes[:idx:idx], next[i].Routes[idx+1:]...)
		}
	}
	s.buses = next
	s.reportStale = true
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CountWorkspaceOp("remove_route")
	}
	s.refresher.RequestRefresh([]string{busID}, 0)
	return OperationResult{Success: true}, nil
}

// RemoveBus deletes a bus; its routes become unassigned. Interactive
// confirmation is the caller's concern.
func (s *WorkspaceService) RemoveBus(busID string) (OperationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, bus := range s.buses {
		if bus.ID == busID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return OperationResult{Reason: ReasonBusNotFound}, nil
	}

	for _, route := range s.buses[idx].Routes {
		route.PositioningMinutes = 0
		s.available = append(s.available, route)
	}
	SortRoutesChrono(s.available)

	next := models.CloneBuses(s.buses)
	next = append(next[:idx], next[idx+1:]...)
	s.buses = next
	s.reportStale = true
	return OperationResult{Success: true}, nil
}

// Buses returns a deep copy of the fleet.
func (s *WorkspaceService) Buses() []models.Bus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneBuses(s.buses)
}

// AvailableRoutes returns a copy of the unassigned pool.
func (s *WorkspaceService) AvailableRoutes() []models.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Route, len(s.available))
	copy(out, s.available)
	return out
}

// TransferRoutes returns a copy of the holding area.
func (s *WorkspaceService) TransferRoutes() []models.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Route, len(s.transfer))
	copy(out, s.transfer)
	return out
}

// Validation recomputes the local validator projection for the live fleet.
func (s *WorkspaceService) Validation() map[string]models.ValidationResult {
	return s.validator.ValidateBuses(s.Buses())
}

// ValidateSchedule runs the whole-schedule validation for the active day and
// caches the report. The cache is marked fresh until the next mutation.
func (s *WorkspaceService) ValidateSchedule(ctx context.Context, persist bool) (*models.GlobalValidationReport, error) {
	s.mu.Lock()
	day := s.day
	payload := []models.DayValidationPayload{buildDayPayload(day, s.buses)}
	s.mu.Unlock()

	started := time.Now()
	report, err := s.feas.ValidateAllBuses(ctx, payload, persist)
	s.metrics.ObserveFeasibilityRequest("validate_all", time.Since(started))
	if err != nil {
		s.logger.Warn("whole-schedule validation failed", zap.String("day", day), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "no se pudo validar el horario")
	}

	s.mu.Lock()
	s.report = report
	s.reportStale = false
	s.mu.Unlock()
	return report, nil
}

// Report returns the cached whole-schedule report and its staleness.
func (s *WorkspaceService) Report() (*models.GlobalValidationReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report, s.reportStale
}

// SaveDraft persists the live snapshot under the day/mode-scoped key.
func (s *WorkspaceService) SaveDraft(ctx context.Context) (models.ScheduleData, error) {
	data := s.Snapshot()
	if s.snapshots == nil {
		return data, appErrors.Clone(appErrors.ErrInternal, "snapshot store missing")
	}
	if err := s.snapshots.SaveSnapshot(ctx, data); err != nil {
		return data, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "no se pudo guardar el borrador")
	}
	return data, nil
}

// Publish archives the snapshot as an immutable version. Blocked while any
// bus has validator errors.
func (s *WorkspaceService) Publish(ctx context.Context) (string, error) {
	if FleetHasErrors(s.Validation()) {
		return "", appErrors.Clone(appErrors.ErrPreconditionFailed, ReasonValidatorBlocked)
	}
	if s.archive == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "archive store missing")
	}
	version, err := s.archive.InsertPublished(ctx, s.Snapshot())
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "no se pudo publicar el horario")
	}
	if s.metrics != nil {
		s.metrics.CountWorkspaceOp("publish")
	}
	return version, nil
}

// Snapshot serialises the aggregate into the persisted wire shape.
func (s *WorkspaceService) Snapshot() models.ScheduleData {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := models.ScheduleData{Day: s.day, Mode: s.mode}
	totalRoutes := 0
	for _, bus := range s.buses {
		entry := models.ScheduleBusData{BusID: bus.ID, Items: make([]models.ScheduleItemData, 0, len(bus.Routes))}
		for order, route := range bus.Routes {
			entry.Items = append(entry.Items, models.ScheduleItemData{
				RouteID:            route.ID,
				RouteCode:          route.Code,
				StartTime:          route.StartTime,
				EndTime:            route.EndTime,
				Origin:             route.Origin,
				Destination:        route.Destination,
				Type:               string(route.Type),
				Order:              order,
				SchoolName:         route.School,
				Stops:              route.Stops,
				StartLocation:      route.StartLocation,
				EndLocation:        route.EndLocation,
				DeadheadMinutes:    route.PositioningMinutes,
				CapacityNeeded:     route.CapacityNeeded,
				VehicleCapacityMin: route.VehicleCapacityMin,
				VehicleCapacityMax: route.VehicleCapacityMax,
				VehicleCapacity:    route.VehicleCapacityRange,
				ContractID:         route.ContractID,
				IsLocked:           route.IsLocked,
			})
			totalRoutes++
		}
		data.Buses = append(data.Buses, entry)
	}
	data.Stats = models.ScheduleStats{TotalBuses: len(s.buses), TotalRoutes: totalRoutes}
	return data
}

// Stats reports live aggregate counters, including the advisory count of
// inter-route gaps at or above the compression threshold.
func (s *WorkspaceService) Stats() WorkspaceStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := WorkspaceStats{
		Day:             s.day,
		Mode:            s.mode,
		TotalBuses:      len(s.buses),
		AvailableRoutes: len(s.available),
		TransferRoutes:  len(s.transfer),
		ReportStale:     s.reportStale,
	}
	threshold := s.cfg.CompressionGapMinutes
	if threshold <= 0 {
		threshold = 15
	}
	for _, bus := range s.buses {
		stats.TotalRoutes += len(bus.Routes)
		for i := 1; i < len(bus.Routes); i++ {
			gap := ParseClockMinutes(bus.Routes[i].StartTime) - ParseClockMinutes(bus.Routes[i-1].EndTime)
			if gap >= threshold {
				stats.CompressibleGaps++
			}
		}
	}
	return stats
}

// --- Refresher callbacks ---

// BusesForRefresh returns copies of the targeted buses; nil means the whole
// fleet.
func (s *WorkspaceService) BusesForRefresh(ids []string) []models.Bus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ids == nil {
		return models.CloneBuses(s.buses)
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []models.Bus
	for _, bus := range s.buses {
		if _, ok := wanted[bus.ID]; ok {
			out = append(out, bus.Clone())
		}
	}
	return out
}

// ApplyPositioning commits recomputed deadhead minutes for one bus. Returns
// whether anything actually changed; untouched buses are not rewritten.
func (s *WorkspaceService) ApplyPositioning(busID string, minutes map[string]int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	next := models.CloneBuses(s.buses)
	for i := range next {
		if next[i].ID != busID {
			continue
		}
		SortRoutesChrono(next[i].Routes)
		for j := range next[i].Routes {
			value, ok := minutes[next[i].Routes[j].ID]
			if ok && next[i].Routes[j].PositioningMinutes != value {
				next[i].Routes[j].PositioningMinutes = value
				changed = true
			}
		}
	}
	if changed {
		s.buses = next
		s.reportStale = true
	}
	return changed
}

// --- Reassignment hooks ---

// ReplaceBuses commits a reassignment working copy as the new fleet in one
// atomic swap.
func (s *WorkspaceService) ReplaceBuses(buses []models.Bus) {
	normalized := EnsureUniqueBusIDs(models.CloneBuses(buses))
	for i := range normalized {
		SortRoutesChrono(normalized[i].Routes)
	}
	s.mu.Lock()
	s.buses = normalized
	s.reportStale = true
	s.mu.Unlock()
}

// FeasibilityState exposes the channel state for gating checks.
func (s *WorkspaceService) FeasibilityState() feasibility.State {
	return s.feas.State()
}

// CanAssign proxies the feasibility check for the reassignment heuristic.
func (s *WorkspaceService) CanAssign(ctx context.Context, route models.Route, existing []models.Route) (feasibility.AssignDecision, error) {
	started := time.Now()
	decision, err := s.feas.CanAssignRoute(ctx, route, existing)
	s.metrics.ObserveFeasibilityRequest("can_assign", time.Since(started))
	return decision, err
}

// --- internals (callers hold s.mu) ---

func (s *WorkspaceService) findBusLocked(id string) (models.Bus, bool) {
	for _, bus := range s.buses {
		if bus.ID == id {
			return bus, true
		}
	}
	return models.Bus{}, false
}

// findRouteLocked searches available, transfer and every bus.
func (s *WorkspaceService) findRouteLocked(id string) (models.Route, string, bool) {
	for _, route := range s.available {
		if route.ID == id {
			return route, "available", true
		}
	}
	for _, route := range s.transfer {
		if route.ID == id {
			return route, "transfer", true
		}
	}
	for _, bus := range s.buses {
		for _, route := range bus.Routes {
			if route.ID == id {
				return route, bus.ID, true
			}
		}
	}
	return models.Route{}, "", false
}

// commitRouteLocked splices the route into the destination at its
// chronological index, then removes it from whichever source held it.
// Destination before source keeps the route visible throughout (P3).
func (s *WorkspaceService) commitRouteLocked(route models.Route, targetBusID string) {
	next := models.CloneBuses(s.buses)
	for i := range next {
		if next[i].ID != targetBusID {
			continue
		}
		idx := ChronologicalInsertIndex(next[i].Routes, route)
		routes := make([]models.Route, 0, len(next[i].Routes)+1)
		routes = append(routes, next[i].Routes[:idx]...)
		routes = append(routes, route)
		routes = append(routes, next[i].Routes[idx:]...)
		next[i].Routes = routes
	}
	s.buses = next
	s.removeFromSourcesLocked(route.ID, targetBusID)
	s.reportStale = true
}

// removeFromSourcesLocked drops the route from available, transfer and any
// bus except the destination that just accepted it.
func (s *WorkspaceService) removeFromSourcesLocked(routeID, keep string) {
	if keep != "available" {
		s.available = removeRouteByID(s.available, routeID)
	}
	if keep != "transfer" {
		s.transfer = removeRouteByID(s.transfer, routeID)
	}
	changed := false
	next := models.CloneBuses(s.buses)
	for i := range next {
		if next[i].ID == keep {
			continue
		}
		trimmed := removeRouteByID(next[i].Routes, routeID)
		if len(trimmed) != len(next[i].Routes) {
			next[i].Routes = trimmed
			changed = true
		}
	}
	if changed {
		s.buses = next
	}
}

func (s *WorkspaceService) countRejection(reason string) {
	if s.metrics != nil {
		s.metrics.CountWorkspaceRejection(reason)
	}
}

func precheckPlacement(bus models.Bus, route models.Route) string {
	for _, existing := range bus.Routes {
		if existing.ID == route.ID {
			return ReasonDuplicateRoute
		}
	}
	for _, existing := range bus.Routes {
		if RoutesOverlap(existing, route) {
			return ReasonScheduleOverlap
		}
	}
	return ""
}

func removeRouteByID(routes []models.Route, id string) []models.Route {
	out := make([]models.Route, 0, len(routes))
	for _, route := range routes {
		if route.ID == id {
			continue
		}
		out = append(out, route)
	}
	return out
}

func buildDayPayload(day string, buses []models.Bus) models.DayValidationPayload {
	payload := models.DayValidationPayload{Day: day}
	for _, bus := range buses {
		entry := models.BusValidationEntry{BusID: bus.ID}
		for _, route := range bus.Routes {
			entry.Routes = append(entry.Routes, models.RouteValidationEntry{
				ID:            route.ID,
				RouteID:       route.ID,
				StartTime:     route.StartTime,
				EndTime:       route.EndTime,
				Type:          string(route.Type),
				SchoolName:    route.School,
				StartLocation: route.StartLocation,
				EndLocation:   route.EndLocation,
			})
		}
		payload.Buses = append(payload.Buses, entry)
	}
	return payload
}

func snapshotToRawBuses(data models.ScheduleData) []models.RawBus {
	raw := make([]models.RawBus, 0, len(data.Buses))
	for _, bus := range data.Buses {
		entry := models.RawBus{BusID: bus.BusID}
		for _, item := range bus.Items {
			entry.Items = append(entry.Items, models.RawRoute{
				RouteID:            item.RouteID,
				RouteCode:          item.RouteCode,
				StartTimeSnake:     item.StartTime,
				EndTimeSnake:       item.EndTime,
				Origin:             item.Origin,
				Destination:        item.Destination,
				Type:               item.Type,
				Stops:              item.Stops,
				SchoolName:         item.SchoolName,
				DeadheadMinutes:    item.DeadheadMinutes,
				CapacityNeededAlt:  item.CapacityNeeded,
				VehicleCapacityMin: item.VehicleCapacityMin,
				VehicleCapacityMax: item.VehicleCapacityMax,
				VehicleCapacity:    item.VehicleCapacity,
				StartLocation:      item.StartLocation,
				EndLocation:        item.EndLocation,
				ContractID:         item.ContractID,
				IsLocked:           item.IsLocked,
			})
		}
		raw = append(raw, entry)
	}
	return raw
}
