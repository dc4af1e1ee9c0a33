package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rutaescolar/planner-api/internal/feasibility"
	"github.com/rutaescolar/planner-api/internal/models"
	"github.com/rutaescolar/planner-api/pkg/config"
	appErrors "github.com/rutaescolar/planner-api/pkg/errors"
)

type feasStub struct {
	mu             sync.Mutex
	state          feasibility.State
	assign         feasibility.AssignDecision
	assignErr      error
	assignErrAfter int
	assignCalls    int
	travel         int
	travelErr      error
	travelCalls    int
	report         *models.GlobalValidationReport
	validateErr    error
}

func (s *feasStub) CanAssignRoute(ctx context.Context, route models.Route, existing []models.Route) (feasibility.AssignDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignCalls++
	if s.assignErr != nil {
		return feasibility.AssignDecision{}, s.assignErr
	}
	if s.assignErrAfter > 0 && s.assignCalls >= s.assignErrAfter {
		return feasibility.AssignDecision{}, errors.New("canal perdido")
	}
	return s.assign, nil
}

func (s *feasStub) ValidateBus(ctx context.Context, bus models.Bus) (feasibility.BusValidation, error) {
	return feasibility.BusValidation{Feasible: true}, nil
}

func (s *feasStub) ValidateAllBuses(ctx context.Context, days []models.DayValidationPayload, persist bool) (*models.GlobalValidationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.validateErr != nil {
		return nil, s.validateErr
	}
	if s.report != nil {
		return s.report, nil
	}
	return &models.GlobalValidationReport{}, nil
}

func (s *feasStub) ValidateConnection(ctx context.Context, a, b models.Route) (feasibility.ConnectionEstimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.travelCalls++
	if s.travelErr != nil {
		return feasibility.ConnectionEstimate{}, s.travelErr
	}
	return feasibility.ConnectionEstimate{TravelTime: s.travel}, nil
}

func (s *feasStub) State() feasibility.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == "" {
		return feasibility.StateConnected
	}
	return s.state
}

type snapshotStub struct {
	saved  []models.ScheduleData
	stored *models.ScheduleData
	err    error
}

func (s *snapshotStub) SaveSnapshot(ctx context.Context, data models.ScheduleData) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, data)
	return nil
}

func (s *snapshotStub) LoadSnapshot(ctx context.Context, day, mode string) (*models.ScheduleData, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.stored == nil {
		return nil, appErrors.ErrSnapshotMiss
	}
	return s.stored, nil
}

type archiveStub struct {
	inserted []models.ScheduleData
	err      error
}

func (s *archiveStub) InsertPublished(ctx context.Context, data models.ScheduleData) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.inserted = append(s.inserted, data)
	return "version-1", nil
}

// The huge debounce keeps background refreshes from firing mid-test.
func newTestWorkspace(feas *feasStub, snapshots *snapshotStub, archive *archiveStub) *WorkspaceService {
	cfg := config.WorkspaceConfig{
		ShortBufferMinutes:     10,
		TightPositioningMargin: 5,
		CompressionGapMinutes:  15,
		RefreshDebounce:        time.Hour,
	}
	return NewWorkspaceService(feas, snapshots, archive, nil, zap.NewNop(), cfg)
}

func seedWorkspace(ws *WorkspaceService) {
	ws.LoadSchedule("monday", "draft",
		[]models.RawBus{
			{ID: "B001", Routes: []models.RawRoute{
				{ID: "r1", Code: "A", StartTime: "08:00", EndTime: "09:00"},
				{ID: "r2", Code: "B", StartTime: "12:00", EndTime: "13:00"},
			}},
			{ID: "B002", Routes: []models.RawRoute{
				{ID: "r3", Code: "C", StartTime: "08:30", EndTime: "09:30"},
			}},
		},
		[]models.RawRoute{
			{ID: "r4", Code: "D", StartTime: "10:00", EndTime: "11:00"},
			{ID: "r5", Code: "E", StartTime: "08:15", EndTime: "09:15"},
		},
	)
}

func countAllRoutes(ws *WorkspaceService) int {
	total := len(ws.AvailableRoutes()) + len(ws.TransferRoutes())
	for _, bus := range ws.Buses() {
		total += len(bus.Routes)
	}
	return total
}

func TestDropRouteSuccessInsertsChronologically(t *testing.T) {
	feas := &feasStub{assign: feasibility.AssignDecision{Feasible: true}}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)
	before := countAllRoutes(ws)

	result, err := ws.DropRoute(context.Background(), models.Route{ID: "r4"}, "B001")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "B001", result.BusID)

	buses := ws.Buses()
	require.Len(t, buses[0].Routes, 3)
	assert.Equal(t, []string{"r1", "r4", "r2"},
		[]string{buses[0].Routes[0].ID, buses[0].Routes[1].ID, buses[0].Routes[2].ID})

	// The route left the pool and lives in exactly one collection.
	for _, route := range ws.AvailableRoutes() {
		assert.NotEqual(t, "r4", route.ID)
	}
	assert.Equal(t, before, countAllRoutes(ws))
}

func TestDropRouteBusNotFound(t *testing.T) {
	feas := &feasStub{assign: feasibility.AssignDecision{Feasible: true}}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)

	result, err := ws.DropRoute(context.Background(), models.Route{ID: "r4"}, "B099")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonBusNotFound, result.Reason)
	assert.Equal(t, 0, feas.assignCalls)
}

func TestDropRouteDuplicateRejectedBeforeFeasibility(t *testing.T) {
	feas := &feasStub{assign: feasibility.AssignDecision{Feasible: true}}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)

	result, err := ws.DropRoute(context.Background(), models.Route{ID: "r1"}, "B001")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonDuplicateRoute, result.Reason)
	assert.Equal(t, 0, feas.assignCalls)
}

func TestDropRouteOverlapRejectedBeforeFeasibility(t *testing.T) {
	feas := &feasStub{assign: feasibility.AssignDecision{Feasible: true}}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)

	// r5 (08:15-09:15) overlaps r1 (08:00-09:00) on B001.
	result, err := ws.DropRoute(context.Background(), models.Route{ID: "r5"}, "B001")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonScheduleOverlap, result.Reason)
	assert.Equal(t, 0, feas.assignCalls)

	// Rejected route stays in the pool.
	found := false
	for _, route := range ws.AvailableRoutes() {
		if route.ID == "r5" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDropRouteInfeasibleVerdict(t *testing.T) {
	feas := &feasStub{assign: feasibility.AssignDecision{Feasible: false, Reason: "No llega a tiempo"}}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)

	result, err := ws.DropRoute(context.Background(), models.Route{ID: "r4"}, "B002")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "No llega a tiempo", result.Reason)
	assert.Equal(t, 1, feas.assignCalls)
	require.Len(t, ws.Buses()[1].Routes, 1)
}

func TestDropRouteTransportFailureIsNotFatal(t *testing.T) {
	feas := &feasStub{assignErr: errors.New("channel down")}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)
	before := countAllRoutes(ws)

	result, err := ws.DropRoute(context.Background(), models.Route{ID: "r4"}, "B002")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonCannotValidate, result.Reason)
	assert.Equal(t, before, countAllRoutes(ws))
}

func TestDropRouteUnknownRoute(t *testing.T) {
	feas := &feasStub{assign: feasibility.AssignDecision{Feasible: true}}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)

	result, err := ws.DropRoute(context.Background(), models.Route{ID: "ghost"}, "B001")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonRouteNotFound, result.Reason)
}

func TestDropRouteWithExternalPayload(t *testing.T) {
	feas := &feasStub{assign: feasibility.AssignDecision{Feasible: true}}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)

	external := models.Route{ID: "ext1", Code: "X", StartTime: "14:00", EndTime: "15:00", Type: models.RouteTypeExit}
	result, err := ws.DropRoute(context.Background(), external, "B002")
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, ws.Buses()[1].Routes, 2)
}

func TestTransferRoundTripConservesRoutes(t *testing.T) {
	feas := &feasStub{assign: feasibility.AssignDecision{Feasible: true}}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)
	before := countAllRoutes(ws)

	result, err := ws.MoveToTransfer("r2")
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, ws.TransferRoutes(), 1)
	require.Len(t, ws.Buses()[0].Routes, 1)
	assert.Equal(t, before, countAllRoutes(ws))

	result, err = ws.MoveFromTransfer(context.Background(), "r2", "B002")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, ws.TransferRoutes())
	require.Len(t, ws.Buses()[1].Routes, 2)
	assert.Equal(t, before, countAllRoutes(ws))
}

func TestMoveFromTransferToNewBus(t *testing.T) {
	feas := &feasStub{assign: feasibility.AssignDecision{Feasible: true}}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)

	_, err := ws.MoveToTransfer("r2")
	require.NoError(t, err)

	result, err := ws.MoveFromTransfer(context.Background(), "r2", "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "B003", result.BusID)
	assert.Empty(t, ws.TransferRoutes())
	// No feasibility call for a fresh bus.
	assert.Equal(t, 0, feas.assignCalls)
}

func TestCreateBusWithRouteUsesNextFreeID(t *testing.T) {
	feas := &feasStub{}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)

	result, err := ws.CreateBusWithRoute("r4")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "B003", result.BusID)

	buses := ws.Buses()
	require.Len(t, buses, 3)
	require.Len(t, buses[2].Routes, 1)
	assert.Equal(t, "r4", buses[2].Routes[0].ID)
	assert.Equal(t, 0, buses[2].Routes[0].PositioningMinutes)

	assert.Equal(t, "B004", ws.AddBus())
}

func TestRemoveRouteReturnsToPool(t *testing.T) {
	feas := &feasStub{}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)
	before := countAllRoutes(ws)

	result, err := ws.RemoveRoute("B001", "r1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, ws.Buses()[0].Routes, 1)

	found := false
	for _, route := range ws.AvailableRoutes() {
		if route.ID == "r1" {
			found = true
			assert.Equal(t, 0, route.PositioningMinutes)
		}
	}
	assert.True(t, found)
	assert.Equal(t, before, countAllRoutes(ws))
}

func TestRemoveBusUnassignsRoutes(t *testing.T) {
	feas := &feasStub{}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)
	before := countAllRoutes(ws)

	result, err := ws.RemoveBus("B001")
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, ws.Buses(), 1)
	assert.Equal(t, before, countAllRoutes(ws))
	assert.Len(t, ws.AvailableRoutes(), 4)
}

func TestValidateScheduleCachesReportAndMutationStalesIt(t *testing.T) {
	feas := &feasStub{
		assign: feasibility.AssignDecision{Feasible: true},
		report: &models.GlobalValidationReport{Summary: models.ReportSummary{IncidentsTotal: 2}},
	}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)

	report, err := ws.ValidateSchedule(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Summary.IncidentsTotal)

	cached, stale := ws.Report()
	assert.Same(t, report, cached)
	assert.False(t, stale)

	_, err = ws.DropRoute(context.Background(), models.Route{ID: "r4"}, "B001")
	require.NoError(t, err)

	_, stale = ws.Report()
	assert.True(t, stale)
}

func TestValidateScheduleTransportFailure(t *testing.T) {
	feas := &feasStub{validateErr: errors.New("gateway down")}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)

	_, err := ws.ValidateSchedule(context.Background(), false)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrServiceUnavailable.Code, appErr.Code)
}

func TestPublishBlockedByLocalErrors(t *testing.T) {
	feas := &feasStub{assign: feasibility.AssignDecision{Feasible: true}}
	archive := &archiveStub{}
	ws := newTestWorkspace(feas, &snapshotStub{}, archive)
	// r1 and r2 overlap.
	ws.LoadSchedule("monday", "draft", []models.RawBus{
		{ID: "B001", Routes: []models.RawRoute{
			{ID: "r1", Code: "A", StartTime: "08:00", EndTime: "09:00"},
			{ID: "r2", Code: "B", StartTime: "08:30", EndTime: "09:30"},
		}},
	}, nil)

	_, err := ws.Publish(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, archive.inserted)
}

func TestPublishArchivesCleanSchedule(t *testing.T) {
	feas := &feasStub{}
	archive := &archiveStub{}
	ws := newTestWorkspace(feas, &snapshotStub{}, archive)
	seedWorkspace(ws)

	version, err := ws.Publish(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "version-1", version)
	require.Len(t, archive.inserted, 1)
	assert.Equal(t, "monday", archive.inserted[0].Day)
	assert.Equal(t, 2, archive.inserted[0].Stats.TotalBuses)
	assert.Equal(t, 3, archive.inserted[0].Stats.TotalRoutes)
}

func TestSaveDraftPersistsSnapshot(t *testing.T) {
	feas := &feasStub{}
	snapshots := &snapshotStub{}
	ws := newTestWorkspace(feas, snapshots, &archiveStub{})
	seedWorkspace(ws)

	data, err := ws.SaveDraft(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "monday", data.Day)
	require.Len(t, snapshots.saved, 1)
}

func TestSwitchDayRestoresStoredDraft(t *testing.T) {
	feas := &feasStub{}
	snapshots := &snapshotStub{stored: &models.ScheduleData{
		Day:  "tuesday",
		Mode: "draft",
		Buses: []models.ScheduleBusData{
			{BusID: "B001", Items: []models.ScheduleItemData{
				{RouteID: "r9", RouteCode: "Z", StartTime: "07:00", EndTime: "08:00"},
			}},
		},
	}}
	ws := newTestWorkspace(feas, snapshots, &archiveStub{})
	seedWorkspace(ws)

	require.NoError(t, ws.SwitchDay(context.Background(), "tuesday"))
	assert.Equal(t, "tuesday", ws.ActiveDay())
	buses := ws.Buses()
	require.Len(t, buses, 1)
	require.Len(t, buses[0].Routes, 1)
	assert.Equal(t, "r9", buses[0].Routes[0].ID)
	// Transfer never survives a day switch.
	assert.Empty(t, ws.TransferRoutes())
}

func TestSwitchDayWithoutDraftFallsBackToEmptyFleet(t *testing.T) {
	feas := &feasStub{}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)

	require.NoError(t, ws.SwitchDay(context.Background(), "friday"))
	assert.Equal(t, "friday", ws.ActiveDay())
	buses := ws.Buses()
	require.Len(t, buses, 1)
	assert.Equal(t, "B001", buses[0].ID)
	assert.Empty(t, buses[0].Routes)
}

func TestStatsCountsCompressibleGaps(t *testing.T) {
	feas := &feasStub{}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)

	stats := ws.Stats()
	assert.Equal(t, 2, stats.TotalBuses)
	assert.Equal(t, 3, stats.TotalRoutes)
	assert.Equal(t, 2, stats.AvailableRoutes)
	// r1 ends 09:00, r2 starts 12:00: a 180 min gap is compressible.
	assert.Equal(t, 1, stats.CompressibleGaps)
}

func TestApplyPositioningMarksChange(t *testing.T) {
	feas := &feasStub{}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedWorkspace(ws)

	changed := ws.ApplyPositioning("B001", map[string]int{"r1": 0, "r2": 25})
	assert.True(t, changed)
	assert.Equal(t, 25, ws.Buses()[0].Routes[1].PositioningMinutes)

	// Same values again: no-op.
	changed = ws.ApplyPositioning("B001", map[string]int{"r1": 0, "r2": 25})
	assert.False(t, changed)
}
