package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rutaescolar/planner-api/internal/feasibility"
	"github.com/rutaescolar/planner-api/internal/models"
)

func seedRefreshFleet(ws *WorkspaceService) {
	ws.LoadSchedule("monday", "draft",
		[]models.RawBus{
			{ID: "B001", Routes: []models.RawRoute{
				{ID: "r1", Code: "A", StartTime: "08:00", EndTime: "09:00"},
				{ID: "r2", Code: "B", StartTime: "12:00", EndTime: "13:00", DeadheadMinutes: 40},
			}},
			{ID: "B002", Routes: []models.RawRoute{
				{ID: "r3", Code: "C", StartTime: "08:30", EndTime: "09:30"},
			}},
		}, nil)
}

func TestRefreshRecomputesDeadhead(t *testing.T) {
	feas := &feasStub{travel: 25}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedRefreshFleet(ws)

	result := ws.Refresher().Refresh(context.Background(), nil)
	assert.False(t, result.Cancelled)
	assert.Equal(t, 2, result.Refreshed)
	assert.Equal(t, 1, result.Updated)

	buses := ws.Buses()
	assert.Equal(t, 0, buses[0].Routes[0].PositioningMinutes)
	assert.Equal(t, 25, buses[0].Routes[1].PositioningMinutes)
	// Single-route bus keeps zero deadhead.
	assert.Equal(t, 0, buses[1].Routes[0].PositioningMinutes)
}

func TestRefreshKeepsOldValueOnEstimateFailure(t *testing.T) {
	feas := &feasStub{travelErr: errors.New("osrm timeout")}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedRefreshFleet(ws)

	result := ws.Refresher().Refresh(context.Background(), []string{"B001"})
	assert.False(t, result.Cancelled)
	assert.Equal(t, 1, result.Refreshed)
	assert.Equal(t, 0, result.Updated)

	// r2 keeps its previous deadhead.
	assert.Equal(t, 40, ws.Buses()[0].Routes[1].PositioningMinutes)
}

func TestRequestRefreshCoalescesBursts(t *testing.T) {
	feas := &feasStub{travel: 15}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedRefreshFleet(ws)

	// A fresh refresher: the workspace's own instance still holds the
	// whole-fleet request queued by LoadSchedule, which would escalate
	// this burst beyond B001.
	refresher := NewPositioningRefresher(ws, feas, nil, zap.NewNop(), time.Hour)
	done := make(chan RefreshResult, 4)
	refresher.SetOnComplete(func(r RefreshResult) { done <- r })

	for i := 0; i < 5; i++ {
		refresher.RequestRefresh([]string{"B001"}, 20*time.Millisecond)
	}

	select {
	case result := <-done:
		assert.Equal(t, 1, result.Refreshed)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced refresh never ran")
	}

	// The burst collapsed into a single run: one adjacent pair on B001.
	feas.mu.Lock()
	calls := feas.travelCalls
	feas.mu.Unlock()
	assert.Equal(t, 1, calls)

	select {
	case <-done:
		t.Fatal("unexpected second run")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRequestRefreshEscalatesToWholeFleet(t *testing.T) {
	feas := &feasStub{travel: 15}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedRefreshFleet(ws)

	refresher := NewPositioningRefresher(ws, feas, nil, zap.NewNop(), time.Hour)
	done := make(chan RefreshResult, 2)
	refresher.SetOnComplete(func(r RefreshResult) { done <- r })

	refresher.RequestRefresh([]string{"B001"}, 20*time.Millisecond)
	refresher.RequestRefresh(nil, 20*time.Millisecond)

	select {
	case result := <-done:
		assert.Equal(t, 2, result.Refreshed)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced refresh never ran")
	}
}

func TestRefreshRecordsRunAndFeasibilityMetrics(t *testing.T) {
	feas := &feasStub{travel: 25}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedRefreshFleet(ws)

	metrics := NewMetricsService()
	refresher := NewPositioningRefresher(ws, feas, metrics, zap.NewNop(), time.Hour)

	result := refresher.Refresh(context.Background(), nil)
	require.False(t, result.Cancelled)

	// One adjacent pair on B001 means one timed validate_connection call.
	assert.Equal(t, uint64(1), metrics.Snapshot().FeasibilityCallsTotal)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.refreshRuns.WithLabelValues("completed")))
}

type gatedEstimator struct {
	gate  chan struct{}
	calls atomic.Int32
}

func (g *gatedEstimator) ValidateConnection(ctx context.Context, a, b models.Route) (feasibility.ConnectionEstimate, error) {
	if g.calls.Add(1) == 1 {
		<-g.gate
	}
	return feasibility.ConnectionEstimate{TravelTime: 10}, nil
}

func TestNewerRunCancelsInFlightRun(t *testing.T) {
	feas := &feasStub{}
	ws := newTestWorkspace(feas, &snapshotStub{}, &archiveStub{})
	seedRefreshFleet(ws)

	gated := &gatedEstimator{gate: make(chan struct{})}
	refresher := NewPositioningRefresher(ws, gated, nil, zap.NewNop(), time.Hour)

	first := make(chan RefreshResult, 1)
	go func() {
		first <- refresher.Refresh(context.Background(), []string{"B001"})
	}()

	// Wait for the first run to block inside the estimate call.
	require.Eventually(t, func() bool { return gated.calls.Load() >= 1 }, 2*time.Second, time.Millisecond)

	second := refresher.Refresh(context.Background(), []string{"B002"})
	assert.False(t, second.Cancelled)

	close(gated.gate)

	select {
	case result := <-first:
		assert.True(t, result.Cancelled)
		assert.Equal(t, 0, result.Refreshed)
	case <-time.After(2 * time.Second):
		t.Fatal("first run never finished")
	}

	// The stale run's values never landed.
	assert.Equal(t, 40, ws.Buses()[0].Routes[1].PositioningMinutes)
}
