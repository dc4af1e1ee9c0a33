package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rutaescolar/planner-api/internal/feasibility"
	"github.com/rutaescolar/planner-api/internal/models"
)

type refreshTarget interface {
	BusesForRefresh(ids []string) []models.Bus
	ApplyPositioning(busID string, minutes map[string]int) bool
}

type connectionEstimator interface {
	ValidateConnection(ctx context.Context, a, b models.Route) (feasibility.ConnectionEstimate, error)
}

// RefreshResult summarises one refresh run.
type RefreshResult struct {
	Refreshed int  `json:"refreshed"`
	Updated   int  `json:"updated"`
	Cancelled bool `json:"cancelled"`
}

// RefreshProgress is the done/total counter exposed while a run is active.
type RefreshProgress struct {
	Done  int64 `json:"done"`
	Total int64 `json:"total"`
}

// PositioningRefresher recomputes deadhead minutes for buses after mutations.
// Requests landing within the debounce window coalesce into one run; a
// request for the whole fleet escalates any pending per-bus set. Each run
// stamps a generation, and a newer stamp cancels the in-flight run between
// buses so stale results never land.
type PositioningRefresher struct {
	target    refreshTarget
	estimator connectionEstimator
	metrics   *MetricsService
	logger    *zap.Logger
	delay     time.Duration

	mu         sync.Mutex
	pending    map[string]struct{}
	pendingAll bool
	timer      *time.Timer
	onComplete func(RefreshResult)

	generation atomic.Int64
	done       atomic.Int64
	total      atomic.Int64
}

func NewPositioningRefresher(target refreshTarget, estimator connectionEstimator, metrics *MetricsService, logger *zap.Logger, delay time.Duration) *PositioningRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if delay <= 0 {
		delay = 400 * time.Millisecond
	}
	return &PositioningRefresher{
		target:    target,
		estimator: estimator,
		metrics:   metrics,
		logger:    logger,
		delay:     delay,
		pending:   make(map[string]struct{}),
	}
}

// SetOnComplete registers a callback invoked after each run with its result.
func (r *PositioningRefresher) SetOnComplete(fn func(RefreshResult)) {
	r.mu.Lock()
	r.onComplete = fn
	r.mu.Unlock()
}

// RequestRefresh schedules a debounced refresh for the given buses; nil means
// the whole fleet. A non-positive delay uses the configured default. Calls
// within the window merge their targets and restart the timer.
func (r *PositioningRefresher) RequestRefresh(busIDs []string, delay time.Duration) {
	if delay <= 0 {
		delay = r.delay
	}

	r.mu.Lock()
	if busIDs == nil {
		r.pendingAll = true
		r.pending = make(map[string]struct{})
	} else if !r.pendingAll {
		for _, id := range busIDs {
			r.pending[id] = struct{}{}
		}
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(delay, r.flush)
	r.mu.Unlock()
}

func (r *PositioningRefresher) flush() {
	r.mu.Lock()
	var ids []string
	if !r.pendingAll {
		ids = make([]string, 0, len(r.pending))
		for id := range r.pending {
			ids = append(ids, id)
		}
	}
	r.pending = make(map[string]struct{})
	r.pendingAll = false
	r.timer = nil
	r.mu.Unlock()

	r.Refresh(context.Background(), ids)
}

// Refresh runs the recomputation immediately for the given buses (nil = all).
// Only the newest run survives: an older in-flight run checks its stamp
// between buses and aborts.
func (r *PositioningRefresher) Refresh(ctx context.Context, busIDs []string) RefreshResult {
	gen := r.generation.Add(1)
	buses := r.target.BusesForRefresh(busIDs)
	r.total.Store(int64(len(buses)))
	r.done.Store(0)

	var result RefreshResult
	for _, bus := range buses {
		if r.generation.Load() != gen || ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		minutes := r.refreshBus(ctx, bus)
		if r.generation.Load() != gen {
			result.Cancelled = true
			break
		}
		if r.target.ApplyPositioning(bus.ID, minutes) {
			result.Updated++
		}
		result.Refreshed++
		r.done.Add(1)
	}

	r.metrics.CountRefreshRun(result.Cancelled)

	r.mu.Lock()
	fn := r.onComplete
	r.mu.Unlock()
	if fn != nil {
		fn(result)
	}
	return result
}

// Progress reports the done/total counters of the most recent run.
func (r *PositioningRefresher) Progress() RefreshProgress {
	return RefreshProgress{Done: r.done.Load(), Total: r.total.Load()}
}

// refreshBus recomputes deadhead minutes for one bus: the first route gets
// zero, each later route gets the drive time from its predecessor's end. A
// failed lookup is logged and the route's previous value is kept.
func (r *PositioningRefresher) refreshBus(ctx context.Context, bus models.Bus) map[string]int {
	routes := make([]models.Route, len(bus.Routes))
	copy(routes, bus.Routes)
	SortRoutesChrono(routes)

	minutes := make(map[string]int, len(routes))
	for i, route := range routes {
		if i == 0 {
			minutes[route.ID] = 0
			continue
		}
		started := time.Now()
		estimate, err := r.estimator.ValidateConnection(ctx, routes[i-1], route)
		r.metrics.ObserveFeasibilityRequest("validate_connection", time.Since(started))
		if err != nil {
			r.logger.Warn("connection estimate failed",
				zap.String("bus", bus.ID),
				zap.String("from", routes[i-1].ID),
				zap.String("to", route.ID),
				zap.Error(err))
			continue
		}
		travel := estimate.TravelTime
		if travel < 0 {
			travel = 0
		}
		minutes[route.ID] = travel
	}
	return minutes
}
