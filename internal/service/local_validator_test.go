package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutaescolar/planner-api/internal/models"
	"github.com/rutaescolar/planner-api/pkg/config"
)

func newTestValidator() *LocalValidator {
	return NewLocalValidator(config.WorkspaceConfig{
		ShortBufferMinutes:     10,
		TightPositioningMargin: 5,
	})
}

func busWith(routes ...models.Route) models.Bus {
	return models.Bus{ID: "B001", Type: models.BusTypeStandard, Routes: routes}
}

func TestValidatorOverlapIsError(t *testing.T) {
	v := newTestValidator()
	result := v.validateBus(busWith(
		models.Route{ID: "r1", Code: "A", StartTime: "08:00", EndTime: "09:00"},
		models.Route{ID: "r2", Code: "B", StartTime: "08:30", EndTime: "09:30"},
	))

	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.IssueOverlap, result.Errors[0].Type)
	assert.Equal(t, "r2", result.Errors[0].RouteID)
	assert.Empty(t, result.Warnings)

	// The issue is attributed to the later route.
	routeIssues := result.Routes["r2"]
	require.Len(t, routeIssues.Errors, 1)
	assert.Empty(t, result.Routes["r1"].Errors)
}

func TestValidatorPositioningInfeasible(t *testing.T) {
	v := newTestValidator()
	// 30 min window, 40 min of deadhead needed.
	result := v.validateBus(busWith(
		models.Route{ID: "r1", Code: "A", StartTime: "08:00", EndTime: "09:00"},
		models.Route{ID: "r2", Code: "B", StartTime: "09:30", EndTime: "10:30", PositioningMinutes: 40},
	))

	require.Len(t, result.Errors, 1)
	assert.Equal(t, models.IssuePositioningInfeasible, result.Errors[0].Type)
	assert.Equal(t, 30, result.Errors[0].WindowMinutes)
	assert.Equal(t, 40, result.Errors[0].PositioningMinutes)
}

func TestValidatorPositioningTight(t *testing.T) {
	v := newTestValidator()
	// 30 min window, 27 min of deadhead: margin 3 <= 5.
	result := v.validateBus(busWith(
		models.Route{ID: "r1", Code: "A", StartTime: "08:00", EndTime: "09:00"},
		models.Route{ID: "r2", Code: "B", StartTime: "09:30", EndTime: "10:30", PositioningMinutes: 27},
	))

	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, models.IssuePositioningTight, result.Warnings[0].Type)
	assert.Equal(t, 3, result.Warnings[0].MarginMinutes)
}

func TestValidatorShortBuffer(t *testing.T) {
	v := newTestValidator()
	// 8 min window, no deadhead.
	result := v.validateBus(busWith(
		models.Route{ID: "r1", Code: "A", StartTime: "08:00", EndTime: "09:00"},
		models.Route{ID: "r2", Code: "B", StartTime: "09:08", EndTime: "10:00"},
	))

	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, models.IssueShortBuffer, result.Warnings[0].Type)
}

func TestValidatorBranchesAreExclusive(t *testing.T) {
	v := newTestValidator()
	// margin 3 with positioning: tight wins even though the window is also
	// below the short-buffer threshold.
	result := v.validateBus(busWith(
		models.Route{ID: "r1", Code: "A", StartTime: "08:00", EndTime: "09:00"},
		models.Route{ID: "r2", Code: "B", StartTime: "09:08", EndTime: "10:00", PositioningMinutes: 5},
	))

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, models.IssuePositioningTight, result.Warnings[0].Type)
}

func TestValidatorTouchingRoutesAreNotOverlap(t *testing.T) {
	v := newTestValidator()
	result := v.validateBus(busWith(
		models.Route{ID: "r1", Code: "A", StartTime: "08:00", EndTime: "09:00"},
		models.Route{ID: "r2", Code: "B", StartTime: "09:00", EndTime: "10:00"},
	))

	assert.Empty(t, result.Errors)
	// Zero buffer is a short-buffer warning, not an overlap.
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, models.IssueShortBuffer, result.Warnings[0].Type)
}

func TestValidatorCleanSchedule(t *testing.T) {
	v := newTestValidator()
	result := v.validateBus(busWith(
		models.Route{ID: "r1", Code: "A", StartTime: "08:00", EndTime: "09:00"},
		models.Route{ID: "r2", Code: "B", StartTime: "09:30", EndTime: "10:30", PositioningMinutes: 10},
	))

	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.False(t, result.HasErrors())
}

func TestFleetHasErrors(t *testing.T) {
	v := newTestValidator()
	buses := []models.Bus{
		busWith(
			models.Route{ID: "r1", Code: "A", StartTime: "08:00", EndTime: "09:00"},
			models.Route{ID: "r2", Code: "B", StartTime: "08:30", EndTime: "09:30"},
		),
		{ID: "B002", Routes: []models.Route{}},
	}
	results := v.ValidateBuses(buses)
	assert.True(t, FleetHasErrors(results))
	assert.False(t, results["B002"].HasErrors())
}
