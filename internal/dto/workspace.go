package dto

import "github.com/rutaescolar/planner-api/internal/models"

// LoadScheduleRequest replaces the whole workspace with an external schedule.
// Buses and routes arrive in whatever shape the optimizer produced; the
// normalizer reconciles them.
type LoadScheduleRequest struct {
	Day             string            `json:"day" validate:"omitempty,weekday"`
	Mode            string            `json:"mode"`
	Buses           []models.RawBus   `json:"buses"`
	AvailableRoutes []models.RawRoute `json:"available_routes"`
}

// SwitchDayRequest activates another weekday.
type SwitchDayRequest struct {
	Day string `json:"day" validate:"required,weekday"`
}

// DropRouteRequest places a route onto a bus. Route carries the full payload
// for routes the workspace has not seen yet; known routes only need the id.
type DropRouteRequest struct {
	RouteID     string           `json:"route_id"`
	Route       *models.RawRoute `json:"route,omitempty"`
	TargetBusID string           `json:"target_bus_id" validate:"required"`
}

// TransferRequest parks a route in the holding area.
type TransferRequest struct {
	RouteID string `json:"route_id" validate:"required"`
}

// FromTransferRequest places a parked route onto a bus; an empty target
// creates a new bus.
type FromTransferRequest struct {
	RouteID     string `json:"route_id" validate:"required"`
	TargetBusID string `json:"target_bus_id"`
}

// CreateBusRequest seeds a new bus with one route.
type CreateBusRequest struct {
	RouteID string `json:"route_id" validate:"required"`
}

// ValidateRequest runs the whole-schedule validation.
type ValidateRequest struct {
	Persist bool `json:"persist"`
}

// RefreshRequest forces a positioning refresh; empty bus ids means the whole
// fleet.
type RefreshRequest struct {
	BusIDs []string `json:"bus_ids"`
}

// WorkspaceView is the full aggregate projection returned after reads and
// mutations.
type WorkspaceView struct {
	Day             string                             `json:"day"`
	Buses           []models.Bus                       `json:"buses"`
	AvailableRoutes []models.Route                     `json:"available_routes"`
	TransferRoutes  []models.Route                     `json:"transfer_routes"`
	Validation      map[string]models.ValidationResult `json:"validation"`
	ReportStale     bool                               `json:"report_stale"`
	Feasibility     string                             `json:"feasibility_state"`
}

// PublishResponse returns the archived version id.
type PublishResponse struct {
	VersionID string `json:"version_id"`
}
