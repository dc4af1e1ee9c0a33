package models

// ScheduleData is the persisted snapshot shape shared with the legacy store.
type ScheduleData struct {
	Day   string            `json:"day"`
	Mode  string            `json:"mode"`
	Buses []ScheduleBusData `json:"buses"`
	Stats ScheduleStats     `json:"stats"`
}

// ScheduleBusData is one bus inside a persisted snapshot.
type ScheduleBusData struct {
	BusID string             `json:"bus_id"`
	Items []ScheduleItemData `json:"items"`
}

// ScheduleItemData is one assigned route inside a persisted snapshot.
type ScheduleItemData struct {
	RouteID            string    `json:"route_id"`
	RouteCode          string    `json:"route_code"`
	StartTime          string    `json:"start_time"`
	EndTime            string    `json:"end_time"`
	Origin             string    `json:"origin"`
	Destination        string    `json:"destination"`
	Type               string    `json:"type"`
	Order              int       `json:"order"`
	SchoolName         string    `json:"school_name"`
	Stops              []Stop    `json:"stops,omitempty"`
	StartLocation      []float64 `json:"start_location,omitempty"`
	EndLocation        []float64 `json:"end_location,omitempty"`
	DeadheadMinutes    int       `json:"deadhead_minutes"`
	CapacityNeeded     int       `json:"capacity_needed"`
	VehicleCapacityMin int       `json:"vehicle_capacity_min,omitempty"`
	VehicleCapacityMax int       `json:"vehicle_capacity_max,omitempty"`
	VehicleCapacity    string    `json:"vehicle_capacity_range,omitempty"`
	ContractID         string    `json:"contract_id,omitempty"`
	IsLocked           bool      `json:"is_locked"`
}

// ScheduleStats summarises a snapshot.
type ScheduleStats struct {
	TotalBuses  int `json:"total_buses"`
	TotalRoutes int `json:"total_routes"`
}

// DayValidationPayload is the whole-schedule validation request unit.
type DayValidationPayload struct {
	Day   string               `json:"day"`
	Buses []BusValidationEntry `json:"buses"`
}

// BusValidationEntry carries one bus worth of routes for validation.
type BusValidationEntry struct {
	BusID  string                 `json:"bus_id"`
	Routes []RouteValidationEntry `json:"routes"`
}

// RouteValidationEntry is the trimmed route shape the validator consumes.
type RouteValidationEntry struct {
	ID            string    `json:"id"`
	RouteID       string    `json:"route_id"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	Type          string    `json:"type"`
	SchoolName    string    `json:"school_name"`
	StartLocation []float64 `json:"start_location,omitempty"`
	EndLocation   []float64 `json:"end_location,omitempty"`
}
