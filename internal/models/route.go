package models

// RouteType distinguishes entry (to-school) from exit (from-school) trips.
type RouteType string

const (
	RouteTypeEntry RouteType = "entry"
	RouteTypeExit  RouteType = "exit"
)

// Stop is a single pickup/dropoff point within a route.
type Stop struct {
	Name          string  `json:"name"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	TimeFromStart int     `json:"time_from_start"`
	Passengers    int     `json:"passengers"`
	IsSchool      bool    `json:"is_school"`
	Order         int     `json:"order"`
}

// Route is the canonical internal trip record. ID is stable across moves.
// PositioningMinutes is derived (deadhead from the previous route on the same
// bus) and recomputed whenever the bus order or neighbouring timing changes.
type Route struct {
	ID                   string    `json:"id"`
	Code                 string    `json:"code"`
	StartTime            string    `json:"startTime"`
	EndTime              string    `json:"endTime"`
	Origin               string    `json:"origin"`
	Destination          string    `json:"destination"`
	Type                 RouteType `json:"type"`
	Stops                []Stop    `json:"stops,omitempty"`
	School               string    `json:"school"`
	PositioningMinutes   int       `json:"positioningMinutes"`
	CapacityNeeded       int       `json:"capacityNeeded"`
	VehicleCapacityMin   int       `json:"vehicleCapacityMin,omitempty"`
	VehicleCapacityMax   int       `json:"vehicleCapacityMax,omitempty"`
	VehicleCapacityRange string    `json:"vehicleCapacityRange,omitempty"`
	StartLocation        []float64 `json:"start_location,omitempty"`
	EndLocation          []float64 `json:"end_location,omitempty"`
	ContractID           string    `json:"contract_id,omitempty"`
	IsLocked             bool      `json:"is_locked,omitempty"`
}

// RawRoute covers the heterogeneous shapes the backend optimizer and file
// imports produce. The normalizer collapses it into a Route.
type RawRoute struct {
	ID                 string    `json:"id"`
	RouteID            string    `json:"route_id"`
	Code               string    `json:"code"`
	RouteCode          string    `json:"route_code"`
	StartTime          string    `json:"startTime"`
	StartTimeSnake     string    `json:"start_time"`
	EndTime            string    `json:"endTime"`
	EndTimeSnake       string    `json:"end_time"`
	Origin             string    `json:"origin"`
	Destination        string    `json:"destination"`
	Type               string    `json:"type"`
	Stops              []Stop    `json:"stops,omitempty"`
	School             string    `json:"school"`
	SchoolName         string    `json:"school_name"`
	PositioningMinutes int       `json:"positioningMinutes"`
	DeadheadMinutes    int       `json:"deadhead_minutes"`
	CapacityNeeded     int       `json:"capacityNeeded"`
	CapacityNeededAlt  int       `json:"capacity_needed"`
	VehicleCapacityMin int       `json:"vehicle_capacity_min"`
	VehicleCapacityMax int       `json:"vehicle_capacity_max"`
	VehicleCapacity    string    `json:"vehicle_capacity_range"`
	StartLocation      []float64 `json:"start_location,omitempty"`
	EndLocation        []float64 `json:"end_location,omitempty"`
	ContractID         string    `json:"contract_id"`
	IsLocked           bool      `json:"is_locked"`
}

// RawBus is an imported bus before id normalization and route dedupe.
type RawBus struct {
	ID       string     `json:"id"`
	BusID    string     `json:"bus_id"`
	Type     string     `json:"type"`
	Routes   []RawRoute `json:"routes,omitempty"`
	Items    []RawRoute `json:"items,omitempty"`
	Vehicle  string     `json:"vehicle,omitempty"`
	Capacity int        `json:"capacity,omitempty"`
}
