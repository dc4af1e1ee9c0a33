package models

// BusTypeStandard is the only fleet type the workspace edits today.
const BusTypeStandard = "standard"

// Bus is an ordered sequence of non-overlapping routes for one vehicle-day.
// Routes stay chronological by start time (ties: end time, then code).
type Bus struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Routes []Route `json:"routes"`
}

// Clone returns a deep copy so heuristic passes can work on private state.
func (b Bus) Clone() Bus {
	out := Bus{ID: b.ID, Type: b.Type}
	if b.Routes != nil {
		out.Routes = make([]Route, len(b.Routes))
		copy(out.Routes, b.Routes)
		for i := range out.Routes {
			out.Routes[i] = out.Routes[i].cloneLocations()
		}
	}
	return out
}

// CloneBuses deep copies a full fleet snapshot.
func CloneBuses(buses []Bus) []Bus {
	out := make([]Bus, len(buses))
	for i, b := range buses {
		out[i] = b.Clone()
	}
	return out
}

func (r Route) cloneLocations() Route {
	if r.Stops != nil {
		stops := make([]Stop, len(r.Stops))
		copy(stops, r.Stops)
		r.Stops = stops
	}
	if r.StartLocation != nil {
		loc := make([]float64, len(r.StartLocation))
		copy(loc, r.StartLocation)
		r.StartLocation = loc
	}
	if r.EndLocation != nil {
		loc := make([]float64, len(r.EndLocation))
		copy(loc, r.EndLocation)
		r.EndLocation = loc
	}
	return r
}
