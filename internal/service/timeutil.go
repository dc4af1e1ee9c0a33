package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rutaescolar/planner-api/internal/models"
)

// ParseClockMinutes converts "HH:MM" into minutes since midnight. Returns -1
// for anything it cannot parse; callers treat that as "no time".
func ParseClockMinutes(raw string) int {
	raw = strings.TrimSpace(raw)
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return -1
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return -1
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return -1
	}
	return hours*60 + minutes
}

// FormatClockMinutes renders minutes since midnight as "HH:MM".
func FormatClockMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", (minutes/60)%24, minutes%60)
}

// Overlaps tests half-open interval intersection in minutes. Touching
// endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// RoutesOverlap applies the interval test to two routes' clock times.
func RoutesOverlap(a, b models.Route) bool {
	return Overlaps(
		ParseClockMinutes(a.StartTime), ParseClockMinutes(a.EndTime),
		ParseClockMinutes(b.StartTime), ParseClockMinutes(b.EndTime),
	)
}

// NormalizeBusID canonicalises heterogeneous bus ids to "B" + zero-padded
// integer. Ids without a numeric suffix pass through trimmed and uppercased.
func NormalizeBusID(raw string) string {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if id == "" {
		return ""
	}
	digits := strings.TrimLeft(id, "BUS-_ ")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return id
	}
	return FormatBusID(n)
}

// FormatBusID renders a numeric suffix as the canonical bus id.
func FormatBusID(n int) string {
	return fmt.Sprintf("B%03d", n)
}

// BusNumericSuffix extracts the numeric suffix of a canonical bus id, or -1.
func BusNumericSuffix(id string) int {
	trimmed := strings.TrimLeft(strings.ToUpper(strings.TrimSpace(id)), "BUS-_ ")
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return -1
	}
	return n
}

// NextBusID picks max(existing numeric suffixes)+1, zero-padded to 3 digits.
func NextBusID(buses []models.Bus) string {
	highest := 0
	for _, bus := range buses {
		if n := BusNumericSuffix(bus.ID); n > highest {
			highest = n
		}
	}
	return FormatBusID(highest + 1)
}

// SortRoutesChrono orders routes by start time, ties broken by end time then
// by code. Sorting is stable so equal routes keep insertion order.
func SortRoutesChrono(routes []models.Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		si, sj := ParseClockMinutes(routes[i].StartTime), ParseClockMinutes(routes[j].StartTime)
		if si != sj {
			return si < sj
		}
		ei, ej := ParseClockMinutes(routes[i].EndTime), ParseClockMinutes(routes[j].EndTime)
		if ei != ej {
			return ei < ej
		}
		return routes[i].Code < routes[j].Code
	})
}

// DedupeRoutesByID drops later duplicates, preserving first occurrence order.
func DedupeRoutesByID(routes []models.Route) []models.Route {
	seen := make(map[string]struct{}, len(routes))
	out := routes[:0]
	for _, route := range routes {
		if _, dup := seen[route.ID]; dup {
			continue
		}
		seen[route.ID] = struct{}{}
		out = append(out, route)
	}
	return out
}

// ChronologicalInsertIndex returns the first position whose existing route
// starts later than the incoming route; appends otherwise.
func ChronologicalInsertIndex(routes []models.Route, incoming models.Route) int {
	start := ParseClockMinutes(incoming.StartTime)
	for i, existing := range routes {
		if ParseClockMinutes(existing.StartTime) > start {
			return i
		}
	}
	return len(routes)
}

// SortBusesByID orders a fleet by numeric suffix, non-numeric ids last.
func SortBusesByID(buses []models.Bus) {
	sort.SliceStable(buses, func(i, j int) bool {
		ni, nj := BusNumericSuffix(buses[i].ID), BusNumericSuffix(buses[j].ID)
		if ni >= 0 && nj >= 0 {
			return ni < nj
		}
		if ni >= 0 {
			return true
		}
		if nj >= 0 {
			return false
		}
		return buses[i].ID < buses[j].ID
	})
}
