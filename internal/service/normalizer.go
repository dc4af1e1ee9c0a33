package service

import (
	"fmt"
	"strings"

	"github.com/rutaescolar/planner-api/internal/models"
)

// NormalizeRoute collapses the optimizer/import route shapes into the
// canonical record. Field aliases win in declaration order: camelCase first,
// then the snake_case legacy names.
func NormalizeRoute(raw models.RawRoute) models.Route {
	id := firstNonEmpty(raw.ID, raw.RouteID)
	code := firstNonEmpty(raw.Code, raw.RouteCode, id)

	routeType := models.RouteType(strings.ToLower(strings.TrimSpace(raw.Type)))
	if routeType != models.RouteTypeEntry && routeType != models.RouteTypeExit {
		routeType = models.RouteTypeEntry
	}

	positioning := raw.PositioningMinutes
	if positioning == 0 {
		positioning = raw.DeadheadMinutes
	}
	if positioning < 0 {
		positioning = 0
	}

	capacity := raw.CapacityNeeded
	if capacity == 0 {
		capacity = raw.CapacityNeededAlt
	}
	if capacity < 0 {
		capacity = 0
	}

	return models.Route{
		ID:                   id,
		Code:                 code,
		StartTime:            firstNonEmpty(raw.StartTime, raw.StartTimeSnake),
		EndTime:              firstNonEmpty(raw.EndTime, raw.EndTimeSnake),
		Origin:               raw.Origin,
		Destination:          raw.Destination,
		Type:                 routeType,
		Stops:                raw.Stops,
		School:               firstNonEmpty(raw.School, raw.SchoolName),
		PositioningMinutes:   positioning,
		CapacityNeeded:       capacity,
		VehicleCapacityMin:   raw.VehicleCapacityMin,
		VehicleCapacityMax:   raw.VehicleCapacityMax,
		VehicleCapacityRange: raw.VehicleCapacity,
		StartLocation:        raw.StartLocation,
		EndLocation:          raw.EndLocation,
		ContractID:           raw.ContractID,
		IsLocked:             raw.IsLocked,
	}
}

// NormalizeBuses converts imported buses to the internal shape: ids
// normalized, buses sharing a normalized id merged, routes deduplicated and
// chronologically sorted. Buses without any id get a fresh one.
func NormalizeBuses(raw []models.RawBus) []models.Bus {
	merged := make(map[string]*models.Bus)
	var order []string

	for _, rb := range raw {
		id := NormalizeBusID(firstNonEmpty(rb.ID, rb.BusID))

		items := rb.Routes
		if len(items) == 0 {
			items = rb.Items
		}
		routes := make([]models.Route, 0, len(items))
		for _, item := range items {
			route := NormalizeRoute(item)
			if route.ID == "" {
				continue
			}
			routes = append(routes, route)
		}

		if id == "" {
			id = fmt.Sprintf("pending-%d", len(order))
		}
		bus, ok := merged[id]
		if !ok {
			bus = &models.Bus{ID: id, Type: models.BusTypeStandard}
			merged[id] = bus
			order = append(order, id)
		}
		bus.Routes = append(bus.Routes, routes...)
	}

	buses := make([]models.Bus, 0, len(order))
	for _, id := range order {
		bus := merged[id]
		bus.Routes = DedupeRoutesByID(bus.Routes)
		SortRoutesChrono(bus.Routes)
		buses = append(buses, *bus)
	}

	return EnsureUniqueBusIDs(buses)
}

// EnsureUniqueBusIDs deterministically renumbers id collisions and placeholder
// ids by incrementing past the highest numeric suffix already present.
func EnsureUniqueBusIDs(buses []models.Bus) []models.Bus {
	highest := 0
	for _, bus := range buses {
		if n := BusNumericSuffix(bus.ID); n > highest {
			highest = n
		}
	}

	seen := make(map[string]struct{}, len(buses))
	out := make([]models.Bus, len(buses))
	for i, bus := range buses {
		id := bus.ID
		if _, dup := seen[id]; dup || !strings.HasPrefix(id, "B") || BusNumericSuffix(id) < 0 {
			highest++
			id = FormatBusID(highest)
		}
		seen[id] = struct{}{}
		bus.ID = id
		out[i] = bus
	}

	SortBusesByID(out)
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
