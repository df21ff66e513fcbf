// Package router implements the Geographic Router (spec §4.2): detects a
// rectangular region from a bbox's center and returns the deterministic,
// ordered adapter list for that region and data type. No direct teacher
// analog exists (the teacher is single-region by design); built fresh in
// the idiom of the taskqueue's deterministic task ordering.
package router

import (
	"context"
	"fmt"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/domain"
	"terrain-pipeline/internal/events"
	"terrain-pipeline/internal/sources"
)

// Region is a named rectangular detection zone (spec §4.2).
type Region string

const (
	RegionUS          Region = "US"
	RegionBrazil      Region = "BRAZIL"
	RegionAmazon      Region = "AMAZON"
	RegionSouthAmerica Region = "SOUTH_AMERICA"
	RegionGlobal      Region = "GLOBAL"
)

// rect is a simple rectangular detection box (inclusive).
type rect struct {
	region                   Region
	south, north, west, east float64
}

// detectionTable is checked top-to-bottom; the first match wins, giving
// deterministic, total detection (spec §8 invariant 5). Amazon (a subset
// of Brazil) and Brazil are checked before the broader South-America box.
var detectionTable = []rect{
	{RegionAmazon, -5, 6, -75, -45},
	{RegionBrazil, -34, 6, -75, -34},
	{RegionUS, 18, 72, -179, -65},
	{RegionSouthAmerica, -56, 13, -82, -34},
}

// DetectRegion returns the rectangular region containing bbox's center,
// defaulting to RegionGlobal when no table entry matches. Deterministic and
// total over every valid bbox (spec §8 invariant 5).
func DetectRegion(b domain.BBox) Region {
	lat := (b.South + b.North) / 2
	lng := (b.West + b.East) / 2
	for _, r := range detectionTable {
		if lat >= r.south && lat <= r.north && lng >= r.west && lng <= r.east {
			return r.region
		}
	}
	return RegionGlobal
}

// routingTable maps region -> data type -> ordered adapter names (spec
// §4.2: "a region's routing table maps data-type -> ordered adapter
// list").
var routingTable = map[Region]map[domain.DataType][]string{
	RegionAmazon: {
		domain.DataTypeElevation: {"brazilian_elevation", "opentopography", "ornl_daac"},
	},
	RegionBrazil: {
		domain.DataTypeElevation: {"brazilian_elevation", "opentopography", "ornl_daac"},
	},
	RegionUS: {
		domain.DataTypeElevation: {"usgs_3dep", "opentopography", "ornl_daac"},
		domain.DataTypeLAZ:       {"usgs_3dep"},
		domain.DataTypeImagery:   {"copernicus_sentinel2"},
	},
	RegionSouthAmerica: {
		domain.DataTypeElevation: {"opentopography", "ornl_daac"},
	},
	RegionGlobal: {
		domain.DataTypeElevation: {"opentopography", "ornl_daac"},
		domain.DataTypeImagery:   {"copernicus_sentinel2"},
	},
}

// SourceList returns the ordered adapter-name list for (region, dataType),
// falling back to the Global table when the region has no specific entry
// for that data type. Ordering is stable and deterministic for identical
// input (spec §4.2).
func SourceList(region Region, dataType domain.DataType) []string {
	if byType, ok := routingTable[region]; ok {
		if names, ok := byType[dataType]; ok {
			return append([]string{}, names...)
		}
	}
	if names, ok := routingTable[RegionGlobal][dataType]; ok {
		return append([]string{}, names...)
	}
	return nil
}

// Registry resolves adapter names to Adapter implementations.
type Registry map[string]sources.Adapter

// Router selects, orders, and fails over across Source Adapters (spec
// §4.2).
type Router struct {
	registry Registry
}

// New constructs a Router over the given adapter registry.
func New(registry Registry) *Router {
	return &Router{registry: registry}
}

// Route computes the region and ordered source list for a request,
// respecting an override list when supplied (spec §4.3 step 3).
func (r *Router) Route(b domain.BBox, dataType domain.DataType, override []string) (Region, []string) {
	region := DetectRegion(b)
	if len(override) > 0 {
		return region, append([]string{}, override...)
	}
	return region, SourceList(region, dataType)
}

// DownloadWithRouting iterates the ordered source list: for each adapter it
// calls CheckAvailability (skipping with a source_unavailable event on
// false), then Download; on success it augments Metadata with
// {routing_region, selected_source, source_priority, tried_sources} and
// returns; on failure it records the error and continues. If every adapter
// fails, it returns a single composite failure naming every tried source
// (spec §4.2).
func (r *Router) DownloadWithRouting(ctx context.Context, req domain.DownloadRequest, override []string, sink events.Sink) domain.DownloadResult {
	region, names := r.Route(req.BBox, req.DataType, override)
	sink.Emit(events.Event{Type: events.TypeRoutingInfo, Region: string(region), Sources: names})

	var tried []string
	var failMessages []string

	for i, name := range names {
		adapter, ok := r.registry[name]
		if !ok {
			continue
		}
		tried = append(tried, name)

		if !adapter.CheckAvailability(ctx, req) {
			sink.Emit(events.Event{Type: events.TypeSourceUnavailable, Source: name})
			continue
		}

		sink.Emit(events.Event{Type: events.TypeSourceSelected, Source: name, Priority: i})
		result := adapter.Download(ctx, req, sink)
		if result.Success {
			if result.Metadata == nil {
				result.Metadata = map[string]any{}
			}
			result.Metadata["routing_region"] = string(region)
			result.Metadata["selected_source"] = name
			result.Metadata["source_priority"] = i
			result.Metadata["tried_sources"] = append([]string{}, tried...)
			return result
		}

		sink.Emit(events.Event{Type: events.TypeSourceFailed, Source: name, Error: result.ErrorMessage})
		failMessages = append(failMessages, fmt.Sprintf("%s: %s", name, result.ErrorMessage))

		if apperr.IsKind(asErr(result), apperr.KindCancelled) {
			return result
		}
	}

	return domain.DownloadResult{
		Success:      false,
		ErrorMessage: fmt.Sprintf("all sources failed: %v", failMessages),
		Metadata: map[string]any{
			"routing_region": string(region),
			"tried_sources":  tried,
			"errors":         failMessages,
		},
	}
}

// asErr adapts a DownloadResult's string-kind metadata back into an error
// for apperr.IsKind checks, since adapters return DownloadResult rather
// than a raw error across this boundary.
func asErr(result domain.DownloadResult) error {
	kind, _ := result.Metadata["kind"].(string)
	if kind == "" {
		return nil
	}
	return apperr.New(apperr.Kind(kind), result.ErrorMessage)
}
