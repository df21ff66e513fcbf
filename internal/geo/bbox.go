// Package geo implements WGS84 bounding-box math: validation, spherical
// area, center, and buffer expansion. Grounded on mumuon-tile-service's use
// of paulmach/orb/geo for bound arithmetic and on the teacher's
// internal/downloads/common.go BoundingBox/ValidateCoordinates helpers.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"terrain-pipeline/internal/apperr"
)

// BoundingBox is a WGS84 rectangle: West < East, South < North.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Validate checks the invariants from spec §3: west<east, south<north, and
// all four coordinates within their domains.
func (b BoundingBox) Validate() error {
	if b.West < -180 || b.West > 180 || b.East < -180 || b.East > 180 {
		return apperr.New(apperr.KindInvalidCoordinates, "longitude out of [-180,180]")
	}
	if b.South < -90 || b.South > 90 || b.North < -90 || b.North > 90 {
		return apperr.New(apperr.KindInvalidCoordinates, "latitude out of [-90,90]")
	}
	if b.West >= b.East {
		return apperr.New(apperr.KindInvalidCoordinates, "west must be < east")
	}
	if b.South >= b.North {
		return apperr.New(apperr.KindInvalidCoordinates, "south must be < north")
	}
	return nil
}

// bound converts to an orb.Bound for geo.* computations.
func (b BoundingBox) bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// AreaKM2 returns the spherical-approximation area in square kilometers.
func (b BoundingBox) AreaKM2() float64 {
	return geo.Area(b.bound().ToRing()) / 1_000_000
}

// Center returns the (lat, lng) midpoint of the box.
func (b BoundingBox) Center() (lat, lng float64) {
	c := b.bound().Center()
	return c[1], c[0]
}

// Expand grows the box by bufferKM in every direction and returns a new box.
// It reuses the same latitude/longitude buffer conversion as buffer
// computation in the orchestrator (§4.3 step 2), substituting the longitude
// buffer with the latitude buffer near the poles to avoid blow-up of
// 1/cos(lat).
func (b BoundingBox) Expand(bufferKM float64) BoundingBox {
	lat, _ := b.Center()
	latBuf, lngBuf := bufferDegrees(lat, bufferKM)
	return BoundingBox{
		West:  b.West - lngBuf,
		South: b.South - latBuf,
		East:  b.East + lngBuf,
		North: b.North + latBuf,
	}
}

// bufferDegrees converts a kilometer buffer to (latitude, longitude) degree
// deltas at the given latitude, per spec §4.3 step 2.
func bufferDegrees(lat, bufferKM float64) (latDeg, lngDeg float64) {
	latDeg = bufferKM / 111.0
	if math.Abs(lat) > 89.9 {
		// Near the poles cos(lat) collapses toward zero; substitute the
		// latitude buffer to avoid a degenerate (or infinite) bbox.
		return latDeg, latDeg
	}
	lngDeg = bufferKM / (111.0 * math.Cos(lat*math.Pi/180.0))
	return latDeg, math.Abs(lngDeg)
}

// FromCenter builds a BoundingBox centered on (lat, lng) expanded by
// bufferKM in every direction — the Orchestrator's step 2 computation.
func FromCenter(lat, lng, bufferKM float64) BoundingBox {
	latDeg, lngDeg := bufferDegrees(lat, bufferKM)
	return BoundingBox{
		West:  lng - lngDeg,
		South: lat - latDeg,
		East:  lng + lngDeg,
		North: lat + latDeg,
	}
}

// ValidateCoordinates checks a bare (lat, lng) pair independent of any bbox.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return apperr.New(apperr.KindInvalidCoordinates, "latitude out of [-90,90]")
	}
	if lng < -180 || lng > 180 {
		return apperr.New(apperr.KindInvalidCoordinates, "longitude out of [-180,180]")
	}
	return nil
}
