// Package terrain is the Terrain Processor (spec §4.6): pure-function
// raster algorithms consuming the Raster I/O Facade — hillshade, slope,
// aspect, TPI, LRM, SVF visualization, CHM, and color relief. Grounded on
// _examples/other_examples/c4178b4c_Klaus-Tockloth-dtm-elevation-service__slope.go.go
// for algorithm naming/validation conventions (that file shells out to
// gdaldem; this package instead implements the math directly over float32
// arrays per spec §4.6's pure-function framing, using gonum/stat for
// percentile clipping since no example repo shells out in a way compatible
// with that framing — see DESIGN.md).
package terrain

import (
	"math"

	"terrain-pipeline/internal/raster"
)

const nodataSentinel = float32(-9999)

// toNaN converts r's nodata sentinel to NaN in a fresh slice, implementing
// spec §4.6's nodata contract ("input nodata is converted to NaN before
// numerical ops").
func toNaN(r *raster.Raster) []float32 {
	out := make([]float32, len(r.Data))
	for i, v := range r.Data {
		if v == r.NoData || isNaN32(v) {
			out[i] = float32(math.NaN())
			continue
		}
		out[i] = v
	}
	return out
}

func isNaN32(v float32) bool { return v != v }

// restoreNodata writes nodataSentinel into out wherever mask reports NaN,
// implementing the second half of the nodata contract ("operations that
// produce a valid result restore -9999 in output masked positions").
func restoreNodata(out []float32, mask []float32) {
	for i, v := range mask {
		if isNaN32(v) {
			out[i] = nodataSentinel
		}
	}
}

// clampIdx clamps i into [0, n-1], used for edge-replicated central
// differences (no dedicated edge handling beyond clamping, matching the
// spec's terse algorithm descriptions).
func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// centralGradient computes (dz/dx, dz/dy) at (x,y) via central differences
// scaled by zFactor/cellsize, per spec §4.6's hillshade/slope/aspect input.
// Returns (NaN, NaN) if any sample in the 4-neighborhood is NaN, so a
// scalar computation is never performed on masked values.
func centralGradient(data []float32, width, height, x, y int, cellSize, zFactor float64) (dx, dy float64) {
	xm := clampIdx(x-1, width)
	xp := clampIdx(x+1, width)
	ym := clampIdx(y-1, height)
	yp := clampIdx(y+1, height)

	w := data[y*width+xm]
	e := data[y*width+xp]
	s := data[ym*width+x]
	n := data[yp*width+x]
	if isNaN32(w) || isNaN32(e) || isNaN32(s) || isNaN32(n) {
		return math.NaN(), math.NaN()
	}

	dx = float64(e-w) / (2 * cellSize) * zFactor
	dy = float64(n-s) / (2 * cellSize) * zFactor
	return dx, dy
}
