package terrain

import (
	"math"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/raster"
)

// DefaultTPIRadius is the default circular kernel radius (spec §4.6).
const DefaultTPIRadius = 3

// TPI computes elevation minus the mean of a circular kernel of the given
// radius (spec §4.6's Topographic Position Index). radius<=0 uses
// DefaultTPIRadius.
func TPI(elev *raster.Raster, radius int) (*raster.Raster, error) {
	if elev == nil || len(elev.Data) == 0 {
		return nil, apperr.New(apperr.KindProcessing, "tpi: empty elevation raster")
	}
	if radius <= 0 {
		radius = DefaultTPIRadius
	}

	data := toNaN(elev)
	offsets := circularKernelOffsets(radius)
	out := make([]float32, len(data))

	for y := 0; y < elev.Height; y++ {
		for x := 0; x < elev.Width; x++ {
			idx := y*elev.Width + x
			center := data[idx]
			if isNaN32(center) {
				out[idx] = float32(math.NaN())
				continue
			}

			var sum float64
			var n int
			for _, o := range offsets {
				nx, ny := x+o[0], y+o[1]
				if nx < 0 || nx >= elev.Width || ny < 0 || ny >= elev.Height {
					continue
				}
				v := data[ny*elev.Width+nx]
				if isNaN32(v) {
					continue
				}
				sum += float64(v)
				n++
			}
			if n == 0 {
				out[idx] = float32(math.NaN())
				continue
			}
			out[idx] = float32(float64(center) - sum/float64(n))
		}
	}

	restoreNodata(out, data)
	return &raster.Raster{Data: out, Width: elev.Width, Height: elev.Height, GeoTransform: elev.GeoTransform, Projection: elev.Projection, NoData: nodataSentinel, PixelSizeM: elev.PixelSizeM}, nil
}

// circularKernelOffsets enumerates integer pixel offsets within radius r of
// the origin (excluding the origin itself), forming the circular
// neighborhood a TPI kernel averages over.
func circularKernelOffsets(r int) [][2]int {
	var offsets [][2]int
	r2 := float64(r) * float64(r)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if float64(dx*dx+dy*dy) <= r2 {
				offsets = append(offsets, [2]int{dx, dy})
			}
		}
	}
	return offsets
}
