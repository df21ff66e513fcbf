package terrain

import (
	"math"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/raster"
)

// Slope computes deg(atan(sqrt(dx^2+dy^2))) per pixel (spec §4.6), float32
// output. Masked input positions propagate to nodata output positions.
func Slope(elev *raster.Raster) (*raster.Raster, error) {
	if elev == nil || len(elev.Data) == 0 {
		return nil, apperr.New(apperr.KindProcessing, "slope: empty elevation raster")
	}

	data := toNaN(elev)
	out := make([]float32, len(data))
	cellSize := elev.PixelSizeM
	if cellSize <= 0 {
		cellSize = 1
	}

	for y := 0; y < elev.Height; y++ {
		for x := 0; x < elev.Width; x++ {
			idx := y*elev.Width + x
			dx, dy := centralGradient(data, elev.Width, elev.Height, x, y, cellSize, 1.0)
			if math.IsNaN(dx) {
				out[idx] = float32(math.NaN())
				continue
			}
			out[idx] = float32(math.Atan(math.Hypot(dx, dy)) * 180 / math.Pi)
		}
	}

	restoreNodata(out, data)
	return &raster.Raster{Data: out, Width: elev.Width, Height: elev.Height, GeoTransform: elev.GeoTransform, Projection: elev.Projection, NoData: nodataSentinel, PixelSizeM: elev.PixelSizeM}, nil
}

// Aspect computes (deg(atan2(-dx, dy)) + 360) mod 360 per pixel (spec §4.6),
// float32 output.
func Aspect(elev *raster.Raster) (*raster.Raster, error) {
	if elev == nil || len(elev.Data) == 0 {
		return nil, apperr.New(apperr.KindProcessing, "aspect: empty elevation raster")
	}

	data := toNaN(elev)
	out := make([]float32, len(data))
	cellSize := elev.PixelSizeM
	if cellSize <= 0 {
		cellSize = 1
	}

	for y := 0; y < elev.Height; y++ {
		for x := 0; x < elev.Width; x++ {
			idx := y*elev.Width + x
			dx, dy := centralGradient(data, elev.Width, elev.Height, x, y, cellSize, 1.0)
			if math.IsNaN(dx) {
				out[idx] = float32(math.NaN())
				continue
			}
			deg := math.Atan2(-dx, dy) * 180 / math.Pi
			deg = math.Mod(deg+360, 360)
			out[idx] = float32(deg)
		}
	}

	restoreNodata(out, data)
	return &raster.Raster{Data: out, Width: elev.Width, Height: elev.Height, GeoTransform: elev.GeoTransform, Projection: elev.Projection, NoData: nodataSentinel, PixelSizeM: elev.PixelSizeM}, nil
}
