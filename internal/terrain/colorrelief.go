package terrain

import (
	"math"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/raster"
)

// ColorRelief normalizes elev min/max to [0,1] and maps it through stops
// (spec §4.6's 6-stop terrain colormap by default via raster.TerrainColormap)
// producing a 3-band 8-bit image.
func ColorRelief(elev *raster.Raster, stops []raster.ColorStop) (raster.RGB8, error) {
	if elev == nil || len(elev.Data) == 0 {
		return raster.RGB8{}, apperr.New(apperr.KindProcessing, "color relief: empty elevation raster")
	}
	if stops == nil {
		stops = raster.TerrainColormap()
	}

	data := toNaN(elev)
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if isNaN32(v) {
			continue
		}
		f := float64(v)
		if f < minV {
			minV = f
		}
		if f > maxV {
			maxV = f
		}
	}
	if math.IsInf(minV, 1) {
		return raster.RGB8{}, apperr.New(apperr.KindProcessing, "color relief: raster is entirely nodata")
	}

	norm := make([]float32, len(data))
	span := maxV - minV
	for i, v := range data {
		if isNaN32(v) {
			norm[i] = float32(math.NaN())
			continue
		}
		if span == 0 {
			norm[i] = 0
			continue
		}
		norm[i] = float32((float64(v) - minV) / span)
	}

	return raster.ApplyColormap(norm, elev.Width, elev.Height, stops), nil
}
