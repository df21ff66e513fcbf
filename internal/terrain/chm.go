package terrain

import (
	"math"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/raster"
)

// CHM computes max(DSM-DTM, 0) per pixel (spec §4.6, GLOSSARY). Pixels
// where either input is nodata are nodata in the output (spec §8 invariant
// 7); dsm and dtm must share dimensions.
func CHM(dsm, dtm *raster.Raster) (*raster.Raster, error) {
	if dsm == nil || dtm == nil {
		return nil, apperr.New(apperr.KindMissingDSM, "chm: dsm or dtm raster missing")
	}
	if dsm.Width != dtm.Width || dsm.Height != dtm.Height {
		return nil, apperr.New(apperr.KindProcessing, "chm: dsm/dtm dimension mismatch")
	}

	dsmNaN := toNaN(dsm)
	dtmNaN := toNaN(dtm)
	out := make([]float32, len(dsmNaN))

	for i := range out {
		a, b := dsmNaN[i], dtmNaN[i]
		if isNaN32(a) || isNaN32(b) {
			out[i] = float32(math.NaN())
			continue
		}
		v := a - b
		if v < 0 {
			v = 0
		}
		out[i] = v
	}

	restoreNodata(out, dsmNaN)
	restoreNodata(out, dtmNaN)

	return &raster.Raster{Data: out, Width: dsm.Width, Height: dsm.Height, GeoTransform: dsm.GeoTransform, Projection: dsm.Projection, NoData: nodataSentinel, PixelSizeM: dsm.PixelSizeM}, nil
}
