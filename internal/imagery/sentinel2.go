// Package imagery implements the Sentinel-2 band-conversion step (spec §3,
// §6, §8 invariant 10): splits the packed four-band GeoTIFF the Copernicus
// adapter downloads into individual band rasters and, only when the
// region's NDVI flag is enabled, derives an NDVI raster from the Red/NIR
// pair. Grounded on internal/pipeline/derivatives.go's read-compute-write
// task shape and internal/sources/copernicus.go's evalscript band order.
package imagery

import (
	"context"
	"os"
	"path/filepath"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/events"
	"terrain-pipeline/internal/raster"
	"terrain-pipeline/internal/region"
)

// sentinelBands is the fixed packed-band order the Copernicus Process API
// evalscript requests (B02, B03, B04, B08), matching
// internal/sources/copernicus.go's processRequestBody.
var sentinelBands = []string{"Blue", "Green", "Red", "NIR"}

// Result is the Sentinel-2 conversion step's outcome.
type Result struct {
	RegionSlug  string
	BandPaths   map[string]string
	NDVIWritten bool
}

// Convert splits packedPath's four bands into <band>.tif files under
// input/<slug>/sentinel2/, then consults the region's persisted NDVI flag
// (spec §3: "downstream Sentinel-2 conversion must consult it and refuse to
// emit NDVI artifacts when false") before computing NDVI.tif from the
// Red/NIR pair. A failure to read or write any band (or NDVI) aborts the
// whole step and returns the error.
func Convert(store *region.Store, slug, packedPath string) (Result, error) {
	outDir := filepath.Join(store.InputDir(slug), "sentinel2")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, apperr.Wrap(apperr.KindProcessing, "create sentinel2 output dir", err)
	}

	result := Result{RegionSlug: slug, BandPaths: map[string]string{}}
	bands := make(map[string]*raster.Raster, len(sentinelBands))

	for i, name := range sentinelBands {
		r, err := raster.ReadBand(packedPath, i)
		if err != nil {
			return Result{}, apperr.Wrap(apperr.KindProcessing, "read sentinel2 band "+name, err)
		}
		bands[name] = r

		bandPath := filepath.Join(outDir, name+".tif")
		if err := raster.WriteGeoTIFF(bandPath, r, raster.WriteOptions{}); err != nil {
			return Result{}, apperr.Wrap(apperr.KindProcessing, "write sentinel2 band "+name, err)
		}
		result.BandPaths[name] = bandPath
	}

	meta, err := store.ReadMetadata(slug)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindProcessing, "read region metadata for ndvi gate", err)
	}
	if !meta.NDVIEnabled {
		return result, nil
	}

	red, nir := bands["Red"], bands["NIR"]
	ndvi := computeNDVI(red, nir)
	ndviPath := filepath.Join(outDir, "NDVI.tif")
	if err := raster.WriteGeoTIFF(ndviPath, ndvi, raster.WriteOptions{}); err != nil {
		return Result{}, apperr.Wrap(apperr.KindProcessing, "write sentinel2 NDVI", err)
	}
	result.BandPaths["NDVI"] = ndviPath
	result.NDVIWritten = true

	return result, nil
}

// computeNDVI derives (NIR-Red)/(NIR+Red) pixel-wise, writing NoData
// wherever either input is NoData or the denominator is zero.
func computeNDVI(red, nir *raster.Raster) *raster.Raster {
	out := &raster.Raster{
		Data:         make([]float32, len(red.Data)),
		Width:        red.Width,
		Height:       red.Height,
		GeoTransform: red.GeoTransform,
		Projection:   red.Projection,
		NoData:       -9999,
		PixelSizeM:   red.PixelSizeM,
	}
	for i := range red.Data {
		r, n := red.Data[i], nir.Data[i]
		if r == red.NoData || n == nir.NoData || (r+n) == 0 {
			out.Data[i] = out.NoData
			continue
		}
		out.Data[i] = (n - r) / (n + r)
	}
	return out
}

// Trigger adapts Convert into an orchestrator.ConversionTrigger, emitting
// processing_progress/processing_error events so imagery acquisitions
// report conversion status the same way elevation acquisitions report
// derivative progress (spec §4.7's event shape, reused here for §3's
// conversion step). A conversion failure is emitted as a processing_error
// event, not propagated: the acquisition itself already succeeded and
// registered its region.
func Trigger(store *region.Store) func(ctx context.Context, slug, filePath string, sink events.Sink) {
	return func(ctx context.Context, slug, filePath string, sink events.Sink) {
		sink.Emit(events.Event{Type: events.TypeProcessingProgress, Message: "sentinel2 band conversion started", Progress: 0})

		if _, err := Convert(store, slug, filePath); err != nil {
			sink.Emit(events.Event{Type: events.TypeProcessingError, Error: err.Error()})
			return
		}

		sink.Emit(events.Event{Type: events.TypeProcessingCompleted, Message: "sentinel2 band conversion completed", Progress: 100})
	}
}
