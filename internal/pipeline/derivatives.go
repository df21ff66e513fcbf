package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/config"
	"terrain-pipeline/internal/events"
	"terrain-pipeline/internal/raster"
	"terrain-pipeline/internal/region"
	"terrain-pipeline/internal/terrain"
	"terrain-pipeline/internal/worldfile"
)

// RunCHM computes the Canopy Height Model for a region (spec §4.6) from
// the region's DSM/DTM GeoTIFFs, written as CHM_matplot.png (decorated,
// viridis, with legend) and CHM.png (clean overlay) — the two artifacts
// must differ (spec §8 invariant, E6). A missing DSM (or DTM) surfaces
// apperr.KindMissingDSM and writes neither PNG, without aborting any
// wider pipeline run (spec §7: "a single failed derivative does not abort
// the pipeline").
func RunCHM(ctx context.Context, store *region.Store, slug string, sink events.Sink) TaskResult {
	dsmPath := filepath.Join(store.RegionDir(slug), "lidar", "DSM", "DSM.tif")
	dtmPath := filepath.Join(store.RegionDir(slug), "lidar", "DTM", "DTM.tif")

	if _, err := os.Stat(dsmPath); err != nil {
		err := apperr.New(apperr.KindMissingDSM, "chm: DSM not found in region tree")
		sink.Emit(events.Event{Type: events.TypeProcessingError, Error: err.Error()})
		return TaskResult{Name: "chm", Success: false, Err: err}
	}
	if _, err := os.Stat(dtmPath); err != nil {
		err := apperr.New(apperr.KindMissingDSM, "chm: DTM not found in region tree")
		sink.Emit(events.Event{Type: events.TypeProcessingError, Error: err.Error()})
		return TaskResult{Name: "chm", Success: false, Err: err}
	}

	dsm, err := raster.Read(dsmPath)
	if err != nil {
		return TaskResult{Name: "chm", Success: false, Err: err}
	}
	dtm, err := raster.Read(dtmPath)
	if err != nil {
		return TaskResult{Name: "chm", Success: false, Err: err}
	}

	chm, err := terrain.CHM(dsm, dtm)
	if err != nil {
		return TaskResult{Name: "chm", Success: false, Err: err}
	}

	chmDir := filepath.Join(store.RegionDir(slug), "lidar", "CHM")
	if err := os.MkdirAll(chmDir, 0o755); err != nil {
		return TaskResult{Name: "chm", Success: false, Err: apperr.Wrap(apperr.KindProcessing, "create CHM dir", err)}
	}
	if err := raster.WriteGeoTIFF(filepath.Join(chmDir, "CHM.tif"), chm, raster.WriteOptions{}); err != nil {
		return TaskResult{Name: "chm", Success: false, Err: err}
	}

	render, err := terrain.RenderCHM(chm)
	if err != nil {
		return TaskResult{Name: "chm", Success: false, Err: err}
	}

	matplotDir := filepath.Join(store.RegionDir(slug), "lidar", "png_outputs", "matplotlib")
	pngOutDir := filepath.Join(store.RegionDir(slug), "lidar", "png_outputs")
	if err := os.MkdirAll(matplotDir, 0o755); err != nil {
		return TaskResult{Name: "chm", Success: false, Err: apperr.Wrap(apperr.KindProcessing, "create png_outputs dir", err)}
	}

	decoratedPath := filepath.Join(matplotDir, "CHM_matplot.png")
	if err := raster.WriteRGBPNG(decoratedPath, render.Decorated, chm.GeoTransform); err != nil {
		return TaskResult{Name: "chm", Success: false, Err: err}
	}
	cleanPath := filepath.Join(pngOutDir, "CHM.png")
	if err := raster.WriteRGBPNG(cleanPath, render.Clean, chm.GeoTransform); err != nil {
		return TaskResult{Name: "chm", Success: false, Err: err}
	}

	return TaskResult{Name: "chm", Success: true, OutputPath: cleanPath}
}

// RunSVF visualizes an externally-computed Sky View Factor raster (spec
// §4.6: "Consumed from an external computation; this component only
// visualizes") into SVF_matplot.png and SVF.png. Both hold the same
// cividis rendering; neither carries a legend or colorbar.
func RunSVF(ctx context.Context, store *region.Store, slug, svfPath string, sink events.Sink) TaskResult {
	svf, err := raster.Read(svfPath)
	if err != nil {
		return TaskResult{Name: "svf", Success: false, Err: err}
	}

	render, err := terrain.RenderSVF(svf)
	if err != nil {
		return TaskResult{Name: "svf", Success: false, Err: err}
	}

	matplotDir := filepath.Join(store.RegionDir(slug), "lidar", "png_outputs", "matplotlib")
	pngOutDir := filepath.Join(store.RegionDir(slug), "lidar", "png_outputs")
	if err := os.MkdirAll(matplotDir, 0o755); err != nil {
		return TaskResult{Name: "svf", Success: false, Err: apperr.Wrap(apperr.KindProcessing, "create png_outputs dir", err)}
	}

	decoratedPath := filepath.Join(matplotDir, "SVF_matplot.png")
	if err := raster.WriteRGBPNG(decoratedPath, render.Decorated, svf.GeoTransform); err != nil {
		return TaskResult{Name: "svf", Success: false, Err: err}
	}
	cleanPath := filepath.Join(pngOutDir, "SVF.png")
	if err := raster.WriteRGBPNG(cleanPath, render.Clean, svf.GeoTransform); err != nil {
		return TaskResult{Name: "svf", Success: false, Err: err}
	}

	return TaskResult{Name: "svf", Success: true, OutputPath: cleanPath}
}

// RunLRM computes the Local Relief Model for a region's elevation raster
// (spec §4.6) and writes it under lidar/LRM as a GeoTIFF + PNG, honoring
// quality-mode's "_clean" filename suffix.
func RunLRM(ctx context.Context, store *region.Store, slug, elevPath string, opts terrain.LRMOptions, s config.Settings) TaskResult {
	elev, err := raster.Read(elevPath)
	if err != nil {
		return TaskResult{Name: "lrm", Success: false, Err: err}
	}

	lrm, err := terrain.LRM(elev, opts)
	if err != nil {
		return TaskResult{Name: "lrm", Success: false, Err: err}
	}

	suffix := qualityModeSuffix(store, slug)
	outPath, err := writeDerivative(store, slug, "lidar/LRM", "lrm"+suffix, output{Mono: lrm}, s)
	if err != nil {
		return TaskResult{Name: "lrm", Success: false, Err: err}
	}
	return TaskResult{Name: "lrm", Success: true, OutputPath: outPath}
}

// worldfileReprojectedStamp writes the "_wgs84.wld" sidecar alongside a
// derivative PNG's plain world file. Every derivative is computed on the
// WGS84-referenced elevation grid the acquisition layer produces, so all
// outputs carry the reprojected stamp (spec: "CRS is stamped as _wgs84.wld
// variant when the output is reprojected").
func worldfileReprojectedStamp(pngPath string, gt [6]float64) error {
	return worldfile.FromGeoTransform(gt).Write(worldfile.ForReprojectedWGS84(pngPath))
}
