package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/config"
	"terrain-pipeline/internal/events"
	"terrain-pipeline/internal/raster"
	"terrain-pipeline/internal/region"
	"terrain-pipeline/internal/terrain"
)

// TaskResult is the outcome of one derivative task within a Result.
type TaskResult struct {
	Name       string
	Success    bool
	Err        error
	OutputPath string
}

// Result is the Processing Pipeline's terminal summary (spec §4.7: "the
// terminal pipeline event reports successful/total").
type Result struct {
	RegionSlug string
	Total      int
	Successful int
	Tasks      []TaskResult
}

// task bundles a derivative's name, its region-tree subdirectory, and the
// closure that produces its raster output. Fixed task list per spec §4.7.
type task struct {
	name   string
	subdir string
	run    func(elev *raster.Raster) (output, error)
}

// output is either a single-band raster (GeoTIFF-eligible) or a
// pre-rendered RGB image; exactly one of the two is set. GeoTransform is
// always populated so RGB outputs (which carry no georeferencing of their
// own) still get a correct world-file sidecar.
type output struct {
	Mono         *raster.Raster
	RGB          *raster.RGB8
	GeoTransform [6]float64
}

// qualityModeSuffix probes for a quality-mode crop per spec §4.6: if
// ./output/<slug>/lidar/cropped/<slug>_cropped.las (or the legacy
// output/<slug>/cropped/ variant) exists, every output filename in this
// run gains a "_clean" suffix.
func qualityModeSuffix(store *region.Store, slug string) string {
	candidates := []string{
		filepath.Join(store.RegionDir(slug), "lidar", "cropped", slug+"_cropped.las"),
		filepath.Join(store.RegionDir(slug), "cropped", slug+"_cropped.las"),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return "_clean"
		}
	}
	return ""
}

func emit(sink events.Sink, message string, progress int) {
	sink.Emit(events.Event{Type: events.TypeProcessingProgress, Message: message, Progress: progress})
}

// RunElevation runs the fixed derivative task list (spec §4.7:
// hillshade_315, hillshade_225, hillshade_multi_rgb, slope, aspect,
// tpi(r=3), color_relief) against a single elevation raster, sequentially
// within the region. A single failed derivative does not abort the run
// (spec §7); the terminal processing_completed/processing_error event is
// always emitted.
func RunElevation(ctx context.Context, store *region.Store, slug, elevPath string, sink events.Sink, s config.Settings) Result {
	elev, err := raster.Read(elevPath)
	if err != nil {
		sink.Emit(events.Event{Type: events.TypeProcessingError, Error: err.Error()})
		return Result{RegionSlug: slug}
	}

	suffix := qualityModeSuffix(store, slug)
	tasks := elevationTasks()

	result := Result{RegionSlug: slug, Total: len(tasks)}
	for i, t := range tasks {
		select {
		case <-ctx.Done():
			result.Tasks = append(result.Tasks, TaskResult{Name: t.name, Success: false, Err: ctx.Err()})
			continue
		default:
		}

		emit(sink, fmt.Sprintf("running %s", t.name), (i*100)/len(tasks))

		out, err := t.run(elev)
		if err != nil {
			result.Tasks = append(result.Tasks, TaskResult{Name: t.name, Success: false, Err: err})
			continue
		}

		outPath, err := writeDerivative(store, slug, t.subdir, t.name+suffix, out, s)
		if err != nil {
			result.Tasks = append(result.Tasks, TaskResult{Name: t.name, Success: false, Err: err})
			continue
		}

		result.Successful++
		result.Tasks = append(result.Tasks, TaskResult{Name: t.name, Success: true, OutputPath: outPath})
	}

	emit(sink, fmt.Sprintf("completed %d/%d derivatives", result.Successful, result.Total), 100)
	sink.Emit(events.Event{Type: events.TypeProcessingCompleted})
	return result
}

func elevationTasks() []task {
	return []task{
		{"hillshade_315", "lidar/Hillshade", func(e *raster.Raster) (output, error) {
			b, err := terrain.Hillshade(e, terrain.HillshadeParams{AzimuthDeg: 315, AltitudeDeg: 45})
			if err != nil {
				return output{}, err
			}
			return output{Mono: band8ToRaster(b, e), GeoTransform: e.GeoTransform}, nil
		}},
		{"hillshade_225", "lidar/Hillshade", func(e *raster.Raster) (output, error) {
			b, err := terrain.Hillshade(e, terrain.HillshadeParams{AzimuthDeg: 225, AltitudeDeg: 45})
			if err != nil {
				return output{}, err
			}
			return output{Mono: band8ToRaster(b, e), GeoTransform: e.GeoTransform}, nil
		}},
		{"hillshade_multi_rgb", "lidar/HillshadeRgb", func(e *raster.Raster) (output, error) {
			rgb, err := terrain.HillshadeMultiRGB(e, 45, terrain.DefaultZFactor)
			if err != nil {
				return output{}, err
			}
			return output{RGB: &rgb, GeoTransform: e.GeoTransform}, nil
		}},
		{"slope", "lidar/Slope", func(e *raster.Raster) (output, error) {
			r, err := terrain.Slope(e)
			return output{Mono: r, GeoTransform: e.GeoTransform}, err
		}},
		{"aspect", "lidar/Aspect", func(e *raster.Raster) (output, error) {
			r, err := terrain.Aspect(e)
			return output{Mono: r, GeoTransform: e.GeoTransform}, err
		}},
		{"tpi", "lidar/TPI", func(e *raster.Raster) (output, error) {
			r, err := terrain.TPI(e, terrain.DefaultTPIRadius)
			return output{Mono: r, GeoTransform: e.GeoTransform}, err
		}},
		{"color_relief", "lidar/ColorRelief", func(e *raster.Raster) (output, error) {
			rgb, err := terrain.ColorRelief(e, nil)
			if err != nil {
				return output{}, err
			}
			return output{RGB: &rgb, GeoTransform: e.GeoTransform}, nil
		}},
	}
}

// band8ToRaster wraps a grayscale 8-bit band so it can be written by
// writeDerivative both as a GeoTIFF and as its PNG visualization.
func band8ToRaster(b raster.Band8, src *raster.Raster) *raster.Raster {
	data := make([]float32, len(b.Data))
	for i, v := range b.Data {
		data[i] = float32(v)
	}
	return &raster.Raster{Data: data, Width: b.Width, Height: b.Height, GeoTransform: src.GeoTransform, Projection: src.Projection, NoData: terrainNoDataSentinel, PixelSizeM: src.PixelSizeM}
}

const terrainNoDataSentinel = float32(-9999)

// writeDerivative writes out as a GeoTIFF (when Mono) plus a PNG
// visualization with a world-file sidecar, and an _overlays.png companion
// when the source exceeds the overlay-optimization threshold (spec §4.7).
func writeDerivative(store *region.Store, slug, subdir, name string, out output, s config.Settings) (string, error) {
	dir := filepath.Join(store.RegionDir(slug), subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.Wrap(apperr.KindProcessing, "create derivative dir", err)
	}

	base := filepath.Join(dir, name)
	var img image.Image
	var width, height int
	var gt [6]float64

	switch {
	case out.Mono != nil:
		tifPath := base + ".tif"
		if err := raster.WriteGeoTIFF(tifPath, out.Mono, raster.WriteOptions{}); err != nil {
			return "", err
		}
		gray, err := grayPNG(out.Mono)
		if err != nil {
			return "", err
		}
		pngPath := base + ".png"
		if err := raster.WritePNG(pngPath, gray, out.Mono.GeoTransform); err != nil {
			return "", err
		}
		if err := worldfileReprojectedStamp(pngPath, out.Mono.GeoTransform); err != nil {
			return "", err
		}
		img = grayImage(gray)
		width, height, gt = out.Mono.Width, out.Mono.Height, out.Mono.GeoTransform
	case out.RGB != nil:
		pngPath := base + ".png"
		gt = out.GeoTransform
		if err := raster.WriteRGBPNG(pngPath, *out.RGB, gt); err != nil {
			return "", err
		}
		if err := worldfileReprojectedStamp(pngPath, gt); err != nil {
			return "", err
		}
		img = rgbImage(*out.RGB)
		width, height = out.RGB.Width, out.RGB.Height
	default:
		return "", apperr.New(apperr.KindProcessing, "writeDerivative: empty output")
	}

	if err := writeOverlay(img, base, width, height, gt, s); err != nil {
		return "", err
	}
	return base, nil
}

// grayPNG min/max-stretches a float32 raster's non-nodata values to an
// 8-bit band for visualization; nodata (and a constant raster) maps to 0.
func grayPNG(r *raster.Raster) (raster.Band8, error) {
	minV, maxV := float32(0), float32(0)
	first := true
	for _, v := range r.Data {
		if v == r.NoData {
			continue
		}
		if first || v < minV {
			minV = v
		}
		if first || v > maxV {
			maxV = v
		}
		first = false
	}
	out := make([]uint8, len(r.Data))
	span := maxV - minV
	for i, v := range r.Data {
		if v == r.NoData || span == 0 {
			out[i] = 0
			continue
		}
		out[i] = uint8(255 * (v - minV) / span)
	}
	return raster.Band8{Data: out, Width: r.Width, Height: r.Height}, nil
}

func grayImage(b raster.Band8) image.Image {
	img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	copy(img.Pix, b.Data)
	return img
}

func rgbImage(rgb raster.RGB8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, rgb.Width, rgb.Height))
	for i := 0; i < rgb.Width*rgb.Height; i++ {
		img.Pix[i*4+0] = rgb.R[i]
		img.Pix[i*4+1] = rgb.G[i]
		img.Pix[i*4+2] = rgb.B[i]
		img.Pix[i*4+3] = 255
	}
	return img
}
