// Package raster is the Raster I/O Facade (spec §2, §4 "out of scope"
// collaborator promoted to a concrete dependency): reads and writes
// georeferenced rasters, produces PNG + world-file pairs, and applies
// colormaps. Grounded on jcom-dev-zmanim/api/cmd/import-elevation/main.go's
// godal usage (RegisterAll, Open, GeoTransform, Bands, Band.Read) and
// gdalMu serialization pattern (GDAL is not safe for unsynchronized
// concurrent use across datasets in this binding).
package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"

	"github.com/airbusgeo/godal"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/worldfile"
)

// gdalMu serializes every godal call process-wide, matching the teacher's
// single mutex around GDAL access (the C library is not thread-safe when
// multiple goroutines touch datasets concurrently).
var gdalMu sync.Mutex

var registerOnce sync.Once

func ensureRegistered() {
	registerOnce.Do(func() {
		godal.RegisterAll()
	})
}

// Raster is a single-band float32 array plus its georeferencing.
type Raster struct {
	Data         []float32
	Width        int
	Height       int
	GeoTransform [6]float64
	Projection   string
	NoData       float32
	PixelSizeM   float64 // derived from GeoTransform[1] for algorithms needing meters
}

// Read opens path via GDAL and reads band 1 as float32, converting the
// band's reported nodata (or the -9999 sentinel) to exactly NoData so
// downstream terrain algorithms can apply a single nodata contract.
func Read(path string) (*Raster, error) {
	return ReadBand(path, 0)
}

// ReadBand opens path via GDAL and reads the band at bandIndex (0-based) as
// float32, converting the band's reported nodata (or the -9999 sentinel) to
// exactly NoData. Used directly by Sentinel-2 band extraction, where the
// packed Process-API GeoTIFF carries four bands in a fixed order rather than
// the single-band layout every elevation raster uses.
func ReadBand(path string, bandIndex int) (*Raster, error) {
	ensureRegistered()

	gdalMu.Lock()
	defer gdalMu.Unlock()

	ds, err := godal.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProcessing, "open raster", err)
	}
	defer ds.Close()

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCoordinateConversion, "read geotransform", err)
	}

	bands := ds.Bands()
	if bandIndex < 0 || bandIndex >= len(bands) {
		return nil, apperr.New(apperr.KindProcessing, fmt.Sprintf("raster has no band at index %d (has %d)", bandIndex, len(bands)))
	}
	band := bands[bandIndex]
	structure := ds.Structure()
	width, height := structure.SizeX, structure.SizeY

	buf := make([]float32, width*height)
	if err := band.Read(0, 0, buf, width, height); err != nil {
		return nil, apperr.Wrap(apperr.KindProcessing, "read band data", err)
	}

	noData := float32(-9999)
	if nd, ok := band.NoData(); ok {
		noData = float32(nd)
	}

	var projection string
	if proj := ds.Projection(); proj != "" {
		projection = proj
	}

	return &Raster{
		Data:         buf,
		Width:        width,
		Height:       height,
		GeoTransform: gt,
		Projection:   projection,
		NoData:       noData,
		PixelSizeM:   approxPixelSizeMeters(gt),
	}, nil
}

// approxPixelSizeMeters derives a meters-per-pixel estimate from the
// geotransform's pixel width, converting degrees to meters at the equator
// scale when the transform looks geographic (|pixelWidth| < 1).
func approxPixelSizeMeters(gt [6]float64) float64 {
	pw := gt[1]
	if pw < 0 {
		pw = -pw
	}
	if pw < 1 {
		return pw * 111_320 // degrees -> meters, equatorial approximation
	}
	return pw
}

// WriteOptions configure WriteGeoTIFF.
type WriteOptions struct {
	Compress string // default "LZW"
	Untiled  bool   // default false: output is tiled
}

func (o WriteOptions) withDefaults() WriteOptions {
	if o.Compress == "" {
		o.Compress = "LZW"
	}
	return o
}

// WriteGeoTIFF writes r to path as a single-band float32 GeoTIFF,
// LZW-compressed and tiled (spec §6), replacing the teacher's hand-rolled
// pkg/geotiff encoder with GDAL's own creation options.
func WriteGeoTIFF(path string, r *Raster, opts WriteOptions) error {
	ensureRegistered()
	opts = opts.withDefaults()

	gdalMu.Lock()
	defer gdalMu.Unlock()

	creationOpts := []string{"COMPRESS=" + opts.Compress}
	if !opts.Untiled {
		creationOpts = append(creationOpts, "TILED=YES")
	}

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, r.Width, r.Height, godal.CreationOption(creationOpts...))
	if err != nil {
		return apperr.Wrap(apperr.KindProcessing, "create geotiff", err)
	}
	defer ds.Close()

	if err := ds.SetGeoTransform(r.GeoTransform); err != nil {
		return apperr.Wrap(apperr.KindCoordinateConversion, "set geotransform", err)
	}
	if r.Projection != "" {
		if err := ds.SetProjection(r.Projection); err != nil {
			return apperr.Wrap(apperr.KindCoordinateConversion, "set projection", err)
		}
	}

	bands := ds.Bands()
	if len(bands) == 0 {
		return apperr.New(apperr.KindProcessing, "created dataset has no bands")
	}
	band := bands[0]
	if err := band.SetNoData(float64(r.NoData)); err != nil {
		return apperr.Wrap(apperr.KindProcessing, "set nodata", err)
	}
	if err := band.Write(0, 0, r.Data, r.Width, r.Height); err != nil {
		return apperr.Wrap(apperr.KindProcessing, "write band data", err)
	}

	return nil
}

// Band8 is a single 8-bit band, used for hillshade/color-relief grayscale
// or packed multi-band RGB outputs.
type Band8 struct {
	Data   []uint8
	Width  int
	Height int
}

// RGB8 is a 3-band 8-bit image (color relief, multi-direction hillshade,
// colormap output).
type RGB8 struct {
	R, G, B []uint8
	Width   int
	Height  int
}

// WritePNG writes a single-band 8-bit raster as a grayscale PNG with a
// world-file sidecar.
func WritePNG(path string, b Band8, gt [6]float64) error {
	img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	copy(img.Pix, b.Data)

	if err := writePNGFile(path, img); err != nil {
		return err
	}
	return worldfile.FromGeoTransform(gt).Write(worldfile.ForPNG(path))
}

// WriteRGBPNG writes a 3-band 8-bit image as an RGB PNG with a world-file
// sidecar.
func WriteRGBPNG(path string, rgb RGB8, gt [6]float64) error {
	img := image.NewRGBA(image.Rect(0, 0, rgb.Width, rgb.Height))
	for i := 0; i < rgb.Width*rgb.Height; i++ {
		img.Pix[i*4+0] = rgb.R[i]
		img.Pix[i*4+1] = rgb.G[i]
		img.Pix[i*4+2] = rgb.B[i]
		img.Pix[i*4+3] = 255
	}

	if err := writePNGFile(path, img); err != nil {
		return err
	}
	return worldfile.FromGeoTransform(gt).Write(worldfile.ForPNG(path))
}

func writePNGFile(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return apperr.Wrap(apperr.KindProcessing, "create png file", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return apperr.Wrap(apperr.KindProcessing, "encode png", err)
	}
	return nil
}

// ColorStop is one control point of a colormap.
type ColorStop struct {
	Value float64
	Color color.RGBA
}

// ApplyColormap maps each normalized value in data (expected in [0,1],
// NaN for nodata) through stops via piecewise-linear interpolation,
// producing an RGB8 image. Nodata positions are rendered black (0,0,0);
// RGB8 has no alpha channel, and WriteRGBPNG writes every pixel opaque.
func ApplyColormap(data []float32, width, height int, stops []ColorStop) RGB8 {
	out := RGB8{R: make([]uint8, len(data)), G: make([]uint8, len(data)), B: make([]uint8, len(data)), Width: width, Height: height}
	for i, v := range data {
		if isNaN32(v) {
			continue
		}
		c := interpolateStops(float64(v), stops)
		out.R[i], out.G[i], out.B[i] = c.R, c.G, c.B
	}
	return out
}

func isNaN32(v float32) bool { return v != v }

func interpolateStops(v float64, stops []ColorStop) color.RGBA {
	if len(stops) == 0 {
		return color.RGBA{}
	}
	if v <= stops[0].Value {
		return stops[0].Color
	}
	if v >= stops[len(stops)-1].Value {
		return stops[len(stops)-1].Color
	}
	for i := 1; i < len(stops); i++ {
		if v <= stops[i].Value {
			lo, hi := stops[i-1], stops[i]
			t := (v - lo.Value) / (hi.Value - lo.Value)
			return color.RGBA{
				R: lerp8(lo.Color.R, hi.Color.R, t),
				G: lerp8(lo.Color.G, hi.Color.G, t),
				B: lerp8(lo.Color.B, hi.Color.B, t),
				A: 255,
			}
		}
	}
	return stops[len(stops)-1].Color
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + t*(float64(b)-float64(a)))
}

// TerrainColormap is the 6-stop terrain colormap from spec §4.6's Color
// Relief operation.
func TerrainColormap() []ColorStop {
	return []ColorStop{
		{Value: 0.0, Color: color.RGBA{R: 0, G: 97, B: 71, A: 255}},
		{Value: 0.2, Color: color.RGBA{R: 92, G: 156, B: 70, A: 255}},
		{Value: 0.4, Color: color.RGBA{R: 184, G: 197, B: 104, A: 255}},
		{Value: 0.6, Color: color.RGBA{R: 214, G: 173, B: 109, A: 255}},
		{Value: 0.8, Color: color.RGBA{R: 186, G: 139, B: 118, A: 255}},
		{Value: 1.0, Color: color.RGBA{R: 255, G: 255, B: 255, A: 255}},
	}
}

// CividisColormap approximates the cividis perceptual colormap used for
// SVF decorated PNGs (spec §4.6).
func CividisColormap() []ColorStop {
	return []ColorStop{
		{Value: 0.0, Color: color.RGBA{R: 0, G: 32, B: 76, A: 255}},
		{Value: 0.25, Color: color.RGBA{R: 60, G: 77, B: 108, A: 255}},
		{Value: 0.5, Color: color.RGBA{R: 123, G: 124, B: 120, A: 255}},
		{Value: 0.75, Color: color.RGBA{R: 189, G: 175, B: 111, A: 255}},
		{Value: 1.0, Color: color.RGBA{R: 255, G: 234, B: 70, A: 255}},
	}
}

// ViridisColormap approximates the viridis perceptual colormap used for the
// CHM decorated PNG (spec §4.6).
func ViridisColormap() []ColorStop {
	return []ColorStop{
		{Value: 0.0, Color: color.RGBA{R: 68, G: 1, B: 84, A: 255}},
		{Value: 0.25, Color: color.RGBA{R: 59, G: 82, B: 139, A: 255}},
		{Value: 0.5, Color: color.RGBA{R: 33, G: 145, B: 140, A: 255}},
		{Value: 0.75, Color: color.RGBA{R: 94, G: 201, B: 98, A: 255}},
		{Value: 1.0, Color: color.RGBA{R: 253, G: 231, B: 37, A: 255}},
	}
}
