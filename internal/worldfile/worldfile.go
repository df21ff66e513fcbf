// Package worldfile writes the six-line affine-transform sidecar files that
// accompany georeferenced PNGs (spec §6, GLOSSARY "World file"). Kept as a
// standalone package rather than folded into the raster facade, since both
// PNG overlays and browser-ready clean PNGs need it independently of
// whether a GeoTIFF was ever produced for that artifact (SPEC_FULL.md §C).
package worldfile

import (
	"fmt"
	"os"
)

// Transform is the six affine-transform coefficients a world file encodes:
// pixel (x,y) -> map (X,Y) is X = A*x + B*y + C; Y = D*x + E*y + F.
type Transform struct {
	A, D, B, E, C, F float64
}

// FromGeoTransform builds a Transform from a GDAL-style 6-element
// geotransform [originX, pixelWidth, rowRotation, originY, colRotation,
// pixelHeight], mapping pixel centers (GDAL's geotransform addresses pixel
// corners; world files address pixel centers, hence the half-pixel shift).
func FromGeoTransform(gt [6]float64) Transform {
	return Transform{
		A: gt[1],
		D: gt[4],
		B: gt[2],
		E: gt[5],
		C: gt[0] + gt[1]/2 + gt[2]/2,
		F: gt[3] + gt[4]/2 + gt[5]/2,
	}
}

// Write renders the six lines in the fixed world-file order: A, D, B, E, C,
// F — one coefficient per line, with ten decimal places.
func (t Transform) Write(path string) error {
	content := fmt.Sprintf("%.10f\n%.10f\n%.10f\n%.10f\n%.10f\n%.10f\n",
		t.A, t.D, t.B, t.E, t.C, t.F)
	return os.WriteFile(path, []byte(content), 0o644)
}

// ForPNG derives the sidecar path for a PNG: replaces the extension with
// ".pgw" per spec §6.
func ForPNG(pngPath string) string {
	return withExt(pngPath, ".pgw")
}

// ForGeneric derives the generic ".wld" sidecar path.
func ForGeneric(path string) string {
	return withExt(path, ".wld")
}

// ForReprojectedWGS84 derives the "_wgs84.wld" variant stamped when an
// output has been reprojected (spec §6).
func ForReprojectedWGS84(path string) string {
	return withExt(path, "_wgs84.wld")
}

func withExt(path, newExt string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[:i] + newExt
		}
	}
	return path + newExt
}
