package terrain

import (
	"math"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/raster"
)

// HillshadeParams configures a single-direction hillshade (spec §4.6).
type HillshadeParams struct {
	AzimuthDeg  float64
	AltitudeDeg float64
	ZFactor     float64
}

// DefaultZFactor is applied when ZFactor is left zero.
const DefaultZFactor = 1.0

func (p HillshadeParams) withDefaults() HillshadeParams {
	if p.ZFactor == 0 {
		p.ZFactor = DefaultZFactor
	}
	return p
}

// Hillshade computes a single-direction 8-bit shaded-relief band from an
// elevation raster (spec §4.6). Output pixels lie in [0,255] (spec §8
// invariant 6); nodata positions are rendered 0.
func Hillshade(elev *raster.Raster, p HillshadeParams) (raster.Band8, error) {
	if elev == nil || len(elev.Data) == 0 {
		return raster.Band8{}, apperr.New(apperr.KindProcessing, "hillshade: empty elevation raster")
	}
	p = p.withDefaults()

	data := toNaN(elev)
	out := make([]uint8, len(data))

	azRad := p.AzimuthDeg * math.Pi / 180
	altRad := p.AltitudeDeg * math.Pi / 180
	cellSize := elev.PixelSizeM
	if cellSize <= 0 {
		cellSize = 1
	}

	for y := 0; y < elev.Height; y++ {
		for x := 0; x < elev.Width; x++ {
			idx := y*elev.Width + x
			dx, dy := centralGradient(data, elev.Width, elev.Height, x, y, cellSize, p.ZFactor)
			if math.IsNaN(dx) || isNaN32(data[idx]) {
				out[idx] = 0
				continue
			}
			out[idx] = shadeValue(dx, dy, azRad, altRad)
		}
	}

	return raster.Band8{Data: out, Width: elev.Width, Height: elev.Height}, nil
}

// shadeValue implements spec §4.6's hillshade formula:
// 255 * clamp(cos(alt)*cos(slope) + sin(alt)*sin(slope)*cos(az-aspect), 0, 1).
func shadeValue(dx, dy float64, azRad, altRad float64) uint8 {
	slopeRad := math.Atan(math.Hypot(dx, dy))
	aspectRad := math.Atan2(dy, -dx)

	v := math.Cos(altRad)*math.Cos(slopeRad) + math.Sin(altRad)*math.Sin(slopeRad)*math.Cos(azRad-aspectRad)
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(math.Round(255 * v))
}

// HillshadeMultiRGB packs three single-direction hillshades (azimuths
// fixed at 315/45/135, altitude/zFactor shared) into R/G/B channels
// (spec §4.6's multi-direction variant).
func HillshadeMultiRGB(elev *raster.Raster, altitudeDeg, zFactor float64) (raster.RGB8, error) {
	azimuths := [3]float64{315, 45, 135}
	var bands [3]raster.Band8
	for i, az := range azimuths {
		b, err := Hillshade(elev, HillshadeParams{AzimuthDeg: az, AltitudeDeg: altitudeDeg, ZFactor: zFactor})
		if err != nil {
			return raster.RGB8{}, err
		}
		bands[i] = b
	}
	return raster.RGB8{R: bands[0].Data, G: bands[1].Data, B: bands[2].Data, Width: elev.Width, Height: elev.Height}, nil
}
