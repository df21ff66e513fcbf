package terrain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"terrain-pipeline/internal/raster"
)

func syntheticElevation(w, h int, fn func(x, y int) float32) *raster.Raster {
	data := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			data[y*w+x] = fn(x, y)
		}
	}
	return &raster.Raster{
		Data: data, Width: w, Height: h,
		GeoTransform: [6]float64{0, 1, 0, 0, 0, -1},
		NoData:       -9999,
		PixelSizeM:   1,
	}
}

func TestHillshadeBoundedOutput(t *testing.T) {
	elev := syntheticElevation(20, 20, func(x, y int) float32 {
		return float32(x) * 2.5
	})

	b, err := Hillshade(elev, HillshadeParams{AzimuthDeg: 315, AltitudeDeg: 45})
	require.NoError(t, err)
	require.Equal(t, elev.Width*elev.Height, len(b.Data))

	for _, v := range b.Data {
		require.GreaterOrEqual(t, v, uint8(0))
		require.LessOrEqual(t, v, uint8(255))
	}
}

func TestHillshadeMultiRGBPacksThreeDirections(t *testing.T) {
	elev := syntheticElevation(10, 10, func(x, y int) float32 { return float32(x + y) })

	rgb, err := HillshadeMultiRGB(elev, 45, DefaultZFactor)
	require.NoError(t, err)
	require.Len(t, rgb.R, 100)
	require.Len(t, rgb.G, 100)
	require.Len(t, rgb.B, 100)
}

func TestHillshadeRejectsEmptyRaster(t *testing.T) {
	_, err := Hillshade(&raster.Raster{}, HillshadeParams{})
	require.Error(t, err)
}
