package terrain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"terrain-pipeline/internal/raster"
)

func TestCHMNonNegativeAndNodataPropagates(t *testing.T) {
	dsm := syntheticElevation(10, 10, func(x, y int) float32 {
		if x == 3 {
			return -9999
		}
		return float32(10 + x)
	})
	dtm := syntheticElevation(10, 10, func(x, y int) float32 {
		if x == 5 {
			return -9999
		}
		return float32(2)
	})

	chm, err := CHM(dsm, dtm)
	require.NoError(t, err)

	for i, v := range chm.Data {
		if v == chm.NoData {
			continue
		}
		require.GreaterOrEqual(t, v, float32(0))
		_ = i
	}
	require.Equal(t, float32(-9999), chm.Data[5*10+3]) // dsm nodata column
	require.Equal(t, float32(-9999), chm.Data[5*10+5]) // dtm nodata column
}

func TestCHMRejectsDimensionMismatch(t *testing.T) {
	dsm := syntheticElevation(10, 10, func(x, y int) float32 { return 1 })
	dtm := syntheticElevation(5, 5, func(x, y int) float32 { return 1 })
	_, err := CHM(dsm, dtm)
	require.Error(t, err)
}

func TestCHMRejectsNilInputs(t *testing.T) {
	_, err := CHM(nil, &raster.Raster{})
	require.Error(t, err)
}

func TestRenderCHMProducesDistinctDecoratedAndClean(t *testing.T) {
	chm := syntheticElevation(16, 16, func(x, y int) float32 { return float32(x + y) })
	chm.NoData = -9999

	render, err := RenderCHM(chm)
	require.NoError(t, err)
	require.NotEqual(t, render.Decorated.Width, render.Clean.Width, "decorated image carries an extra legend strip")
}
