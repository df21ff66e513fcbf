package terrain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlopeFlatSurfaceIsZero(t *testing.T) {
	elev := syntheticElevation(10, 10, func(x, y int) float32 { return 100 })

	slope, err := Slope(elev)
	require.NoError(t, err)
	for _, v := range slope.Data {
		require.InDelta(t, 0, v, 1e-4)
	}
}

func TestSlopeRampIsPositive(t *testing.T) {
	elev := syntheticElevation(10, 10, func(x, y int) float32 { return float32(x) * 5 })

	slope, err := Slope(elev)
	require.NoError(t, err)
	mid := 5*10 + 5
	require.Greater(t, slope.Data[mid], float32(0))
}

func TestAspectRange(t *testing.T) {
	elev := syntheticElevation(10, 10, func(x, y int) float32 { return float32(x*3 - y*2) })

	aspect, err := Aspect(elev)
	require.NoError(t, err)
	for _, v := range aspect.Data {
		if isNaN32(v) {
			continue
		}
		require.False(t, math.IsNaN(float64(v)))
		require.GreaterOrEqual(t, v, float32(0))
		require.Less(t, v, float32(360.001))
	}
}
