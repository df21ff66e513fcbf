package terrain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdaptiveWindowThresholds(t *testing.T) {
	require.Equal(t, 61, AdaptiveWindow(0.3))
	require.Equal(t, 31, AdaptiveWindow(1.0))
	require.Equal(t, 21, AdaptiveWindow(2.0))
	require.Equal(t, 11, AdaptiveWindow(5.0))
}

func TestLRMNormalizedOutputInRange(t *testing.T) {
	elev := syntheticElevation(40, 40, func(x, y int) float32 {
		return float32(x)*3 + float32((x*y)%7)
	})

	lrm, err := LRM(elev, LRMOptions{Window: 9, Normalize: true})
	require.NoError(t, err)
	for _, v := range lrm.Data {
		if v == lrm.NoData {
			continue
		}
		require.GreaterOrEqual(t, v, float32(-1.0001))
		require.LessOrEqual(t, v, float32(1.0001))
	}
}

func TestLRMGaussianVsUniformDiffer(t *testing.T) {
	elev := syntheticElevation(30, 30, func(x, y int) float32 {
		return float32(math.Sin(float64(x)/3) * 20)
	})

	uniform, err := LRM(elev, LRMOptions{Window: 9, Smoother: UniformSmoother{}})
	require.NoError(t, err)
	gaussian, err := LRM(elev, LRMOptions{Window: 9, Smoother: GaussianSmoother{}})
	require.NoError(t, err)

	require.NotEqual(t, uniform.Data, gaussian.Data)
}

func TestLRMPreservesNodataSentinel(t *testing.T) {
	elev := syntheticElevation(10, 10, func(x, y int) float32 {
		if x == 0 {
			return -9999
		}
		return float32(x)
	})

	lrm, err := LRM(elev, LRMOptions{Window: 3})
	require.NoError(t, err)
	require.Equal(t, float32(-9999), lrm.Data[5*10+0])
}
