package terrain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTPIFlatSurfaceIsZero(t *testing.T) {
	elev := syntheticElevation(15, 15, func(x, y int) float32 { return 50 })

	tpi, err := TPI(elev, 3)
	require.NoError(t, err)
	for _, v := range tpi.Data {
		require.InDelta(t, 0, v, 1e-4)
	}
}

func TestTPIPositiveOnLocalPeak(t *testing.T) {
	elev := syntheticElevation(15, 15, func(x, y int) float32 {
		if x == 7 && y == 7 {
			return 100
		}
		return 10
	})

	tpi, err := TPI(elev, 3)
	require.NoError(t, err)
	require.Greater(t, tpi.Data[7*15+7], float32(0))
}

func TestTPIDefaultRadius(t *testing.T) {
	elev := syntheticElevation(10, 10, func(x, y int) float32 { return float32(x) })
	a, err := TPI(elev, 0)
	require.NoError(t, err)
	b, err := TPI(elev, DefaultTPIRadius)
	require.NoError(t, err)
	require.Equal(t, a.Data, b.Data)
}
