package terrain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColorReliefProducesFullSizeImage(t *testing.T) {
	elev := syntheticElevation(12, 12, func(x, y int) float32 { return float32(x * y) })

	rgb, err := ColorRelief(elev, nil)
	require.NoError(t, err)
	require.Len(t, rgb.R, 144)
	require.Equal(t, 12, rgb.Width)
	require.Equal(t, 12, rgb.Height)
}

func TestColorReliefRejectsAllNodata(t *testing.T) {
	elev := syntheticElevation(4, 4, func(x, y int) float32 { return -9999 })
	_, err := ColorRelief(elev, nil)
	require.Error(t, err)
}

func TestRenderSVFProducesFullSizeImages(t *testing.T) {
	elev := syntheticElevation(20, 20, func(x, y int) float32 { return float32(x) })

	render, err := RenderSVF(elev)
	require.NoError(t, err)
	require.Len(t, render.Decorated.R, 400)
	require.Len(t, render.Clean.R, 400)
}
