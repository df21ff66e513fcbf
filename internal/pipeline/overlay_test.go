package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"terrain-pipeline/internal/config"
)

func TestOverlayBoxPxThresholds(t *testing.T) {
	s := config.Default()
	require.Equal(t, s.OverlayStandardPx, overlayBoxPx(30_000_000, s))
	require.Equal(t, s.OverlayAggressivePx, overlayBoxPx(80_000_000, s))
	require.Equal(t, s.OverlayExtremePx, overlayBoxPx(120_000_000, s))
}

func TestNeedsOverlayThreshold(t *testing.T) {
	s := config.Default()
	require.False(t, needsOverlay(1000, s))
	require.True(t, needsOverlay(s.OverlayThresholdPixels, s))
}

func TestNextPowerOfTwoBoxCapsLongestSide(t *testing.T) {
	w, h := nextPowerOfTwoBox(30000, 20000, 4096)
	require.LessOrEqual(t, w, 4096)
	require.LessOrEqual(t, h, 4096)
	require.Equal(t, 4096, max(w, h))
}

func TestNextPowerOfTwoBoxPreservesAspect(t *testing.T) {
	w, h := nextPowerOfTwoBox(20000, 10000, 1024)
	ratio := float64(w) / float64(h)
	require.InDelta(t, 2.0, ratio, 0.05)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
