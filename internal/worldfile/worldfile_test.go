package worldfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGeoTransformAppliesHalfPixelShift(t *testing.T) {
	gt := [6]float64{-122.73, 0.0001, 0, 45.57, 0, -0.0001}
	tr := FromGeoTransform(gt)
	assert.InDelta(t, -122.73+0.00005, tr.C, 1e-9)
	assert.InDelta(t, 45.57-0.00005, tr.F, 1e-9)
	assert.Equal(t, 0.0001, tr.A)
	assert.Equal(t, -0.0001, tr.E)
}

func TestWriteProducesSixLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.pgw")
	tr := Transform{A: 1, D: 2, B: 3, E: 4, C: 5, F: 6}
	require.NoError(t, tr.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 6)
	for i, want := range []float64{1, 2, 3, 4, 5, 6} {
		got, err := strconv.ParseFloat(lines[i], 64)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestForPNGReplacesExtension(t *testing.T) {
	assert.Equal(t, "/out/slope.pgw", ForPNG("/out/slope.png"))
	assert.Equal(t, "/out/slope.wld", ForGeneric("/out/slope.tif"))
	assert.Equal(t, "/out/slope_wgs84.wld", ForReprojectedWGS84("/out/slope.tif"))
}
