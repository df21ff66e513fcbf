package imagery

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrain-pipeline/internal/raster"
	"terrain-pipeline/internal/region"
)

func TestConvertMissingSourceFileFails(t *testing.T) {
	dir := t.TempDir()
	store := region.New(filepath.Join(dir, "out"), filepath.Join(dir, "in"))

	_, err := Convert(store, "45.52N_122.68W", filepath.Join(dir, "nope.tif"))
	require.Error(t, err)

	bandDir := filepath.Join(store.InputDir("45.52N_122.68W"), "sentinel2")
	assert.NoFileExists(t, filepath.Join(bandDir, "Blue.tif"))
}

func TestComputeNDVIHandlesNoDataAndZeroDenominator(t *testing.T) {
	red := &raster.Raster{
		Data:   []float32{10, -9999, 0, 4},
		Width:  4,
		Height: 1,
		NoData: -9999,
	}
	nir := &raster.Raster{
		Data:   []float32{30, 20, 0, 6},
		Width:  4,
		Height: 1,
		NoData: -9999,
	}

	ndvi := computeNDVI(red, nir)

	assert.InDelta(t, float32(0.5), ndvi.Data[0], 0.0001) // (30-10)/(30+10)
	assert.Equal(t, ndvi.NoData, ndvi.Data[1])            // red is nodata
	assert.Equal(t, ndvi.NoData, ndvi.Data[2])            // red+nir == 0
	assert.InDelta(t, float32(0.2), ndvi.Data[3], 0.0001) // (6-4)/(6+4)
}

func TestRegionNDVIFlagPersistsAsDisabled(t *testing.T) {
	dir := t.TempDir()
	store := region.New(filepath.Join(dir, "out"), filepath.Join(dir, "in"))
	slug := "45.52N_122.68W"

	require.NoError(t, store.WriteMetadata(slug, region.Metadata{
		RegionName:  slug,
		NDVIEnabled: false,
	}))

	meta, err := store.ReadMetadata(slug)
	require.NoError(t, err)
	assert.False(t, meta.NDVIEnabled)

	// Convert itself requires a real packed GeoTIFF to read bands from, so
	// this test checks only the persisted flag that Convert's NDVI gate
	// reads; the Convert path is covered by
	// TestConvertMissingSourceFileFails above.
}
