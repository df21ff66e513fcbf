package region

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestWriteThenReadMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "output"), filepath.Join(dir, "input"))

	m := Metadata{
		RegionName:  "45.52N_122.68W",
		Source:      "coordinate",
		NDVIEnabled: false,
		CenterLat:   f64(45.52),
		CenterLng:   f64(-122.68),
		NorthBound:  f64(45.57), SouthBound: f64(45.47),
		EastBound: f64(-122.63), WestBound: f64(-122.73),
	}
	require.NoError(t, s.WriteMetadata("45.52N_122.68W", m))

	got, err := s.ReadMetadata("45.52N_122.68W")
	require.NoError(t, err)
	assert.Equal(t, 45.52, *got.CenterLat)
	assert.Equal(t, -122.68, *got.CenterLng)
	assert.False(t, got.NDVIEnabled)
}

func TestPreservationRuleBlocksOverwrite(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "output"), filepath.Join(dir, "input"))
	slug := "preserved-region"

	richContent := "Region Name: preserved-region\n# Source: Elevation API\nDownload ID: abc123\n"
	require.NoError(t, os.MkdirAll(s.RegionDir(slug), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.RegionDir(slug), "metadata.txt"), []byte(richContent), 0o644))

	err := s.WriteMetadata(slug, Metadata{RegionName: slug, Source: "coordinate"})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(s.RegionDir(slug), "metadata.txt"))
	require.NoError(t, err)
	assert.Equal(t, richContent, string(raw), "preservation rule should make the write a no-op")
}

func TestDeleteThenListExcludesRegion(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "output"), filepath.Join(dir, "input"))

	require.NoError(t, s.WriteMetadata("region-a", Metadata{RegionName: "region-a", Source: "coordinate"}))
	require.NoError(t, s.WriteMetadata("region-b", Metadata{RegionName: "region-b", Source: "coordinate"}))

	before, err := s.List(ListFilter{})
	require.NoError(t, err)
	assert.Len(t, before, 2)

	require.NoError(t, s.Delete("region-a"))

	after, err := s.List(ListFilter{})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "region-b", after[0].Name)
}

func TestSlugifyRejectsPathTraversal(t *testing.T) {
	_, err := Slugify("../../etc/passwd")
	assert.Error(t, err)

	ok, err := Slugify("45.52N_122.68W")
	require.NoError(t, err)
	assert.Equal(t, "45.52N_122.68W", ok)
}

func TestCoordinateSlugFormat(t *testing.T) {
	assert.Equal(t, "45.52N_122.68W", CoordinateSlug(45.5152, -122.6784))
	assert.Equal(t, "3.11S_60.04W", CoordinateSlug(-3.1123, -60.04))
}
