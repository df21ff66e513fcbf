package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrain-pipeline/internal/cache"
	"terrain-pipeline/internal/domain"
	"terrain-pipeline/internal/events"
	"terrain-pipeline/internal/region"
	"terrain-pipeline/internal/router"
)

type fakeAdapter struct {
	name      string
	available bool
	filePath  string
}

func (f *fakeAdapter) Name() string                         { return f.name }
func (f *fakeAdapter) Capabilities() domain.SourceCapability { return domain.SourceCapability{} }
func (f *fakeAdapter) CheckAvailability(ctx context.Context, req domain.DownloadRequest) bool {
	return f.available
}
func (f *fakeAdapter) EstimateSize(ctx context.Context, req domain.DownloadRequest) float64 { return 0 }
func (f *fakeAdapter) Download(ctx context.Context, req domain.DownloadRequest, sink events.Sink) domain.DownloadResult {
	return domain.DownloadResult{Success: true, FilePath: f.filePath, FileSizeMB: 1, Metadata: map[string]any{}}
}

func setup(t *testing.T) (*Orchestrator, router.Registry, string) {
	dir := t.TempDir()
	staged := filepath.Join(dir, "staged.tif")
	require.NoError(t, os.WriteFile(staged, []byte("fake tiff"), 0o644))

	c := cache.New(filepath.Join(dir, "cache"), 24*time.Hour)
	s := region.New(filepath.Join(dir, "output"), filepath.Join(dir, "input"))
	r := router.New(router.Registry{})

	o := New(r, c, s, 4, func(ctx context.Context, slug, path string, sink events.Sink) {})

	adapters := router.Registry{
		"opentopography": &fakeAdapter{name: "opentopography", available: true, filePath: staged},
	}
	return o, adapters, dir
}

func TestAcquireInvalidCoordinatesFailsFast(t *testing.T) {
	o, adapters, _ := setup(t)
	result := o.Acquire(context.Background(), 200, 0, 5, domain.DataTypeElevation, domain.ResolutionMedium, false, nil, adapters, events.NopSink{})
	require.False(t, result.Success)
	assert.Contains(t, result.Errors[0], "latitude")
}

func TestAcquireSuccessRegistersRegionAndCache(t *testing.T) {
	o, adapters, _ := setup(t)
	sink := &events.CollectSink{}

	result := o.Acquire(context.Background(), 45.5152, -122.6784, 5.0, domain.DataTypeElevation, domain.ResolutionMedium, false, nil, adapters, sink)
	require.True(t, result.Success)
	assert.Equal(t, "45.52N_122.68W", result.RegionSlug)
	assert.Equal(t, "opentopography", result.Metadata["selected_source"])

	meta, err := o.store.ReadMetadata(result.RegionSlug)
	require.NoError(t, err)
	require.NotNil(t, meta.CenterLat)
	assert.InDelta(t, 45.5152, *meta.CenterLat, 0.001)
}

func TestAcquireCacheHitOnSecondCall(t *testing.T) {
	o, adapters, _ := setup(t)
	sink := &events.CollectSink{}

	first := o.Acquire(context.Background(), 45.5152, -122.6784, 5.0, domain.DataTypeElevation, domain.ResolutionMedium, false, nil, adapters, sink)
	require.True(t, first.Success)

	sink2 := &events.CollectSink{}
	second := o.Acquire(context.Background(), 45.5152, -122.6784, 5.0, domain.DataTypeElevation, domain.ResolutionMedium, false, nil, adapters, sink2)
	require.True(t, second.Success)

	var sawCacheHit bool
	for _, e := range sink2.Events {
		if e.Type == events.TypeCacheHit {
			sawCacheHit = true
		}
	}
	assert.True(t, sawCacheHit)
}

func TestAcquireImageryStampsNDVIAndFiresConversionTrigger(t *testing.T) {
	o, adapters, dir := setup(t)
	staged := filepath.Join(dir, "sentinel2.tif")
	require.NoError(t, os.WriteFile(staged, []byte("fake packed tiff"), 0o644))
	adapters["copernicus_sentinel2"] = &fakeAdapter{name: "copernicus_sentinel2", available: true, filePath: staged}

	var gotSlug string
	o.SetConversionTrigger(func(ctx context.Context, slug, path string, sink events.Sink) {
		gotSlug = slug
	})

	sink := &events.CollectSink{}
	result := o.Acquire(context.Background(), 45.5152, -122.6784, 5.0, domain.DataTypeImagery, domain.ResolutionMedium, true, nil, adapters, sink)
	require.True(t, result.Success)
	assert.Equal(t, result.RegionSlug, gotSlug)

	meta, err := o.store.ReadMetadata(result.RegionSlug)
	require.NoError(t, err)
	assert.True(t, meta.NDVIEnabled)
}
