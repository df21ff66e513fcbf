package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrain-pipeline/internal/domain"
	"terrain-pipeline/internal/events"
)

type fakeAdapter struct {
	name      string
	available bool
	result    domain.DownloadResult
}

func (f *fakeAdapter) Name() string                                     { return f.name }
func (f *fakeAdapter) Capabilities() domain.SourceCapability             { return domain.SourceCapability{} }
func (f *fakeAdapter) CheckAvailability(ctx context.Context, req domain.DownloadRequest) bool {
	return f.available
}
func (f *fakeAdapter) EstimateSize(ctx context.Context, req domain.DownloadRequest) float64 { return 0 }
func (f *fakeAdapter) Download(ctx context.Context, req domain.DownloadRequest, sink events.Sink) domain.DownloadResult {
	return f.result
}

func TestDetectRegionIsDeterministicAndTotal(t *testing.T) {
	amazon := domain.BBox{West: -60.1, South: -3.2, East: -59.9, North: -3.0}
	ocean := domain.BBox{West: -170, South: -40, East: -169, North: -39}

	assert.Equal(t, RegionAmazon, DetectRegion(amazon))
	assert.Equal(t, DetectRegion(amazon), DetectRegion(amazon)) // deterministic
	assert.Equal(t, RegionGlobal, DetectRegion(ocean))          // total: always returns something
}

func TestDownloadWithRoutingFailsOverToSecondSource(t *testing.T) {
	first := &fakeAdapter{name: "brazilian_elevation", available: true, result: domain.DownloadResult{Success: false, ErrorMessage: "401"}}
	second := &fakeAdapter{name: "opentopography", available: true, result: domain.DownloadResult{Success: true, FilePath: "/tmp/x.tif"}}

	r := New(Registry{"brazilian_elevation": first, "opentopography": second, "ornl_daac": &fakeAdapter{name: "ornl_daac"}})

	req := domain.DownloadRequest{BBox: domain.BBox{West: -60.1, South: -3.2, East: -59.9, North: -3.0}, DataType: domain.DataTypeElevation}
	sink := &events.CollectSink{}
	result := r.DownloadWithRouting(context.Background(), req, nil, sink)

	require.True(t, result.Success)
	assert.Equal(t, "opentopography", result.Metadata["selected_source"])
	assert.Equal(t, []string{"brazilian_elevation", "opentopography"}, result.Metadata["tried_sources"])
}

func TestDownloadWithRoutingSkipsUnavailableSource(t *testing.T) {
	unavailable := &fakeAdapter{name: "brazilian_elevation", available: false}
	ok := &fakeAdapter{name: "opentopography", available: true, result: domain.DownloadResult{Success: true}}

	r := New(Registry{"brazilian_elevation": unavailable, "opentopography": ok, "ornl_daac": &fakeAdapter{name: "ornl_daac"}})
	req := domain.DownloadRequest{BBox: domain.BBox{West: -60.1, South: -3.2, East: -59.9, North: -3.0}, DataType: domain.DataTypeElevation}
	sink := &events.CollectSink{}

	result := r.DownloadWithRouting(context.Background(), req, nil, sink)
	require.True(t, result.Success)

	var sawUnavailable bool
	for _, e := range sink.Events {
		if e.Type == events.TypeSourceUnavailable && e.Source == "brazilian_elevation" {
			sawUnavailable = true
		}
	}
	assert.True(t, sawUnavailable)
}

func TestDownloadWithRoutingAllFailReturnsCompositeFailure(t *testing.T) {
	a := &fakeAdapter{name: "usgs_3dep", available: true, result: domain.DownloadResult{Success: false, ErrorMessage: "no coverage"}}
	b := &fakeAdapter{name: "opentopography", available: true, result: domain.DownloadResult{Success: false, ErrorMessage: "timeout"}}
	c := &fakeAdapter{name: "ornl_daac", available: true, result: domain.DownloadResult{Success: false, ErrorMessage: "no dataset"}}

	r := New(Registry{"usgs_3dep": a, "opentopography": b, "ornl_daac": c})
	req := domain.DownloadRequest{BBox: domain.BBox{West: -170, South: -40, East: -169, North: -39}, DataType: domain.DataTypeElevation}

	result := r.DownloadWithRouting(context.Background(), req, nil, &events.CollectSink{})
	require.False(t, result.Success)
	tried := result.Metadata["tried_sources"].([]string)
	assert.Len(t, tried, 2)
}
