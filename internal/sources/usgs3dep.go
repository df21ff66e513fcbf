// USGS3DEP adapter: US-only LAZ availability test. Direct point-cloud
// download is out of the processing pipeline's scope (spec §1 "no point-
// cloud algorithms beyond invoking the external DTM builder"), so when
// direct download is unavailable this adapter returns an instructions file
// naming where the LAZ tiles can be fetched, per spec §4.1.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/domain"
	"terrain-pipeline/internal/events"
)

// usgs3DEPCoverageURL is the USGS 3DEP LidarExplorer endpoint used only to
// test coverage, never to stream point-cloud data through this process.
const usgs3DEPCoverageURL = "https://index.nationalmap.gov/arcgis/rest/services/3DEPElevationIndex/MapServer/0/query"

// USGS3DEP implements Adapter over the 3DEP LAZ coverage index.
type USGS3DEP struct {
	opts   options
	tmpDir string
}

// NewUSGS3DEP constructs a USGS3DEP adapter.
func NewUSGS3DEP(tmpDir string, opts ...Option) *USGS3DEP {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &USGS3DEP{opts: o, tmpDir: tmpDir}
}

func (a *USGS3DEP) Name() string { return "usgs_3dep" }

func (a *USGS3DEP) Capabilities() domain.SourceCapability {
	return domain.SourceCapability{
		DataTypes:       []domain.DataType{domain.DataTypeLAZ, domain.DataTypeElevation},
		Resolutions:     []domain.Resolution{domain.ResolutionHigh},
		CoverageRegions: []string{"US"},
	}
}

func (a *USGS3DEP) isUSBBox(b domain.BBox) bool {
	// Conservative CONUS + Alaska/Hawaii bounding envelope.
	return b.South >= 18 && b.North <= 72 && b.West >= -179 && b.East <= -65
}

func (a *USGS3DEP) CheckAvailability(ctx context.Context, req domain.DownloadRequest) bool {
	if !a.isUSBBox(req.BBox) {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	hreq, err := http.NewRequestWithContext(ctx, http.MethodHead, usgs3DEPCoverageURL, nil)
	if err != nil {
		return false
	}
	resp, err := a.opts.httpClient.Do(hreq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func (a *USGS3DEP) EstimateSize(ctx context.Context, req domain.DownloadRequest) float64 {
	return req.MaxFileSizeMB
}

func (a *USGS3DEP) Download(ctx context.Context, req domain.DownloadRequest, sink events.Sink) domain.DownloadResult {
	if !a.isUSBBox(req.BBox) {
		return failure(apperr.KindDataNotAvailable, "bbox outside USGS 3DEP US coverage")
	}

	sink.Emit(events.Event{Type: events.TypeDownloadStarted, Source: a.Name(), Provider: "usgs_3dep"})

	instructionsPath := fmt.Sprintf("%s/usgs_3dep_instructions-%d.txt", a.tmpDir, time.Now().UnixNano())
	content := fmt.Sprintf(
		"USGS 3DEP direct LAZ download is not performed by this pipeline.\n"+
			"Fetch point-cloud tiles for bbox %+v from the USGS 3DEP LidarExplorer\n"+
			"(https://apps.nationalmap.gov/lidar-explorer/) and place the resulting\n"+
			".laz files under input/<region>/lidar/ before running the DTM builder.\n",
		req.BBox,
	)
	if err := os.WriteFile(instructionsPath, []byte(content), 0o644); err != nil {
		return failure(apperr.KindCache, fmt.Sprintf("failed to write instructions file: %v", err))
	}

	sink.Emit(events.Event{Type: events.TypeDownloadComplete, Source: a.Name(), FileSizeMB: float64(len(content)) / (1024 * 1024)})

	return domain.DownloadResult{
		Success:    true,
		FilePath:   instructionsPath,
		FileSizeMB: float64(len(content)) / (1024 * 1024),
		Metadata: map[string]any{
			"source":               a.Name(),
			"provider":             "usgs_3dep",
			"direct_download":      false,
			"instructions_only":    true,
			"bbox":                 req.BBox,
			"resolution":           string(req.Resolution),
		},
	}
}
