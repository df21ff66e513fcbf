// ORNLDAAC adapter: dataset selection by data type (spec §4.1); the
// request's region does not affect which dataset is chosen.
// ORNL DAAC hosts many elevation and biomass datasets (e.g. SRTM-GL1,
// global forest canopy height); this adapter selects a dataset by data
// type and fetches it through ORNL DAAC's REST subset API.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/domain"
	"terrain-pipeline/internal/events"
)

const ornlDAACSubsetBaseURL = "https://modis.ornl.gov/rst/api/v1"

// ORNLDAAC implements Adapter against ORNL DAAC's dataset subset API.
type ORNLDAAC struct {
	opts        options
	earthdataUser string
	tmpDir      string
}

// NewORNLDAAC constructs an ORNLDAAC adapter.
func NewORNLDAAC(earthdataUser, tmpDir string, opts ...Option) *ORNLDAAC {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &ORNLDAAC{opts: o, earthdataUser: earthdataUser, tmpDir: tmpDir}
}

func (a *ORNLDAAC) Name() string { return "ornl_daac" }

func (a *ORNLDAAC) Capabilities() domain.SourceCapability {
	return domain.SourceCapability{
		DataTypes:       []domain.DataType{domain.DataTypeElevation, domain.DataTypeImagery},
		Resolutions:     []domain.Resolution{domain.ResolutionMedium, domain.ResolutionLow},
		CoverageRegions: []string{"GLOBAL"},
		RequiresAPIKey:  false, // Earthdata login improves rate limits but isn't hard-required
	}
}

// datasetFor selects an ORNL DAAC product name by data type only; region
// is not considered.
func datasetFor(dt domain.DataType) string {
	switch dt {
	case domain.DataTypeElevation:
		return "SRTMGL1_003"
	case domain.DataTypeImagery:
		return "MOD13Q1" // vegetation index composite, used as a coarse imagery fallback
	default:
		return "SRTMGL1_003"
	}
}

func (a *ORNLDAAC) buildURL(req domain.DownloadRequest) string {
	v := url.Values{}
	v.Set("product", datasetFor(req.DataType))
	lat, lng := (req.BBox.South+req.BBox.North)/2, (req.BBox.West+req.BBox.East)/2
	v.Set("latitude", fmt.Sprintf("%.6f", lat))
	v.Set("longitude", fmt.Sprintf("%.6f", lng))
	return ornlDAACSubsetBaseURL + "/" + datasetFor(req.DataType) + "/subset?" + v.Encode()
}

func (a *ORNLDAAC) CheckAvailability(ctx context.Context, req domain.DownloadRequest) bool {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodHead, a.buildURL(req), nil)
	if err != nil {
		return false
	}
	resp, err := a.opts.httpClient.Do(hreq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusMethodNotAllowed
}

func (a *ORNLDAAC) EstimateSize(ctx context.Context, req domain.DownloadRequest) float64 {
	return req.MaxFileSizeMB
}

func (a *ORNLDAAC) Download(ctx context.Context, req domain.DownloadRequest, sink events.Sink) domain.DownloadResult {
	ctx, cancel := context.WithTimeout(ctx, a.opts.timeout)
	defer cancel()

	downloadID := fmt.Sprintf("ornl_daac-%d", time.Now().UnixNano())
	tmpPath, size, err := downloadToTemp(ctx, a.opts.httpClient, a.buildURL(req), a.tmpDir, a.Name(), downloadID, sink)
	if err != nil {
		return failure(apperr.Of(err), err.Error())
	}

	return domain.DownloadResult{
		Success:    true,
		FilePath:   tmpPath,
		FileSizeMB: float64(size) / (1024 * 1024),
		Metadata: map[string]any{
			"source":     a.Name(),
			"provider":   datasetFor(req.DataType),
			"bbox":       req.BBox,
			"resolution": string(req.Resolution),
		},
	}
}
