// BrazilianElevation adapter: a multi-dataset cascade tuned for Brazilian
// biomes (spec §4.1). Rather than a second HTTP client, it is implemented
// as a thin router over an underlying OpenTopography-shaped DEM fetcher,
// since every candidate dataset (NASADEM, COP30, SRTM, AW3D30) is served by
// OpenTopography's globaldem API — only the demtype and ordering differ per
// region heuristic.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/domain"
	"terrain-pipeline/internal/events"
)

// openElevationURL is the point-lookup endpoint named in spec §6 External
// interfaces and §7's Brazilian fallback chain. A var, not a const, so
// tests can redirect it at an httptest server.
var openElevationURL = "https://api.open-elevation.com/api/v1/lookup"

type openElevationResponse struct {
	Results []struct {
		Elevation float64 `json:"elevation"`
	} `json:"results"`
}

// biome classifies the Brazilian region heuristic table from spec §4.1.
type biome int

const (
	biomeDefault biome = iota
	biomeAmazon
	biomeCerradoCaatingaCoastal
)

func classifyBiome(b domain.BBox) biome {
	lat, lng := (b.South+b.North)/2, (b.West+b.East)/2
	if lat >= -5 && lng >= -75 && lng <= -45 {
		return biomeAmazon
	}
	// CERRADO/CAATINGA/COASTAL heuristic: the remaining Brazilian
	// interior/coastal band south of the Amazon box (a coarse
	// approximation; the precise biome boundary is not specified).
	if lat < -5 && lat >= -24 {
		return biomeCerradoCaatingaCoastal
	}
	return biomeDefault
}

// datasetCascade returns the ordered dataset list for a biome, per §4.1's
// table.
func datasetCascade(b biome) []string {
	switch b {
	case biomeAmazon:
		return []string{"NASADEM", "COP30", "SRTMGL1"}
	case biomeCerradoCaatingaCoastal:
		return []string{"COP30", "NASADEM", "SRTMGL1"}
	default:
		return []string{"COP30", "NASADEM", "SRTMGL1", "AW3D30"}
	}
}

// BrazilianElevation implements Adapter, cascading through datasetCascade
// until one succeeds.
type BrazilianElevation struct {
	apiKey string
	tmpDir string
	opts   options
}

// NewBrazilianElevation constructs the Brazilian-elevation cascade adapter.
func NewBrazilianElevation(apiKey, tmpDir string, opts ...Option) *BrazilianElevation {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &BrazilianElevation{apiKey: apiKey, tmpDir: tmpDir, opts: o}
}

func (a *BrazilianElevation) Name() string { return "brazilian_elevation" }

func (a *BrazilianElevation) Capabilities() domain.SourceCapability {
	return domain.SourceCapability{
		DataTypes:       []domain.DataType{domain.DataTypeElevation},
		Resolutions:     []domain.Resolution{domain.ResolutionMedium},
		CoverageRegions: []string{"BRAZIL", "AMAZON"},
		RequiresAPIKey:  true,
	}
}

func (a *BrazilianElevation) CheckAvailability(ctx context.Context, req domain.DownloadRequest) bool {
	// In-coverage check only; dataset-level availability is determined
	// during Download's cascade (§4.1's BrazilianElevation contract).
	return req.BBox.South >= -34 && req.BBox.North <= 6 && req.BBox.West >= -75 && req.BBox.East <= -34
}

func (a *BrazilianElevation) EstimateSize(ctx context.Context, req domain.DownloadRequest) float64 {
	return req.MaxFileSizeMB
}

func (a *BrazilianElevation) Download(ctx context.Context, req domain.DownloadRequest, sink events.Sink) domain.DownloadResult {
	if a.apiKey == "" {
		return failure(apperr.KindAPIKeyMissing, "OpenTopography API key not configured (required for Brazilian cascade)")
	}

	b := classifyBiome(req.BBox)
	cascade := datasetCascade(b)
	var tried []string

	for _, dataset := range cascade {
		tried = append(tried, dataset)
		ot := NewOpenTopography(a.apiKey, dataset, a.tmpDir, WithHTTPClient(a.opts.httpClient), WithTimeout(a.opts.timeout))

		result := ot.Download(ctx, req, sink)
		if result.Success {
			if result.Metadata == nil {
				result.Metadata = map[string]any{}
			}
			result.Metadata["source"] = a.Name()
			result.Metadata["dataset"] = dataset
			result.Metadata["tried_datasets"] = append([]string{}, tried...)
			result.Metadata["bbox"] = req.BBox
			result.Metadata["resolution"] = string(req.Resolution)
			return result
		}
		if ctx.Err() != nil {
			return failure(apperr.KindCancelled, "brazilian elevation cascade cancelled")
		}
	}

	// Last resort per spec §7: TOPODATA -> Copernicus -> Open-Elevation
	// point -> SRTM placeholder text file. TOPODATA has no corresponding
	// live source anywhere in this cascade or the corpus it was learned
	// from; Open-Elevation does, and is tried here before the placeholder.
	if result, ok := a.openElevationFallback(ctx, req, tried); ok {
		return result
	}

	placeholder := fmt.Sprintf("%s/brazilian_elevation_placeholder-%v.txt", a.tmpDir, req.BBox.North)
	content := fmt.Sprintf("SRTM placeholder: all datasets unavailable for bbox %+v; tried=%v\n", req.BBox, tried)
	if err := os.WriteFile(placeholder, []byte(content), 0o644); err != nil {
		return failure(apperr.KindDataNotAvailable, fmt.Sprintf("all datasets failed (%v) and placeholder write failed: %v", tried, err))
	}

	return domain.DownloadResult{
		Success:    true,
		FilePath:   placeholder,
		FileSizeMB: float64(len(content)) / (1024 * 1024),
		Metadata: map[string]any{
			"source":          a.Name(),
			"degraded_source": "srtm_placeholder",
			"tried_datasets":  tried,
			"bbox":            req.BBox,
			"resolution":      string(req.Resolution),
		},
	}
}

// openElevationFallback queries the Open-Elevation point API at the
// request's bbox center, the last live-HTTP rung of the cascade before the
// SRTM placeholder (spec §7). It writes a small descriptive text file
// rather than a raster, matching the point-data (not gridded) nature of
// the response.
func (a *BrazilianElevation) openElevationFallback(ctx context.Context, req domain.DownloadRequest, tried []string) (domain.DownloadResult, bool) {
	centerLat := (req.BBox.South + req.BBox.North) / 2
	centerLng := (req.BBox.West + req.BBox.East) / 2

	octx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s?locations=%f,%f", openElevationURL, centerLat, centerLng)
	hreq, err := http.NewRequestWithContext(octx, http.MethodGet, url, nil)
	if err != nil {
		return domain.DownloadResult{}, false
	}

	client := a.opts.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(hreq)
	if err != nil {
		return domain.DownloadResult{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.DownloadResult{}, false
	}

	var parsed openElevationResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || len(parsed.Results) == 0 {
		return domain.DownloadResult{}, false
	}
	elevation := parsed.Results[0].Elevation

	path := fmt.Sprintf("%s/brazilian_elevation_open_elevation-%v.txt", a.tmpDir, req.BBox.North)
	content := fmt.Sprintf("Open Elevation API point query\nLatitude: %f\nLongitude: %f\nElevation (m): %f\n", centerLat, centerLng, elevation)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return domain.DownloadResult{}, false
	}

	return domain.DownloadResult{
		Success:    true,
		FilePath:   path,
		FileSizeMB: float64(len(content)) / (1024 * 1024),
		Metadata: map[string]any{
			"source":          a.Name(),
			"degraded_source": "open_elevation_point",
			"dataset_name":    "Open Elevation Point Data",
			"data_type":       "point_elevation",
			"elevation_m":     elevation,
			"tried_datasets":  tried,
			"bbox":            req.BBox,
			"resolution":      string(req.Resolution),
		},
	}, true
}
