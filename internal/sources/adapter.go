// Package sources implements the Source Adapter contract (spec §4.1): one
// adapter per external elevation/imagery provider, each polymorphic over
// {Capabilities, Name, CheckAvailability, EstimateSize, Download}.
//
// Grounded on _examples/other_examples/ecfd5d93_btraven00-hapiq__pkg-
// downloaders-geo-downloader.go.go's functional-options adapter shape
// (Option func(*T), Validate/Download interface split, atomic
// download-then-rename write) and the teacher's
// internal/downloads/esri/downloader.go constructor-injection pattern,
// replacing the "multiple inheritance / mixins of source classes" pattern
// (spec §9) with a single capability interface plus free functions shared
// across implementations.
package sources

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/domain"
	"terrain-pipeline/internal/events"
)

// Adapter is the uniform interface every Source Adapter implements.
type Adapter interface {
	Name() string
	Capabilities() domain.SourceCapability
	CheckAvailability(ctx context.Context, req domain.DownloadRequest) bool
	EstimateSize(ctx context.Context, req domain.DownloadRequest) float64
	Download(ctx context.Context, req domain.DownloadRequest, sink events.Sink) domain.DownloadResult
}

// Option configures an adapter at construction time (functional-options
// pattern, grounded on the geo-downloader reference file).
type Option func(*options)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	apiKey     string
}

func defaultOptions() options {
	return options{
		httpClient: http.DefaultClient,
		timeout:    300 * time.Second,
	}
}

// WithHTTPClient overrides the adapter's HTTP client (tests inject one
// pointed at httptest.Server).
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout overrides the adapter's per-download timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithAPIKey sets a static API key/token.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// CacheKeyString builds the pre-hash cache key string
// source||bbox_rounded||resolution||data_type (spec §3's CacheEntry key).
// The orchestrator does not use it; it keys its cache with
// orchestratorCacheKey.
func CacheKeyString(source string, b domain.BBox, resolution domain.Resolution, dataType domain.DataType) string {
	return fmt.Sprintf("%s||%.4f,%.4f,%.4f,%.4f||%s||%s", source, b.West, b.South, b.East, b.North, resolution, dataType)
}

// CacheKeyHash is the md5 hex digest of CacheKeyString, used to address the
// content-addressed cache.
func CacheKeyHash(source string, b domain.BBox, resolution domain.Resolution, dataType domain.DataType) string {
	sum := md5.Sum([]byte(CacheKeyString(source, b, resolution, dataType)))
	return hex.EncodeToString(sum[:])
}

// ExceedsArea reports whether bbox's area exceeds the capability's max, a
// free function shared across adapters per spec §9's "shared code... lives
// in free functions over the interface."
func ExceedsArea(areaKM2 float64, cap domain.SourceCapability) bool {
	return cap.MaxAreaKM2 > 0 && areaKM2 > cap.MaxAreaKM2
}

// SupportsDataType reports whether cap declares support for dt.
func SupportsDataType(cap domain.SourceCapability, dt domain.DataType) bool {
	for _, d := range cap.DataTypes {
		if d == dt {
			return true
		}
	}
	return false
}

// ValidResponseBody implements spec §4.1's Brazilian-elevation response
// validity check, reused by any adapter consuming a raw HTTP body: HTTP 200
// AND (content-type image/*|application/* OR TIFF magic OR the
// GDAL_STRUCTURAL_METADATA marker in the first 1KB).
func ValidResponseBody(statusCode int, contentType string, body []byte) bool {
	if statusCode != http.StatusOK {
		return false
	}
	if len(contentType) >= 6 && (contentType[:6] == "image/" || (len(contentType) >= 12 && contentType[:12] == "application/")) {
		return true
	}
	if len(body) >= 4 {
		magic := string(body[:4])
		if magic == "II*\x00" || magic == "MM\x00*" {
			return true
		}
	}
	probe := body
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	return containsASCII(probe, "GDAL_STRUCTURAL_METADATA")
}

func containsASCII(haystack []byte, needle string) bool {
	n := len(needle)
	for i := 0; i+n <= len(haystack); i++ {
		if string(haystack[i:i+n]) == needle {
			return true
		}
	}
	return false
}

// failure builds a DownloadResult for a given apperr.Kind/message, the
// uniform failure shape adapters return instead of bubbling an exception to
// the Router (spec §7 "Adapter-level" propagation policy).
func failure(kind apperr.Kind, message string) domain.DownloadResult {
	return domain.DownloadResult{Success: false, ErrorMessage: message, Metadata: map[string]any{"kind": string(kind)}}
}

// classifyHTTPStatus maps an HTTP status code to the taxonomy kind per spec
// §4.1's failure-mode list.
func classifyHTTPStatus(code int) apperr.Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperr.KindAuth
	case code == http.StatusTooManyRequests || code == 509:
		return apperr.KindRateLimit
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return apperr.KindTimeout
	case code == http.StatusRequestEntityTooLarge:
		return apperr.KindFileSizeExceeded
	case code >= 500:
		return apperr.KindDataNotAvailable
	default:
		return apperr.KindNetwork
	}
}
