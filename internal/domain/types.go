// Package domain holds the value types shared across the acquisition and
// processing subsystems: data types, requests/results, source capability
// descriptors, regions, and cache entries (spec §3). Grounded on the
// teacher's internal/common/*.go leaf types (provider names, download
// results), generalized from tile-imagery concerns to whole-raster
// acquisition concerns.
package domain

import "time"

// DataType enumerates the kinds of raster data the system can acquire.
type DataType string

const (
	DataTypeElevation DataType = "elevation"
	DataTypeImagery   DataType = "imagery"
	DataTypeLAZ       DataType = "laz"
	DataTypeRadar     DataType = "radar"
)

// Resolution classifies ground sample distance.
type Resolution string

const (
	ResolutionHigh   Resolution = "high"   // < 1 m
	ResolutionMedium Resolution = "medium" // 1-10 m
	ResolutionLow    Resolution = "low"    // > 10 m
)

// ResolutionFor classifies a ground sample distance in meters.
func ResolutionFor(meters float64) Resolution {
	switch {
	case meters < 1:
		return ResolutionHigh
	case meters <= 10:
		return ResolutionMedium
	default:
		return ResolutionLow
	}
}

// DownloadRequest is the normalized request passed to every Source Adapter.
type DownloadRequest struct {
	BBox           BBox
	DataType       DataType
	Resolution     Resolution
	OutputFormat   string
	MaxFileSizeMB  float64
	RegionName     string // filesystem-safe slug, optional
}

// BBox mirrors geo.BoundingBox's shape without importing the geo package,
// avoiding an import cycle between domain and the packages that build
// requests from geo.BoundingBox values (callers convert at the boundary).
type BBox struct {
	West, South, East, North float64
}

// DownloadResult is what every adapter and the router return.
type DownloadResult struct {
	Success       bool
	FilePath      string
	FileSizeMB    float64
	ResolutionM   float64
	ErrorMessage  string
	Metadata      map[string]any
}

// SourceCapability is the static capability descriptor for one adapter.
type SourceCapability struct {
	DataTypes        []DataType
	Resolutions      []Resolution
	CoverageRegions  []string
	MaxAreaKM2       float64
	RequiresAPIKey   bool
}

// RegionSourceType identifies how a region was originally populated.
type RegionSourceType string

const (
	RegionSourceInputLAZ      RegionSourceType = "input-laz"
	RegionSourceCoordinate    RegionSourceType = "coordinate"
	RegionSourceSavedPlace    RegionSourceType = "saved-place"
	RegionSourceElevationAPI  RegionSourceType = "elevation-api"
)

// Region is the primary identity of processed data (spec §3).
type Region struct {
	Name         string
	CenterLat    float64
	CenterLng    float64
	HasCenter    bool
	Bounds       *BBox
	SourceType   RegionSourceType
	NDVIEnabled  bool
	CreatedAt    time.Time
}

// CacheEntry is the metadata stored alongside a cached blob (spec §3, §4.5).
type CacheEntry struct {
	HashKey      string
	OriginalKey  string
	CreatedAt    time.Time
	LastAccessed time.Time
	FileSize     int64
	Metadata     map[string]any
}
