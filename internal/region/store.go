// Package region implements the Region Store (spec §4.4): the on-disk
// directory contract, metadata.txt lifecycle with its preservation rule,
// region listing, and deletion. Grounded on the teacher's
// internal/config/settings.go file-persistence idiom and
// internal/utils/naming/{coordinates,filename}.go's slug/sanitization
// helpers, generalized from tile-imagery naming to region-slug naming.
package region

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"terrain-pipeline/internal/domain"
)

// Markers that identify a richer, elevation-API-sourced metadata.txt that
// must never be overwritten by a lesser write (spec §4.4 "Preservation
// rule").
var preservationMarkers = []string{
	"# Source: Elevation API",
	"Buffer Distance (km):",
	"# REQUESTED BOUNDS (WGS84 - EPSG:4326)",
	"Download ID:",
}

// coordinatePattern matches region-slug-shaped coordinate folders, e.g.
// "12.53S_53.02W" (spec §4.4, §6).
var coordinatePattern = regexp.MustCompile(`(?i)(\d+\.\d+)([ns])_(\d+\.\d+)([ew])`)

// pathTraversalPattern rejects free-form names containing traversal
// characters, per the teacher's ValidateCachePath defense.
var pathTraversalPattern = regexp.MustCompile(`\.\.|[\\/]`)

// Store is the Region Store rooted at outputDir/inputDir, guarding
// metadata.txt read-modify-write cycles with a per-slug mutex (spec §5).
type Store struct {
	outputDir string
	inputDir  string

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
}

// New constructs a Store over the given output/input directory roots.
// Directories are created lazily, matching the cache's and the region
// tree's "created lazily on first write" convention.
func New(outputDir, inputDir string) *Store {
	return &Store{outputDir: outputDir, inputDir: inputDir, locks: map[string]*sync.Mutex{}}
}

func (s *Store) lockFor(slug string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[slug]
	if !ok {
		l = &sync.Mutex{}
		s.locks[slug] = l
	}
	return l
}

// RegionDir returns ./output/<slug>.
func (s *Store) RegionDir(slug string) string { return filepath.Join(s.outputDir, slug) }

// InputDir returns ./input/<slug>.
func (s *Store) InputDir(slug string) string { return filepath.Join(s.inputDir, slug) }

// Slugify validates name as a filesystem-safe slug (spec §3's "region_name,
// when present, is a filesystem-safe slug" invariant) and rejects
// path-traversal characters.
func Slugify(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("region name must not be empty")
	}
	if pathTraversalPattern.MatchString(name) {
		return "", fmt.Errorf("region name %q contains path-traversal or separator characters", name)
	}
	return name, nil
}

// CoordinateSlug formats (lat, lng) into the §6 coordinate-folder pattern,
// e.g. "12.53S_53.02W".
func CoordinateSlug(lat, lng float64) string {
	latDir := "N"
	if lat < 0 {
		latDir = "S"
	}
	lngDir := "E"
	if lng < 0 {
		lngDir = "W"
	}
	return fmt.Sprintf("%.2f%s_%.2f%s", absf(lat), latDir, absf(lng), lngDir)
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ensureDirs creates the fixed lidar/ subtree for a region (spec §4.4).
func (s *Store) ensureDirs(slug string) error {
	base := s.RegionDir(slug)
	subdirs := []string{
		"lidar/DTM", "lidar/DSM", "lidar/CHM", "lidar/Hillshade", "lidar/HillshadeRgb",
		"lidar/Slope", "lidar/Aspect", "lidar/TPI", "lidar/LRM", "lidar/SVF", "lidar/ColorRelief",
		"lidar/cropped", "lidar/png_outputs/matplotlib",
	}
	for _, d := range subdirs {
		if err := os.MkdirAll(filepath.Join(base, d), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Metadata is the parsed/writable shape of metadata.txt (spec §4.4).
type Metadata struct {
	RegionName    string
	Source        string
	FilePath      string
	NDVIEnabled   bool
	CenterLat     *float64
	CenterLng     *float64
	NorthBound    *float64
	SouthBound    *float64
	EastBound     *float64
	WestBound     *float64
	SourceCRS     string
	NativeBounds  string
}

func fmtOptFloat(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func fmtOptString(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// render produces the fixed-order metadata.txt body (spec §4.4).
func (m Metadata) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Region Name: %s\n", m.RegionName)
	fmt.Fprintf(&b, "Source: %s\n", fmtOptString(m.Source))
	fmt.Fprintf(&b, "File Path: %s\n", fmtOptString(m.FilePath))
	fmt.Fprintf(&b, "NDVI Enabled: %t\n", m.NDVIEnabled)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Center Latitude: %s\n", fmtOptFloat(m.CenterLat))
	fmt.Fprintf(&b, "Center Longitude: %s\n", fmtOptFloat(m.CenterLng))
	fmt.Fprintf(&b, "North Bound: %s\n", fmtOptFloat(m.NorthBound))
	fmt.Fprintf(&b, "South Bound: %s\n", fmtOptFloat(m.SouthBound))
	fmt.Fprintf(&b, "East Bound: %s\n", fmtOptFloat(m.EastBound))
	fmt.Fprintf(&b, "West Bound: %s\n", fmtOptFloat(m.WestBound))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Source CRS: %s\n", fmtOptString(m.SourceCRS))
	fmt.Fprintf(&b, "Native Bounds: %s\n", fmtOptString(m.NativeBounds))
	return b.String()
}

// isPreserved reports whether existing metadata.txt content carries any of
// the "richer" elevation-API markers that make a subsequent write a no-op.
func isPreserved(content string) bool {
	for _, marker := range preservationMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

// WriteMetadata writes metadata.txt for slug, honoring the preservation
// rule: if the existing file is richer (carries any preservation marker),
// the write is a no-op.
func (s *Store) WriteMetadata(slug string, m Metadata) error {
	l := s.lockFor(slug)
	l.Lock()
	defer l.Unlock()

	if err := s.ensureDirs(slug); err != nil {
		return err
	}

	path := filepath.Join(s.RegionDir(slug), "metadata.txt")
	if existing, err := os.ReadFile(path); err == nil {
		if isPreserved(string(existing)) {
			return nil // richer file is authoritative; no-op.
		}
	}

	return os.WriteFile(path, []byte(m.render()), 0o644)
}

// ReadMetadata parses metadata.txt for slug, tolerating "N/A" placeholders.
func (s *Store) ReadMetadata(slug string) (Metadata, error) {
	path := filepath.Join(s.RegionDir(slug), "metadata.txt")
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	m := Metadata{RegionName: slug}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		switch key {
		case "Region Name":
			m.RegionName = val
		case "Source":
			m.Source = val
		case "File Path":
			m.FilePath = val
		case "NDVI Enabled":
			m.NDVIEnabled = val == "true"
		case "Center Latitude":
			m.CenterLat = parseOptFloat(val)
		case "Center Longitude":
			m.CenterLng = parseOptFloat(val)
		case "North Bound":
			m.NorthBound = parseOptFloat(val)
		case "South Bound":
			m.SouthBound = parseOptFloat(val)
		case "East Bound":
			m.EastBound = parseOptFloat(val)
		case "West Bound":
			m.WestBound = parseOptFloat(val)
		case "Source CRS":
			m.SourceCRS = val
		case "Native Bounds":
			m.NativeBounds = val
		}
	}
	return m, sc.Err()
}

func parseOptFloat(s string) *float64 {
	if s == "" || s == "N/A" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ListFilter controls List's source/populated-lidar filtering of
// output regions.
type ListFilter struct {
	SourceFilter string // matches Metadata.Source if non-empty
	// PopulatedOnly corresponds to spec §4.4's `openai_filter`: only
	// regions with both metadata.txt and a populated lidar/ subtree.
	PopulatedOnly bool
}

// List enumerates ./output/*/metadata.txt and the top level of ./input (LAZ
// files and coordinate-pattern folders directly in it), per spec §4.4.
// Subdirectories of ./input, including input/LAZ/, are not searched, and
// ListFilter is not applied to input entries. LAZ files are listed without
// opening them — center coordinates stay nil until explicit selection
// ("Deferred LAZ analysis").
func (s *Store) List(filter ListFilter) ([]domain.Region, error) {
	var regions []domain.Region

	entries, err := os.ReadDir(s.outputDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		slug := e.Name()
		meta, err := s.ReadMetadata(slug)
		if err != nil {
			continue // no metadata.txt: skip, not a fatal listing error.
		}
		if filter.SourceFilter != "" && meta.Source != filter.SourceFilter {
			continue
		}
		if filter.PopulatedOnly && !s.hasPopulatedLidar(slug) {
			continue
		}
		regions = append(regions, metadataToRegion(slug, meta))
	}

	lazRegions, err := s.listInputLAZ()
	if err != nil {
		return nil, err
	}
	regions = append(regions, lazRegions...)

	return regions, nil
}

func (s *Store) hasPopulatedLidar(slug string) bool {
	lidar := filepath.Join(s.RegionDir(slug), "lidar")
	var found bool
	_ = filepath.WalkDir(lidar, func(path string, d os.DirEntry, err error) error {
		if err != nil || found {
			return nil
		}
		if !d.IsDir() {
			found = true
		}
		return nil
	})
	return found
}

func (s *Store) listInputLAZ() ([]domain.Region, error) {
	entries, err := os.ReadDir(s.inputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var regions []domain.Region
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			if coordinatePattern.MatchString(name) {
				regions = append(regions, domain.Region{
					Name:       name,
					SourceType: domain.RegionSourceInputLAZ,
					HasCenter:  false, // deferred LAZ analysis
				})
			}
			continue
		}
		if strings.HasSuffix(strings.ToLower(name), ".laz") || strings.HasSuffix(strings.ToLower(name), ".las") {
			regions = append(regions, domain.Region{
				Name:       strings.TrimSuffix(name, filepath.Ext(name)),
				SourceType: domain.RegionSourceInputLAZ,
				HasCenter:  false,
			})
		}
	}
	return regions, nil
}

func metadataToRegion(slug string, m Metadata) domain.Region {
	r := domain.Region{
		Name:        slug,
		SourceType:  domain.RegionSourceType(m.Source),
		NDVIEnabled: m.NDVIEnabled,
	}
	if m.CenterLat != nil && m.CenterLng != nil {
		r.CenterLat = *m.CenterLat
		r.CenterLng = *m.CenterLng
		r.HasCenter = true
	}
	if m.NorthBound != nil && m.SouthBound != nil && m.EastBound != nil && m.WestBound != nil {
		r.Bounds = &domain.BBox{
			North: *m.NorthBound, South: *m.SouthBound, East: *m.EastBound, West: *m.WestBound,
		}
	}
	return r
}

// Delete removes ./input/<slug>, ./output/<slug>, and any
// ./input/LAZ/<slug>.{laz,las} matches, per spec §4.4. Cache entries are
// never touched here.
func (s *Store) Delete(slug string) error {
	l := s.lockFor(slug)
	l.Lock()
	defer l.Unlock()

	if err := os.RemoveAll(s.RegionDir(slug)); err != nil {
		return err
	}
	if err := os.RemoveAll(s.InputDir(slug)); err != nil {
		return err
	}
	lazDir := filepath.Join(s.inputDir, "LAZ")
	for _, ext := range []string{".laz", ".las"} {
		p := filepath.Join(lazDir, slug+ext)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
