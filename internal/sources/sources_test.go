package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrain-pipeline/internal/domain"
	"terrain-pipeline/internal/events"
)

func readFile(path string) ([]byte, error) { return os.ReadFile(path) }

func testRequest() domain.DownloadRequest {
	return domain.DownloadRequest{
		BBox:          domain.BBox{West: -122.73, South: 45.47, East: -122.63, North: 45.57},
		DataType:      domain.DataTypeElevation,
		Resolution:    domain.ResolutionMedium,
		MaxFileSizeMB: 500,
	}
}

func TestOpenTopographyCheckAvailabilityWithoutAPIKey(t *testing.T) {
	a := NewOpenTopography("", "COP30", t.TempDir())
	assert.False(t, a.CheckAvailability(context.Background(), testRequest()))
}

func TestOpenTopographyDownloadMissingAPIKeyIsAPIKeyMissing(t *testing.T) {
	a := NewOpenTopography("", "COP30", t.TempDir())
	result := a.Download(context.Background(), testRequest(), events.NopSink{})
	require.False(t, result.Success)
	assert.Equal(t, "API_KEY_MISSING", result.Metadata["kind"])
}

func TestDownloadToTempIsAtomicAndEmitsProgress(t *testing.T) {
	tiffMagic := []byte("II*\x00" + "rest of fake tiff body padded out to be reasonably sized for progress testing 0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/tiff")
		w.WriteHeader(http.StatusOK)
		w.Write(tiffMagic)
	}))
	defer srv.Close()

	dir := t.TempDir()
	sink := &events.CollectSink{}
	path, size, err := downloadToTemp(context.Background(), srv.Client(), srv.URL, dir, "opentopography", "dl-1", sink)
	require.NoError(t, err)
	assert.Equal(t, int64(len(tiffMagic)), size)

	data, err := readFile(path)
	require.NoError(t, err)
	assert.Equal(t, tiffMagic, data)

	require.GreaterOrEqual(t, len(sink.Events), 2)
	assert.Equal(t, events.TypeDownloadStarted, sink.Events[0].Type)
	assert.Equal(t, events.TypeDownloadComplete, sink.Events[len(sink.Events)-1].Type)
}

func TestValidResponseBodyRejectsNonTiffNonGDAL(t *testing.T) {
	assert.False(t, ValidResponseBody(http.StatusOK, "text/html", []byte("<html>error</html>")))
	assert.False(t, ValidResponseBody(http.StatusNotFound, "image/tiff", []byte("II*\x00")))
}

func TestValidResponseBodyAcceptsGDALMarker(t *testing.T) {
	body := []byte("garbage-prefix GDAL_STRUCTURAL_METADATA garbage-suffix")
	assert.True(t, ValidResponseBody(http.StatusOK, "text/plain", body))
}

func TestClassifyBiomeAmazon(t *testing.T) {
	amazon := domain.BBox{West: -60.1, South: -3.2, East: -59.9, North: -3.0}
	assert.Equal(t, biomeAmazon, classifyBiome(amazon))
	assert.Equal(t, []string{"NASADEM", "COP30", "SRTMGL1"}, datasetCascade(classifyBiome(amazon)))
}

func TestClassifyBiomeDefault(t *testing.T) {
	outside := domain.BBox{West: -40, South: -30, East: -39, North: -29}
	assert.Equal(t, biomeDefault, classifyBiome(outside))
}

func TestBrazilianElevationCheckAvailabilityRejectsOutsideBrazil(t *testing.T) {
	a := NewBrazilianElevation("key", t.TempDir())
	outside := domain.DownloadRequest{BBox: domain.BBox{West: -122.73, South: 45.47, East: -122.63, North: 45.57}}
	assert.False(t, a.CheckAvailability(context.Background(), outside))
}

func TestOpenElevationFallbackParsesElevationAndWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"latitude":-3.1,"longitude":-60.0,"elevation":87.5}]}`))
	}))
	defer srv.Close()

	old := openElevationURL
	openElevationURL = srv.URL
	defer func() { openElevationURL = old }()

	a := NewBrazilianElevation("key", t.TempDir(), WithHTTPClient(srv.Client()))
	req := domain.DownloadRequest{BBox: domain.BBox{West: -60.1, South: -3.2, East: -59.9, North: -3.0}}

	result, ok := a.openElevationFallback(context.Background(), req, []string{"COP30", "NASADEM", "SRTMGL1"})
	require.True(t, ok)
	require.True(t, result.Success)
	assert.Equal(t, "open_elevation_point", result.Metadata["degraded_source"])
	assert.Equal(t, 87.5, result.Metadata["elevation_m"])

	data, err := readFile(result.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "87.500000")
}

func TestOpenElevationFallbackFailsClosedOnBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	old := openElevationURL
	openElevationURL = srv.URL
	defer func() { openElevationURL = old }()

	a := NewBrazilianElevation("key", t.TempDir(), WithHTTPClient(srv.Client()))
	req := testRequest()

	_, ok := a.openElevationFallback(context.Background(), req, nil)
	assert.False(t, ok)
}

func TestUSGS3DEPRejectsNonUSBBox(t *testing.T) {
	a := NewUSGS3DEP(t.TempDir())
	req := domain.DownloadRequest{BBox: domain.BBox{West: -60.1, South: -3.2, East: -59.9, North: -3.0}}
	result := a.Download(context.Background(), req, events.NopSink{})
	assert.False(t, result.Success)
}

func TestUSGS3DEPDownloadWritesInstructionsFile(t *testing.T) {
	a := NewUSGS3DEP(t.TempDir())
	req := domain.DownloadRequest{BBox: domain.BBox{West: -122.9, South: 45.3, East: -122.5, North: 45.6}}
	result := a.Download(context.Background(), req, events.NopSink{})
	require.True(t, result.Success)
	assert.Equal(t, false, result.Metadata["direct_download"])
}

func TestRateLimitStateBacksOffAndResets(t *testing.T) {
	s := NewRateLimitState()
	assert.False(t, s.IsLimited("opentopography"))

	wait := s.RecordRateLimit("opentopography")
	assert.Equal(t, 5*time.Minute, wait)
	assert.True(t, s.IsLimited("opentopography"))

	s.Reset("opentopography")
	assert.False(t, s.IsLimited("opentopography"))
}

func TestCacheKeyHashDeterministic(t *testing.T) {
	b := domain.BBox{West: -60.1, South: -3.2, East: -59.9, North: -3.0}
	h1 := CacheKeyHash("opentopography", b, domain.ResolutionMedium, domain.DataTypeElevation)
	h2 := CacheKeyHash("opentopography", b, domain.ResolutionMedium, domain.DataTypeElevation)
	assert.Equal(t, h1, h2)

	h3 := CacheKeyHash("usgs_3dep", b, domain.ResolutionMedium, domain.DataTypeElevation)
	assert.NotEqual(t, h1, h3)
}
