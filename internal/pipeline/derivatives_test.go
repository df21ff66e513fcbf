package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/events"
	"terrain-pipeline/internal/region"
)

func TestRunCHMMissingDSMFailsWithoutWritingPNGs(t *testing.T) {
	dir := t.TempDir()
	store := region.New(dir, filepath.Join(dir, "in"))
	sink := &events.CollectSink{}

	result := RunCHM(context.Background(), store, "noregion", sink)

	require.False(t, result.Success)
	require.True(t, apperr.IsKind(result.Err, apperr.KindMissingDSM))

	matplot := filepath.Join(store.RegionDir("noregion"), "lidar", "png_outputs", "matplotlib", "CHM_matplot.png")
	require.NoFileExists(t, matplot)
	clean := filepath.Join(store.RegionDir("noregion"), "lidar", "png_outputs", "CHM.png")
	require.NoFileExists(t, clean)

	var sawError bool
	for _, e := range sink.Events {
		if e.Type == events.TypeProcessingError {
			sawError = true
		}
	}
	require.True(t, sawError)
}
