package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutThenGetReturnsIdenticalBytes(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, 24*time.Hour)

	hash := Key("opentopography", -60.1, -3.2, -59.9, -3.0, "medium", "elevation")
	payload := []byte("fake geotiff bytes")

	require.NoError(t, c.Put(hash, "opentopography||bbox", payload, map[string]any{"source": "opentopography"}))

	path, meta, ok := c.Get(hash)
	require.True(t, ok)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, "opentopography", meta["source"])
}

func TestGetMissingKey(t *testing.T) {
	c := New(t.TempDir(), time.Hour)
	_, _, ok := c.Get("nonexistent")
	assert.False(t, ok)
}

func TestGetExpiredEntryInvalidatesAndMisses(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, time.Hour)
	hash := Key("usgs3dep", 0, 0, 1, 1, "high", "elevation")
	require.NoError(t, c.Put(hash, "k", []byte("data"), nil))

	// backdate the entry past TTL by poking the in-memory index directly
	c.mu.Lock()
	c.idx[hash].Created = time.Now().Add(-2 * time.Hour)
	c.mu.Unlock()

	_, _, ok := c.Get(hash)
	assert.False(t, ok)

	// Index file should no longer mention the hash after invalidation.
	raw, err := os.ReadFile(filepath.Join(dir, "cache_metadata.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), hash)
}

func TestGCEvictsByAgeNotAccessOrder(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, 365*24*time.Hour) // TTL long enough that GC, not TTL, does the evicting

	oldHash := Key("a", 0, 0, 1, 1, "low", "elevation")
	freshHash := Key("b", 0, 0, 1, 1, "low", "elevation")
	require.NoError(t, c.Put(oldHash, "old", []byte("old"), nil))
	require.NoError(t, c.Put(freshHash, "fresh", []byte("fresh"), nil))

	c.mu.Lock()
	c.idx[oldHash].Created = time.Now().Add(-48 * time.Hour)
	// Simulate the old entry being accessed very recently: GC must still
	// evict it by creation age, proving the policy is time-based, not LRU.
	c.idx[oldHash].LastAccessed = time.Now()
	c.mu.Unlock()

	evicted, err := c.GC(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	_, _, ok := c.Get(oldHash)
	assert.False(t, ok)
	_, _, ok = c.Get(freshHash)
	assert.True(t, ok)
}

func TestPutFileMovesSourceIntoCache(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, time.Hour)

	src := filepath.Join(t.TempDir(), "staged.tif")
	require.NoError(t, os.WriteFile(src, []byte("tiff bytes"), 0o644))

	hash := Key("copernicus_sentinel2", 0, 0, 1, 1, "high", "imagery")
	require.NoError(t, c.PutFile(hash, "k", src, map[string]any{"provider": "sentinel2"}))

	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err), "source file should have been moved, not copied")

	path, _, ok := c.Get(hash)
	require.True(t, ok)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tiff bytes", string(data))
}
