package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadAppliesDefaultsWhenEnvEmpty(t *testing.T) {
	for _, k := range []string{
		"OPENTOPOGRAPHY_API_KEY", "OPENTOPO_KEY", "OPENTOPO_API_KEY",
		"TERRAIN_CACHE_DIR", "TERRAIN_CACHE_MAX_AGE_DAYS",
	} {
		os.Unsetenv(k)
	}
	s := Load()
	assert.Equal(t, "./cache", s.CacheDir)
	assert.Equal(t, 24, s.CacheTTLHours)
	assert.Equal(t, int64(25_000_000), s.OverlayThresholdPixels)
	assert.False(t, s.HasOpenTopographyCredentials())
}

func TestLoadPrefersAPIKeyAliasOrder(t *testing.T) {
	os.Unsetenv("OPENTOPOGRAPHY_API_KEY")
	os.Setenv("OPENTOPO_KEY", "alias-key")
	defer os.Unsetenv("OPENTOPO_KEY")

	s := Load()
	assert.Equal(t, "alias-key", s.OpenTopographyAPIKey)
	assert.True(t, s.HasOpenTopographyCredentials())
}

func TestLoadOverridesCacheMaxAgeDays(t *testing.T) {
	os.Setenv("TERRAIN_CACHE_MAX_AGE_DAYS", "7")
	defer os.Unsetenv("TERRAIN_CACHE_MAX_AGE_DAYS")

	s := Load()
	assert.Equal(t, 7, s.CacheMaxAgeDays)
}

func TestHasCDSECredentials(t *testing.T) {
	s := Default()
	assert.False(t, s.HasCDSECredentials())
	s.CDSEToken = "static-token"
	assert.True(t, s.HasCDSECredentials())
}
