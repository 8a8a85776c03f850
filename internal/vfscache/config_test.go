package vfscache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUT_CF_01_01_DefaultConfig_Validates tests that DefaultConfig satisfies
// its own cross-field invariants.
func TestUT_CF_01_01_DefaultConfig_Validates(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

// TestUT_CF_01_02_Validate_RejectsCachedSizeAboveTotal tests the invariant
// max_cached_file_size <= max_total_size.
func TestUT_CF_01_02_Validate_RejectsCachedSizeAboveTotal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiskCache.MaxCachedFileSize = cfg.DiskCache.MaxTotalSize + 1
	assert.Error(t, cfg.Validate())
}

// TestUT_CF_01_03_Validate_RejectsNonPositiveLRUSize tests that a
// non-positive directory LRU size is rejected.
func TestUT_CF_01_03_Validate_RejectsNonPositiveLRUSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dir.LRUCacheSize = 0
	assert.Error(t, cfg.Validate())
}

// TestUT_CF_01_04_Validate_IgnoresCacheSizeInvariantWhenDisabled tests that
// the size cross-check is skipped entirely when disk caching is disabled.
func TestUT_CF_01_04_Validate_IgnoresCacheSizeInvariantWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiskCache.Enable = false
	cfg.DiskCache.MaxCachedFileSize = cfg.DiskCache.MaxTotalSize + 1
	cfg.DiskCache.MaxFiles = 0
	assert.NoError(t, cfg.Validate())
}

// TestUT_CF_01_05_ParseConfig_OverlaysProvidedFieldsOnDefaults tests that
// ParseConfig fills in an omitted section from DefaultConfig while
// overriding the fields the YAML document does provide.
func TestUT_CF_01_05_ParseConfig_OverlaysProvidedFieldsOnDefaults(t *testing.T) {
	yaml := []byte(`
dir:
  lru_cache_size: 64
  cache_ttl: 30s
`)
	cfg, err := ParseConfig(yaml)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Dir.LRUCacheSize)
	assert.Equal(t, 30*time.Second, cfg.Dir.CacheTTL)
	assert.Equal(t, DefaultConfig().Upload.MaxSize, cfg.Upload.MaxSize)
}

// TestUT_CF_01_06_ParseConfig_InvalidYAML_ReturnsError tests that malformed
// YAML surfaces as an error rather than a zero-value Config.
func TestUT_CF_01_06_ParseConfig_InvalidYAML_ReturnsError(t *testing.T) {
	_, err := ParseConfig([]byte("dir: [this is not a mapping"))
	assert.Error(t, err)
}
