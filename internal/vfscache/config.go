package vfscache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/auriora/onemount-vfscache/pkg/errors"
	yaml "gopkg.in/yaml.v3"
)

// DirConfig configures DirPool.
type DirConfig struct {
	LRUCacheSize int           `yaml:"lru_cache_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// DownloadConfig configures the download producer.
type DownloadConfig struct {
	MaxRetry           int           `yaml:"max_retry"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	StreamBufferChunks int           `yaml:"stream_buffer_chunks"`
}

// DiskCacheConfig configures DiskCache admission and eviction.
type DiskCacheConfig struct {
	Enable            bool   `yaml:"enable"`
	Path              string `yaml:"path"`
	MaxCachedFileSize uint64 `yaml:"max_cached_file_size"`
	MaxFiles          int    `yaml:"max_files"`
	MaxTotalSize      uint64 `yaml:"max_total_size"`
}

// UploadConfig configures FileCache's write-back uploader.
type UploadConfig struct {
	MaxSize    uint64        `yaml:"max_size"`
	FlushDelay time.Duration `yaml:"flush_delay"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// Config is the full configuration tree for the cache core. Loading it from
// a file on disk is an external collaborator's job; this type only defines
// and validates the shape.
type Config struct {
	Dir       DirConfig       `yaml:"dir"`
	Download  DownloadConfig  `yaml:"download"`
	DiskCache DiskCacheConfig `yaml:"disk_cache"`
	Upload    UploadConfig    `yaml:"upload"`
}

// DefaultConfig returns reasonable defaults for cache sizing and retry
// timing.
func DefaultConfig() Config {
	return Config{
		Dir: DirConfig{
			LRUCacheSize: 128,
			CacheTTL:     10 * time.Second,
		},
		Download: DownloadConfig{
			MaxRetry:           5,
			RetryDelay:         time.Second,
			StreamBufferChunks: 4,
		},
		DiskCache: DiskCacheConfig{
			Enable:            true,
			Path:              filepath.Join(os.TempDir(), "onemount-vfscache"),
			MaxCachedFileSize: 100 << 20,
			MaxFiles:          1000,
			MaxTotalSize:      10 << 30,
		},
		Upload: UploadConfig{
			MaxSize:    100 << 20,
			FlushDelay: 5 * time.Second,
			RetryDelay: 5 * time.Second,
		},
	}
}

// ParseConfig parses yaml-formatted config data over top of DefaultConfig,
// so an omitted section keeps its default rather than zeroing out. Reading
// the bytes from a particular path, merging CLI flags, etc. is the
// caller's job; this is just the YAML decode step.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse vfscache config yaml")
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration's cross-field invariants.
func (c Config) Validate() error {
	if c.DiskCache.Enable && c.DiskCache.MaxCachedFileSize > c.DiskCache.MaxTotalSize {
		return errors.New("disk_cache.max_cached_file_size must be <= disk_cache.max_total_size")
	}
	if c.Dir.LRUCacheSize <= 0 {
		return errors.New("dir.lru_cache_size must be positive")
	}
	if c.DiskCache.Enable && c.DiskCache.MaxFiles <= 0 {
		return errors.New("disk_cache.max_files must be positive when disk_cache is enabled")
	}
	return nil
}
