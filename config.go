package filecache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/discochess/filecache/internal/digest"
	"github.com/discochess/filecache/internal/filelock"
)

// Serializer selects how values are encoded on disk.
type Serializer string

// Supported serializers.
const (
	// SerializerNative uses encoding/gob and preserves exact Go types.
	SerializerNative Serializer = "native"
	// SerializerJSON uses encoding/json; numbers come back as float64.
	SerializerJSON Serializer = "json"
)

// ErrorHandling selects how runtime failures are reported.
type ErrorHandling string

// Supported error handling policies.
const (
	// ErrorHandlingThrow returns every failure to the caller.
	ErrorHandlingThrow ErrorHandling = "throw"
	// ErrorHandlingLog logs each failure once and returns a safe default.
	ErrorHandlingLog ErrorHandling = "log"
	// ErrorHandlingIgnore returns a safe default silently.
	ErrorHandlingIgnore ErrorHandling = "ignore"
)

// Config holds the cache tuning parameters. Build one with DefaultConfig,
// adjust fields, and call Validate (New does so as well). Validate may be
// called again after any mutation.
type Config struct {
	// CacheDirectory is the root of the store.
	CacheDirectory string `mapstructure:"cache_directory" yaml:"cache_directory"`
	// DirectoryPermissions is applied to every directory the cache creates.
	DirectoryPermissions os.FileMode `mapstructure:"directory_permissions" yaml:"directory_permissions"`
	// FilePermissions is applied to every entry file.
	FilePermissions os.FileMode `mapstructure:"file_permissions" yaml:"file_permissions"`
	// FileExtension is appended to every entry filename, including the dot.
	FileExtension string `mapstructure:"file_extension" yaml:"file_extension"`

	// UseSharding nests entries into ShardingDepth two-character directories.
	UseSharding   bool `mapstructure:"use_sharding" yaml:"use_sharding"`
	ShardingDepth int  `mapstructure:"sharding_depth" yaml:"sharding_depth"`

	// DefaultTTL applies when Set is called without WithTTL. Zero means MaxTTL.
	DefaultTTL time.Duration `mapstructure:"default_ttl" yaml:"default_ttl"`
	// MaxTTL caps every TTL.
	MaxTTL time.Duration `mapstructure:"max_ttl" yaml:"max_ttl"`

	// GCProbability/GCDivisor is the chance that a Set runs a sweep.
	GCProbability int `mapstructure:"gc_probability" yaml:"gc_probability"`
	GCDivisor     int `mapstructure:"gc_divisor" yaml:"gc_divisor"`

	Serializer Serializer `mapstructure:"serializer" yaml:"serializer"`

	// CompressionEnabled compresses payloads larger than CompressionThreshold
	// bytes with CompressionAlgorithm at CompressionLevel.
	CompressionEnabled   bool   `mapstructure:"compression_enabled" yaml:"compression_enabled"`
	CompressionAlgorithm string `mapstructure:"compression_algorithm" yaml:"compression_algorithm"`
	CompressionLevel     int    `mapstructure:"compression_level" yaml:"compression_level"`
	CompressionThreshold int    `mapstructure:"compression_threshold" yaml:"compression_threshold"`

	// FileLocking guards entries with advisory locks held at most LockTimeout.
	FileLocking bool          `mapstructure:"file_locking" yaml:"file_locking"`
	LockTimeout time.Duration `mapstructure:"lock_timeout" yaml:"lock_timeout"`

	// KeyHashAlgorithm names the digest used for filenames.
	KeyHashAlgorithm string `mapstructure:"key_hash_algorithm" yaml:"key_hash_algorithm"`

	// MaxCacheSize is the byte budget enforced by garbage collection.
	MaxCacheSize int64 `mapstructure:"max_cache_size" yaml:"max_cache_size"`
	// MaxItemSize is the largest encoded entry Set accepts.
	MaxItemSize int64 `mapstructure:"max_item_size" yaml:"max_item_size"`

	ErrorHandling ErrorHandling `mapstructure:"error_handling" yaml:"error_handling"`

	KeyPrefix        string `mapstructure:"key_prefix" yaml:"key_prefix"`
	Namespace        string `mapstructure:"namespace" yaml:"namespace"`
	EnableStatistics bool   `mapstructure:"enable_statistics" yaml:"enable_statistics"`
}

// DefaultConfig returns the default configuration. It performs no I/O.
func DefaultConfig() Config {
	return Config{
		CacheDirectory:       filepath.Join(os.TempDir(), "filecache"),
		DirectoryPermissions: 0o755,
		FilePermissions:      0o644,
		FileExtension:        ".cache",
		UseSharding:          true,
		ShardingDepth:        2,
		DefaultTTL:           time.Hour,
		MaxTTL:               30 * 24 * time.Hour,
		GCProbability:        1,
		GCDivisor:            100,
		Serializer:           SerializerNative,
		CompressionEnabled:   false,
		CompressionAlgorithm: "gzip",
		CompressionLevel:     6,
		CompressionThreshold: 1024,
		FileLocking:          true,
		LockTimeout:          5 * time.Second,
		KeyHashAlgorithm:     "sha256",
		MaxCacheSize:         1 << 30,
		MaxItemSize:          10 << 20,
		ErrorHandling:        ErrorHandlingLog,
		EnableStatistics:     true,
	}
}

// Validate checks every field and reports all violations in a single
// *ConfigError.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.CacheDirectory) == "" {
		add("cache_directory must not be empty")
	}
	if c.DirectoryPermissions > 0o777 {
		add("directory_permissions must be within 0-0777, got %#o", uint32(c.DirectoryPermissions))
	}
	if c.FilePermissions > 0o777 {
		add("file_permissions must be within 0-0777, got %#o", uint32(c.FilePermissions))
	}

	switch {
	case !strings.HasPrefix(c.FileExtension, ".") || len(c.FileExtension) < 2:
		add("file_extension must start with '.' and name an extension, got %q", c.FileExtension)
	case strings.ContainsAny(c.FileExtension, `/\`):
		add("file_extension must not contain path separators, got %q", c.FileExtension)
	case strings.HasSuffix(c.FileExtension, filelock.Suffix) || strings.HasSuffix(c.FileExtension, tempSuffix):
		add("file_extension %q must not end in the reserved %q or %q", c.FileExtension, filelock.Suffix, tempSuffix)
	}

	if c.ShardingDepth < 0 {
		add("sharding_depth must not be negative, got %d", c.ShardingDepth)
	}

	if c.DefaultTTL < 0 {
		add("default_ttl must not be negative, got %s", c.DefaultTTL)
	}
	if c.MaxTTL <= 0 {
		add("max_ttl must be positive, got %s", c.MaxTTL)
	} else if c.DefaultTTL > c.MaxTTL {
		add("default_ttl (%s) must not exceed max_ttl (%s)", c.DefaultTTL, c.MaxTTL)
	}

	if c.GCDivisor <= 0 {
		add("gc_divisor must be positive, got %d", c.GCDivisor)
	} else if c.GCProbability < 0 || c.GCProbability > c.GCDivisor {
		add("gc_probability must be between 0 and gc_divisor (%d), got %d", c.GCDivisor, c.GCProbability)
	}

	switch c.Serializer {
	case SerializerNative, SerializerJSON:
	default:
		add("serializer must be one of native, json; got %q", c.Serializer)
	}

	if c.CompressionEnabled {
		if c.CompressionLevel < 1 || c.CompressionLevel > 9 {
			add("compression_level must be between 1 and 9, got %d", c.CompressionLevel)
		}
		if c.CompressionThreshold < 0 {
			add("compression_threshold must not be negative, got %d", c.CompressionThreshold)
		}
		switch c.CompressionAlgorithm {
		case "gzip", "zstd":
		default:
			add("compression_algorithm must be one of gzip, zstd; got %q", c.CompressionAlgorithm)
		}
	}

	if c.LockTimeout < 0 {
		add("lock_timeout must not be negative, got %s", c.LockTimeout)
	}

	if h, err := digest.New(c.KeyHashAlgorithm); err != nil {
		add("key_hash_algorithm must be one of %s; got %q", strings.Join(digest.Supported(), ", "), c.KeyHashAlgorithm)
	} else if c.UseSharding && c.ShardingDepth*2 > h.Width() {
		add("sharding_depth %d needs %d digest characters but %s yields %d", c.ShardingDepth, c.ShardingDepth*2, h.Name(), h.Width())
	}

	if c.MaxCacheSize <= 0 {
		add("max_cache_size must be positive, got %d", c.MaxCacheSize)
	}
	if c.MaxItemSize <= 0 {
		add("max_item_size must be positive, got %d", c.MaxItemSize)
	}

	switch c.ErrorHandling {
	case ErrorHandlingThrow, ErrorHandlingLog, ErrorHandlingIgnore:
	default:
		add("error_handling must be one of throw, log, ignore; got %q", c.ErrorHandling)
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// shardDepth returns the effective number of shard directories.
func (c Config) shardDepth() int {
	if !c.UseSharding {
		return 0
	}
	return c.ShardingDepth
}
