package configfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/discochess/filecache"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "filecache.yaml", `
cache_directory: /var/cache/app
namespace: app
default_ttl: 90s
max_ttl: 2h
file_permissions: 0o600
compression_enabled: true
compression_algorithm: zstd
key_hash_algorithm: xxh64
unknown_option: ignored
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CacheDirectory != "/var/cache/app" {
		t.Errorf("CacheDirectory = %q, want /var/cache/app", cfg.CacheDirectory)
	}
	if cfg.Namespace != "app" {
		t.Errorf("Namespace = %q, want app", cfg.Namespace)
	}
	if cfg.DefaultTTL != 90*time.Second {
		t.Errorf("DefaultTTL = %v, want 90s", cfg.DefaultTTL)
	}
	if cfg.MaxTTL != 2*time.Hour {
		t.Errorf("MaxTTL = %v, want 2h", cfg.MaxTTL)
	}
	if cfg.FilePermissions != 0o600 {
		t.Errorf("FilePermissions = %#o, want 0600", uint32(cfg.FilePermissions))
	}
	if !cfg.CompressionEnabled || cfg.CompressionAlgorithm != "zstd" {
		t.Errorf("compression = %v/%s, want true/zstd", cfg.CompressionEnabled, cfg.CompressionAlgorithm)
	}

	// Keys absent from the file keep their defaults.
	def := filecache.DefaultConfig()
	if cfg.GCDivisor != def.GCDivisor || cfg.FileExtension != def.FileExtension {
		t.Errorf("defaults not applied: divisor %d extension %q", cfg.GCDivisor, cfg.FileExtension)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "filecache.json", `{"cache_directory": "/tmp/x", "use_sharding": false}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UseSharding {
		t.Error("UseSharding = true, want false")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeFile(t, "filecache.yaml", "namespace: from-file\n")
	t.Setenv("FILECACHE_NAMESPACE", "from-env")
	t.Setenv("FILECACHE_LOCK_TIMEOUT", "250ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Namespace != "from-env" {
		t.Errorf("Namespace = %q, want from-env", cfg.Namespace)
	}
	if cfg.LockTimeout != 250*time.Millisecond {
		t.Errorf("LockTimeout = %v, want 250ms", cfg.LockTimeout)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("FILECACHE_ERROR_HANDLING", "throw")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ErrorHandling != filecache.ErrorHandlingThrow {
		t.Errorf("ErrorHandling = %q, want throw", cfg.ErrorHandling)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := writeFile(t, "filecache.yaml", "gc_divisor: 0\n")

	_, err := Load(path)
	if !errors.Is(err, filecache.ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
}

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("sharding_depth = 3\n"), "toml")
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if cfg.ShardingDepth != 3 {
		t.Errorf("ShardingDepth = %d, want 3", cfg.ShardingDepth)
	}
}

func TestWatch(t *testing.T) {
	path := writeFile(t, "filecache.yaml", "namespace: one\n")

	changed := make(chan filecache.Config, 4)
	w, err := Watch(path, nil, func(cfg filecache.Config) {
		changed <- cfg
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if got := w.Config().Namespace; got != "one" {
		t.Fatalf("Config().Namespace = %q, want one", got)
	}

	if err := os.WriteFile(path, []byte("namespace: two\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changed:
			if cfg.Namespace == "two" {
				if got := w.Config().Namespace; got != "two" {
					t.Errorf("Config().Namespace = %q, want two", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatch_RequiresFile(t *testing.T) {
	if _, err := Watch("", nil, nil); err == nil {
		t.Error("Watch(\"\") error = nil, want error")
	}
}
