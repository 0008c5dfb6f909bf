// Package configfile loads a filecache.Config from configuration files and
// FILECACHE_* environment variables.
package configfile

import (
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/discochess/filecache"
)

// EnvPrefix is the prefix of environment variables that override file values,
// e.g. FILECACHE_CACHE_DIRECTORY.
const EnvPrefix = "FILECACHE"

// Load reads path (YAML, JSON or TOML, chosen by extension) on top of the
// defaults and applies environment overrides. An empty path loads defaults
// and environment only. Unknown keys are ignored.
func Load(path string) (filecache.Config, error) {
	v, err := newViper(path)
	if err != nil {
		return filecache.Config{}, err
	}
	return decode(v)
}

// LoadFromReader is like Load but reads the configuration from r in the
// given format ("yaml", "json" or "toml").
func LoadFromReader(r io.Reader, format string) (filecache.Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return filecache.Config{}, fmt.Errorf("reading config: %w", err)
	}
	return decode(v)
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path == "" {
		return v, nil
	}

	v.SetConfigFile(path)
	v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return v, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// setDefaults registers every Config key so that environment variables
// are honored even when the file omits the key.
func setDefaults(v *viper.Viper) {
	def := reflect.ValueOf(filecache.DefaultConfig())
	typ := def.Type()
	for i := range typ.NumField() {
		key := typ.Field(i).Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		v.SetDefault(key, def.Field(i).Interface())
	}
}

func decode(v *viper.Viper) (filecache.Config, error) {
	cfg := filecache.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return filecache.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return filecache.Config{}, err
	}
	return cfg, nil
}

// Watcher keeps a Config in sync with its file.
// A Watcher is safe for concurrent use by multiple goroutines.
type Watcher struct {
	v      *viper.Viper
	logger *zap.Logger

	mu       sync.RWMutex
	cfg      filecache.Config
	onChange func(filecache.Config)
}

// Watch loads path and reloads it whenever the file changes. onChange, if
// non-nil, is called with every valid new configuration; invalid edits are
// logged and the previous configuration is kept.
func Watch(path string, logger *zap.Logger, onChange func(filecache.Config)) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("configfile: watch needs a config file")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		v:        v,
		logger:   logger.Named("configfile"),
		cfg:      cfg,
		onChange: onChange,
	}
	v.OnConfigChange(w.reload)
	v.WatchConfig()
	return w, nil
}

// Config returns the most recent valid configuration.
func (w *Watcher) Config() filecache.Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

func (w *Watcher) reload(e fsnotify.Event) {
	cfg, err := decode(w.v)
	if err != nil {
		w.logger.Warn("ignoring invalid config change", zap.String("file", e.Name), zap.Error(err))
		return
	}

	w.mu.Lock()
	w.cfg = cfg
	onChange := w.onChange
	w.mu.Unlock()

	w.logger.Info("config reloaded", zap.String("file", e.Name), zap.String("op", e.Op.String()))
	if onChange != nil {
		onChange(cfg)
	}
}
