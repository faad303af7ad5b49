package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/mlcomp/mlboard/pkg/search"
	"github.com/mlcomp/mlboard/pkg/tree"
)

const (
	// EnvPrefix is the prefix of environment variable overrides, e.g.
	// MLBOARD_GLOBAL_LOG_LEVEL overrides global.log_level.
	EnvPrefix = "MLBOARD"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultFetchConcurrency is the default number of sources fetched at
	// the same time.
	DefaultFetchConcurrency = 4
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the root configuration for mlboard.
type Config struct {
	Global      GlobalConfig      `yaml:"global" mapstructure:"global"`
	Sources     []SourceConfig    `yaml:"sources" mapstructure:"sources"`
	Loader      LoaderConfig      `yaml:"loader" mapstructure:"loader"`
	Tree        tree.Options      `yaml:"tree" mapstructure:"tree"`
	Search      search.Options    `yaml:"search" mapstructure:"search"`
	API         APIConfig         `yaml:"api" mapstructure:"api"`
	Preferences PreferencesConfig `yaml:"preferences" mapstructure:"preferences"`
	Snapshot    SnapshotConfig    `yaml:"snapshot" mapstructure:"snapshot"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// LoaderConfig controls how the experiment trees are fetched.
type LoaderConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// Load reads one or more configuration files, merging later files over
// earlier ones, then applies environment variable overrides and defaults.
// Without any file the configuration is built from defaults and the
// environment alone.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	for i, path := range paths {
		v.SetConfigFile(path)

		read := v.MergeInConfig
		if i == 0 {
			read = v.ReadInConfig
		}

		if err := read(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvs(v, reflect.TypeOf(Config{}), ""); err != nil {
		return nil, fmt.Errorf("binding environment overrides: %w", err)
	}

	var cfg Config
	if err := decode(v.AllSettings(), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func decode(input map[string]any, out *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}

	return dec.Decode(input)
}

// setDefaults registers the defaults of every fixed key so that partial
// sections and environment overrides are merged over them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)
	v.SetDefault("loader.concurrency", DefaultFetchConcurrency)
	v.SetDefault("tree.strict", false)

	so := search.DefaultOptions()
	v.SetDefault("search.tokenize", so.Tokenize)
	v.SetDefault("search.threshold", so.Threshold)
	v.SetDefault("search.location", so.Location)
	v.SetDefault("search.distance", so.Distance)
	v.SetDefault("search.min_match_char_length", so.MinMatchCharLength)
	v.SetDefault("search.max_pattern_length", so.MaxPatternLength)
	v.SetDefault("search.keys", so.Keys)

	v.SetDefault("api.server.listen", DefaultListen)
	v.SetDefault("api.refresh_interval", time.Duration(0))

	v.SetDefault("preferences.database.driver", DefaultDatabaseDriver)
	v.SetDefault("preferences.database.sqlite.path", DefaultSQLitePath)
}

// bindEnvs registers an environment binding for every scalar leaf of t so
// that overrides are visible even for keys absent from the files. Slices of
// structs and maps are skipped.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)

		tag := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		switch {
		case ft.Kind() == reflect.Struct:
			if err := bindEnvs(v, ft, key); err != nil {
				return err
			}
		case ft.Kind() == reflect.Map:
			continue
		case ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.Struct:
			continue
		default:
			if err := v.BindEnv(key); err != nil {
				return fmt.Errorf("binding %s: %w", key, err)
			}
		}
	}

	return nil
}

// applyDefaults sets default values for list entries, which cannot carry
// registered defaults.
func (c *Config) applyDefaults() {
	for i := range c.Sources {
		c.Sources[i].applyDefaults()
	}

	c.Snapshot.applyDefaults()

	if c.API.Server.RateLimit.Enabled && c.API.Server.RateLimit.RequestsPerMinute == 0 {
		c.API.Server.RateLimit.RequestsPerMinute = DefaultRequestsPerMinute
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Global.LogLevel); err != nil {
		return fmt.Errorf("%w: global.log_level: %w", ErrInvalid, err)
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: at least one source must be configured", ErrInvalid)
	}

	seen := make(map[string]struct{}, len(c.Sources))

	for i := range c.Sources {
		src := &c.Sources[i]
		if err := src.Validate(); err != nil {
			return fmt.Errorf("%w: source %d: %w", ErrInvalid, i, err)
		}

		prefix := NormalizeMountPrefix(src.Name)
		if _, exists := seen[prefix]; exists {
			return fmt.Errorf("%w: source %d: duplicate mount prefix %q", ErrInvalid, i, src.Name)
		}

		seen[prefix] = struct{}{}
	}

	if c.Loader.Concurrency < 1 {
		return fmt.Errorf("%w: loader.concurrency must be at least 1", ErrInvalid)
	}

	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("%w: search: %w", ErrInvalid, err)
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("%w: api: %w", ErrInvalid, err)
	}

	if err := c.Preferences.Database.Validate(); err != nil {
		return fmt.Errorf("%w: preferences.database: %w", ErrInvalid, err)
	}

	if err := c.Snapshot.Validate(); err != nil {
		return fmt.Errorf("%w: snapshot: %w", ErrInvalid, err)
	}

	return nil
}
