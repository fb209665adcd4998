// Package config handles configuration loading for the rastack pipeline.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the pipeline configuration.
type Config struct {
	Fetch   FetchConfig   `yaml:"fetch"`
	Cache   CacheConfig   `yaml:"cache"`
	Merge   MergeConfig   `yaml:"merge"`
	Classes ClassesConfig `yaml:"classes"`
	Render  RenderConfig  `yaml:"render"`
}

// FetchConfig contains granule download settings.
type FetchConfig struct {
	Workers        int `yaml:"workers"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
	Retries        int `yaml:"retries"`
}

// CacheConfig contains granule and frame caching settings.
type CacheConfig struct {
	GranuleSizeMB     int `yaml:"granule_size_mb"`
	GranuleTTLMinutes int `yaml:"granule_ttl_minutes"`
	FrameEntries      int `yaml:"frame_entries"`
}

// MergeConfig controls how overlapping tiles are resolved.
type MergeConfig struct {
	Strategy string `yaml:"strategy"` // "last_wins" or "prefer_valid"
}

// ClassesConfig describes the categorical class table of the product.
type ClassesConfig struct {
	Codes           []int64 `yaml:"codes"`
	MissingCode     int64   `yaml:"missing_code"`
	TransparentCode int64   `yaml:"transparent_code"`
	CollapseMissing bool    `yaml:"collapse_missing"`
	Permissive      bool    `yaml:"permissive"`
}

// RenderConfig contains preview rendering settings.
type RenderConfig struct {
	Scale    int    `yaml:"scale"`
	Colormap string `yaml:"colormap"`
	Legend   bool   `yaml:"legend"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration, tuned for the
// DSWx-HLS surface water product.
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			Workers:        4,
			TimeoutSeconds: 60,
			Retries:        2,
		},
		Cache: CacheConfig{
			GranuleSizeMB:     512,
			GranuleTTLMinutes: 30,
			FrameEntries:      64,
		},
		Merge: MergeConfig{
			Strategy: "last_wins",
		},
		Classes: ClassesConfig{
			Codes:           []int64{0, 1, 2, 252, 253, 254, 255},
			MissingCode:     255,
			TransparentCode: 0,
			CollapseMissing: true,
		},
		Render: RenderConfig{
			Scale:    1,
			Colormap: "surface_water",
			Legend:   true,
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Fetch.Workers == 0 {
		cfg.Fetch.Workers = defaults.Fetch.Workers
	}
	if cfg.Fetch.TimeoutSeconds == 0 {
		cfg.Fetch.TimeoutSeconds = defaults.Fetch.TimeoutSeconds
	}
	if cfg.Fetch.Retries == 0 {
		cfg.Fetch.Retries = defaults.Fetch.Retries
	}
	if cfg.Cache.GranuleSizeMB == 0 {
		cfg.Cache.GranuleSizeMB = defaults.Cache.GranuleSizeMB
	}
	if cfg.Cache.GranuleTTLMinutes == 0 {
		cfg.Cache.GranuleTTLMinutes = defaults.Cache.GranuleTTLMinutes
	}
	if cfg.Cache.FrameEntries == 0 {
		cfg.Cache.FrameEntries = defaults.Cache.FrameEntries
	}
	if cfg.Merge.Strategy == "" {
		cfg.Merge.Strategy = defaults.Merge.Strategy
	}
	if len(cfg.Classes.Codes) == 0 {
		cfg.Classes = defaults.Classes
	}
	if cfg.Render.Scale == 0 {
		cfg.Render.Scale = defaults.Render.Scale
	}
	if cfg.Render.Colormap == "" {
		cfg.Render.Colormap = defaults.Render.Colormap
	}
}
