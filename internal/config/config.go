// Package config loads collector configuration from defaults, an
// optional YAML file, and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/latamaq/latamaq/internal/collector"
)

// Config holds all collector configuration.
type Config struct {
	WAQI       WAQIConfig       `mapstructure:"waqi"`
	Collector  CollectorConfig  `mapstructure:"collector"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Ops        OpsConfig        `mapstructure:"ops"`
}

type WAQIConfig struct {
	// Token is the access token for the air quality feed. Required; the
	// process refuses to start without it.
	Token          string `mapstructure:"token"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type CollectorConfig struct {
	Countries         []string `mapstructure:"countries"`
	FetchDelaySeconds int      `mapstructure:"fetch_delay_seconds"`
	OutputDir         string   `mapstructure:"output_dir"`
	FilePrefix        string   `mapstructure:"file_prefix"`
	PreviewRows       int      `mapstructure:"preview_rows"`
}

type EnrichmentConfig struct {
	Population         bool    `mapstructure:"population"`
	Industry           bool    `mapstructure:"industry"`
	PopulationRadiusKm float64 `mapstructure:"population_radius_km"`
	IndustryRadiusKm   float64 `mapstructure:"industry_radius_km"`
}

type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type OpsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// FetchDelay returns the per-fetch pause as a duration.
func (c CollectorConfig) FetchDelay() time.Duration {
	return time.Duration(c.FetchDelaySeconds) * time.Second
}

// Timeout returns the WAQI request timeout as a duration.
func (w WAQIConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	defaults := collector.DefaultConfig()
	v.SetDefault("waqi.base_url", "")
	v.SetDefault("waqi.timeout_seconds", 10)
	v.SetDefault("collector.countries", defaults.Countries)
	v.SetDefault("collector.fetch_delay_seconds", 1)
	v.SetDefault("collector.output_dir", defaults.OutputDir)
	v.SetDefault("collector.file_prefix", defaults.FilePrefix)
	v.SetDefault("collector.preview_rows", defaults.PreviewRows)
	v.SetDefault("enrichment.population", false)
	v.SetDefault("enrichment.industry", false)
	v.SetDefault("enrichment.population_radius_km", 5)
	v.SetDefault("enrichment.industry_radius_km", 50)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "waqi_cache.json")
	v.SetDefault("ops.enabled", true)
	v.SetDefault("ops.port", 8080)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: LATAMAQ_COLLECTOR_OUTPUT_DIR → collector.output_dir
	v.SetEnvPrefix("LATAMAQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The token keeps its historical unprefixed name alongside the
	// standard one.
	_ = v.BindEnv("waqi.token", "LATAMAQ_WAQI_TOKEN", "WAQI_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.WAQI.Token == "" {
		errs = append(errs, "waqi.token is required (set WAQI_TOKEN)")
	}
	if c.WAQI.TimeoutSeconds <= 0 {
		errs = append(errs, "waqi.timeout_seconds must be positive")
	}
	if len(c.Collector.Countries) == 0 {
		errs = append(errs, "collector.countries must not be empty")
	}
	if c.Collector.FetchDelaySeconds <= 0 {
		errs = append(errs, "collector.fetch_delay_seconds must be positive")
	}
	if c.Collector.OutputDir == "" {
		errs = append(errs, "collector.output_dir is required")
	}
	if c.Enrichment.PopulationRadiusKm <= 0 {
		errs = append(errs, "enrichment.population_radius_km must be positive")
	}
	if c.Enrichment.IndustryRadiusKm <= 0 {
		errs = append(errs, "enrichment.industry_radius_km must be positive")
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		errs = append(errs, "cache.path is required when cache.enabled")
	}
	if c.Ops.Enabled && (c.Ops.Port <= 0 || c.Ops.Port > 65535) {
		errs = append(errs, fmt.Sprintf("ops.port must be 1-65535, got %d", c.Ops.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
