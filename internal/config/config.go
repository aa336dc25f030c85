// Package config loads application configuration from config.yaml and
// LEADGEN_-prefixed environment variables, and initializes the global
// logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/geoleads/leadgen-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Google  GoogleConfig  `yaml:"google" mapstructure:"google"`
	Hunter  HunterConfig  `yaml:"hunter" mapstructure:"hunter"`
	Snov    SnovConfig    `yaml:"snov" mapstructure:"snov"`
	Scraper ScraperConfig `yaml:"scraper" mapstructure:"scraper"`
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key                string `yaml:"key" mapstructure:"key"`
	BaseURL            string `yaml:"base_url" mapstructure:"base_url"`
	PageTokenDelaySecs int    `yaml:"page_token_delay_secs" mapstructure:"page_token_delay_secs"`
}

// HunterConfig holds Hunter.io API settings.
type HunterConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SnovConfig holds Snov.io OAuth client credentials.
type SnovConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
}

// ScraperConfig holds the deployed website scraper function settings.
type ScraperConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AuthToken string `yaml:"auth_token" mapstructure:"auth_token"`
}

// SearchConfig tunes the spatial search engine.
type SearchConfig struct {
	RatePerSec      float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	CategoryMapping string  `yaml:"category_mapping" mapstructure:"category_mapping"`
	DefaultRadius   int     `yaml:"default_radius" mapstructure:"default_radius"`
	DefaultCurrency string  `yaml:"default_currency" mapstructure:"default_currency"`
}

// EnrichConfig tunes the enrichment waterfall and orchestrator.
type EnrichConfig struct {
	VerifiedThreshold int `yaml:"verified_threshold" mapstructure:"verified_threshold"`
	ProviderDelaySecs int `yaml:"provider_delay_secs" mapstructure:"provider_delay_secs"`
	LeadDelaySecs     int `yaml:"lead_delay_secs" mapstructure:"lead_delay_secs"`
	ChunkSize         int `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads config.yaml from the working directory, applies defaults,
// and overlays LEADGEN_-prefixed environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("google.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("google.page_token_delay_secs", 2)
	v.SetDefault("hunter.base_url", "https://api.hunter.io/v2")
	v.SetDefault("snov.base_url", "https://api.snov.io")
	v.SetDefault("search.rate_per_sec", 2.0)
	v.SetDefault("search.default_radius", 5000)
	v.SetDefault("search.default_currency", "USD")
	v.SetDefault("enrich.verified_threshold", 82)
	v.SetDefault("enrich.provider_delay_secs", 1)
	v.SetDefault("enrich.lead_delay_secs", 1)
	v.SetDefault("enrich.chunk_size", 1)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
