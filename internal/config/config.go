// Package config loads application configuration from config.yaml and
// FORMFILL_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Answerer AnswererConfig `yaml:"answerer" mapstructure:"answerer"`
	Context  ContextConfig  `yaml:"context" mapstructure:"context"`
	Workers  WorkersConfig  `yaml:"workers" mapstructure:"workers"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// AnswererConfig configures the answer service client and retrieval toggles.
type AnswererConfig struct {
	BaseURL                string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey                 string  `yaml:"api_key" mapstructure:"api_key"`
	TopK                   int     `yaml:"top_k" mapstructure:"top_k"`
	TimeoutSecs            int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitPerSec        float64 `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	MaxRetries             int     `yaml:"max_retries" mapstructure:"max_retries"`
	EnableQueryEnhancement bool    `yaml:"enable_query_enhancement" mapstructure:"enable_query_enhancement"`
	EnableDistanceFilter   bool    `yaml:"enable_distance_filter" mapstructure:"enable_distance_filter"`
	EnableReranking        bool    `yaml:"enable_reranking" mapstructure:"enable_reranking"`
}

// Timeout returns the per-call timeout as a duration.
func (c AnswererConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ContextConfig controls cross-question context injection.
type ContextConfig struct {
	Enabled   bool `yaml:"enabled" mapstructure:"enabled"`
	MaxTokens int  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// WorkersConfig holds concurrency settings recorded with each run.
type WorkersConfig struct {
	Max int `yaml:"max" mapstructure:"max"`
}

// StoreConfig selects the run store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DSN returns the connection string appropriate for the configured driver.
func (s StoreConfig) DSN() string {
	if s.Driver == "postgres" {
		return s.DatabaseURL
	}
	return s.Path
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FORMFILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys without a natural default still get an empty one so
	// AutomaticEnv can bind them.
	v.SetDefault("answerer.base_url", "")
	v.SetDefault("answerer.api_key", "")
	v.SetDefault("answerer.rate_limit_per_sec", 0.0)
	v.SetDefault("answerer.top_k", 5)
	v.SetDefault("answerer.timeout_secs", 60)
	v.SetDefault("answerer.max_retries", 3)
	v.SetDefault("answerer.enable_query_enhancement", true)
	v.SetDefault("answerer.enable_distance_filter", true)
	v.SetDefault("answerer.enable_reranking", true)
	v.SetDefault("context.enabled", true)
	v.SetDefault("context.max_tokens", 0)
	v.SetDefault("workers.max", 1)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "formfill.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Answerer.BaseURL == "" {
		return eris.New("config: answerer.base_url is required")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for the postgres driver")
	}
	return nil
}

// InitLogger builds the global zap logger from the log settings.
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
