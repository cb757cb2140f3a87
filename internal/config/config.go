// Package config loads pool and crawl orchestrator tuning knobs via
// Viper, the config loader the rest of the retrieval pack reaches for.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every tunable a pool/orchestrator deployment needs,
// loaded from file and/or environment.
type Config struct {
	Pool    PoolConfig    `mapstructure:"pool"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Logging LoggingConfig `mapstructure:"logging"`
	HTTP    HTTPConfig    `mapstructure:"http"`
}

// PoolConfig sizes a core.Pool.
type PoolConfig struct {
	Workers       int `mapstructure:"workers"`
	QueueCapacity int `mapstructure:"queue_capacity"`
}

// CrawlerConfig sizes the crawl.Orchestrator's own pool and carries a
// per-page deadline for core.Run (see PageTimeout). crawl.Orchestrator
// itself does not apply a per-page deadline.
type CrawlerConfig struct {
	Workers            int `mapstructure:"workers"`
	QueueCapacity      int `mapstructure:"queue_capacity"`
	PageTimeoutSeconds int `mapstructure:"page_timeout_seconds"`
}

// LoggingConfig toggles the zap development encoder.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// HTTPConfig configures the optional read-only status server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from an optional file at path plus environment
// overrides under the CANCELWORK_ prefix (e.g. CANCELWORK_POOL_WORKERS).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CANCELWORK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pool.workers", 4)
	v.SetDefault("pool.queue_capacity", 64)
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.queue_capacity", 256)
	v.SetDefault("crawler.page_timeout_seconds", 30)
	v.SetDefault("logging.development", true)
	v.SetDefault("http.addr", ":8080")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Pool.Workers <= 0 {
		return fmt.Errorf("pool.workers must be > 0")
	}
	if c.Pool.QueueCapacity <= 0 {
		return fmt.Errorf("pool.queue_capacity must be > 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.QueueCapacity <= 0 {
		return fmt.Errorf("crawler.queue_capacity must be > 0")
	}
	if c.Crawler.PageTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.page_timeout_seconds must be > 0")
	}
	return nil
}

// PageTimeout converts PageTimeoutSeconds into a time.Duration for
// core.Run's deadline parameter.
func (c Config) PageTimeout() time.Duration {
	return time.Duration(c.Crawler.PageTimeoutSeconds) * time.Second
}
