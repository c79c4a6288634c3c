// Copyright 2025 James Ross
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Redis struct {
	Addr               string        `mapstructure:"addr"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	DB                 int           `mapstructure:"db"`
	PoolSizeMultiplier int           `mapstructure:"pool_size_multiplier"`
	MinIdleConns       int           `mapstructure:"min_idle_conns"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
}

type Endpoint struct {
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// Cache holds the queue-state-machine tuning knobs from spec.md §6.
type Cache struct {
	Endpoint        Endpoint      `mapstructure:"endpoint"`
	BatchSize       int           `mapstructure:"batch_size"`
	UploadSplay     int           `mapstructure:"upload_splay"`
	MaxRetry        int           `mapstructure:"max_retry"`
	RetryQueueLimit int           `mapstructure:"retry_queue_limit"`
	FailTTL         time.Duration `mapstructure:"fail_ttl"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
}

type Enqueuer struct {
	ScanDir         string   `mapstructure:"scan_dir"`
	IncludeGlobs    []string `mapstructure:"include_globs"`
	ExcludeGlobs    []string `mapstructure:"exclude_globs"`
	RateLimitPerSec int      `mapstructure:"rate_limit_per_sec"`
	RateLimitKey    string   `mapstructure:"rate_limit_key"`
}

type Driver struct {
	PendingSchedule  string `mapstructure:"pending_schedule"`
	RetryingSchedule string `mapstructure:"retrying_schedule"`
	FailingSchedule  string `mapstructure:"failing_schedule"`
}

type Admin struct {
	Addr string `mapstructure:"addr"`
}

type Observability struct {
	MetricsPort int    `mapstructure:"metrics_port"`
	LogLevel    string `mapstructure:"log_level"`
}

type Config struct {
	Redis         Redis         `mapstructure:"redis"`
	Cache         Cache         `mapstructure:"cache"`
	Enqueuer      Enqueuer      `mapstructure:"enqueuer"`
	Driver        Driver        `mapstructure:"driver"`
	Admin         Admin         `mapstructure:"admin"`
	Observability Observability `mapstructure:"observability"`
}

func defaultConfig() *Config {
	return &Config{
		Redis: Redis{
			Addr:               "localhost:6379",
			PoolSizeMultiplier: 10,
			MinIdleConns:       5,
			DialTimeout:        5 * time.Second,
			ReadTimeout:        3 * time.Second,
			WriteTimeout:       3 * time.Second,
			MaxRetries:         3,
		},
		Cache: Cache{
			BatchSize:       100,
			UploadSplay:     10,
			MaxRetry:        10,
			RetryQueueLimit: 10,
			FailTTL:         7 * 24 * time.Hour,
			HTTPTimeout:     30 * time.Second,
		},
		Enqueuer: Enqueuer{
			ScanDir:         "./data",
			IncludeGlobs:    []string{"**/*"},
			ExcludeGlobs:    []string{"**/*.tmp"},
			RateLimitPerSec: 100,
			RateLimitKey:    "cloudcache:rate_limit:enqueuer",
		},
		Driver: Driver{
			PendingSchedule:  "@every 10s",
			RetryingSchedule: "@every 30s",
			FailingSchedule:  "@every 5m",
		},
		Admin: Admin{
			Addr: ":8080",
		},
		Observability: Observability{
			MetricsPort: 9090,
			LogLevel:    "info",
		},
	}
}

// Load reads configuration from a YAML file plus env overrides, with
// defaults applied for every option left unset (spec.md §6 is all
// optional except endpoint.url / endpoint.auth_token).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("redis.addr", def.Redis.Addr)
	v.SetDefault("redis.pool_size_multiplier", def.Redis.PoolSizeMultiplier)
	v.SetDefault("redis.min_idle_conns", def.Redis.MinIdleConns)
	v.SetDefault("redis.dial_timeout", def.Redis.DialTimeout)
	v.SetDefault("redis.read_timeout", def.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", def.Redis.WriteTimeout)
	v.SetDefault("redis.max_retries", def.Redis.MaxRetries)

	v.SetDefault("cache.batch_size", def.Cache.BatchSize)
	v.SetDefault("cache.upload_splay", def.Cache.UploadSplay)
	v.SetDefault("cache.max_retry", def.Cache.MaxRetry)
	v.SetDefault("cache.retry_queue_limit", def.Cache.RetryQueueLimit)
	v.SetDefault("cache.fail_ttl", def.Cache.FailTTL)
	v.SetDefault("cache.http_timeout", def.Cache.HTTPTimeout)

	v.SetDefault("enqueuer.scan_dir", def.Enqueuer.ScanDir)
	v.SetDefault("enqueuer.include_globs", def.Enqueuer.IncludeGlobs)
	v.SetDefault("enqueuer.exclude_globs", def.Enqueuer.ExcludeGlobs)
	v.SetDefault("enqueuer.rate_limit_per_sec", def.Enqueuer.RateLimitPerSec)
	v.SetDefault("enqueuer.rate_limit_key", def.Enqueuer.RateLimitKey)

	v.SetDefault("driver.pending_schedule", def.Driver.PendingSchedule)
	v.SetDefault("driver.retrying_schedule", def.Driver.RetryingSchedule)
	v.SetDefault("driver.failing_schedule", def.Driver.FailingSchedule)

	v.SetDefault("admin.addr", def.Admin.Addr)

	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks config constraints and returns an error on invalid settings.
func Validate(cfg *Config) error {
	if cfg.Cache.Endpoint.URL == "" {
		return fmt.Errorf("cache.endpoint.url is required")
	}
	if cfg.Cache.Endpoint.AuthToken == "" {
		return fmt.Errorf("cache.endpoint.auth_token is required")
	}
	if cfg.Cache.BatchSize < 1 {
		return fmt.Errorf("cache.batch_size must be >= 1")
	}
	if cfg.Cache.UploadSplay < 0 {
		return fmt.Errorf("cache.upload_splay must be >= 0")
	}
	if cfg.Cache.MaxRetry < 1 {
		return fmt.Errorf("cache.max_retry must be >= 1")
	}
	if cfg.Cache.RetryQueueLimit < 1 {
		return fmt.Errorf("cache.retry_queue_limit must be >= 1")
	}
	if cfg.Cache.FailTTL <= 0 {
		return fmt.Errorf("cache.fail_ttl must be > 0")
	}
	if cfg.Enqueuer.RateLimitPerSec < 0 {
		return fmt.Errorf("enqueuer.rate_limit_per_sec must be >= 0")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("observability.metrics_port must be 1..65535")
	}
	return nil
}
