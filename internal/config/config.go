package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Collector CollectorConfig `mapstructure:"collector"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// TrackerConfig defines tracking daemon settings
type TrackerConfig struct {
	// Endpoint is the collector URL usage logs are flushed to. Empty means
	// flushing is skipped until it is configured.
	Endpoint           string `mapstructure:"endpoint"`
	FlushPeriod        string `mapstructure:"flush_period"`
	MinSessionDuration string `mapstructure:"min_session_duration"`
	RetentionDays      int    `mapstructure:"retention_days"`
	BridgeAddress      string `mapstructure:"bridge_address"`
	MetricsAddress     string `mapstructure:"metrics_address"`
	RequestTimeout     string `mapstructure:"request_timeout"`
}

// CollectorConfig defines the receiving collector settings
type CollectorConfig struct {
	ListenAddress   string `mapstructure:"listen_address"`
	MetricsAddress  string `mapstructure:"metrics_address"`
	LogTTLDays      int    `mapstructure:"log_ttl_days"`
	CleanupInterval string `mapstructure:"cleanup_interval"`
	DedupCacheSize  int    `mapstructure:"dedup_cache_size"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type string `mapstructure:"type"` // "bolt" or "redis"
	Path string `mapstructure:"path"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("WEBTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine (defaults + env apply); a broken one is not.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "bolt", "redis":
	default:
		return fmt.Errorf("invalid storage type %q (must be bolt or redis)", c.Storage.Type)
	}

	if c.Storage.Type == "bolt" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for bolt storage")
	}

	if c.Tracker.RetentionDays < 1 {
		return fmt.Errorf("tracker.retention_days must be at least 1")
	}

	if c.Collector.LogTTLDays < 1 {
		return fmt.Errorf("collector.log_ttl_days must be at least 1")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	// Tracker
	v.SetDefault("tracker.endpoint", "")
	v.SetDefault("tracker.flush_period", "60s")
	v.SetDefault("tracker.min_session_duration", "1s")
	v.SetDefault("tracker.retention_days", 4)
	v.SetDefault("tracker.bridge_address", "127.0.0.1:8394")
	v.SetDefault("tracker.metrics_address", "127.0.0.1:9394")
	v.SetDefault("tracker.request_timeout", "10s")

	// Collector
	v.SetDefault("collector.listen_address", ":8080")
	v.SetDefault("collector.metrics_address", ":9090")
	v.SetDefault("collector.log_ttl_days", 30)
	v.SetDefault("collector.cleanup_interval", "1h")
	v.SetDefault("collector.dedup_cache_size", 4096)

	// Storage
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/webtime/webtime.db")

	// Redis
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
