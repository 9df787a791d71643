// Package config 提供缓存服务的配置结构、默认值、校验和基于 viper 的加载。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 主配置结构
type Config struct {
	// 内存缓存配置
	Cache CacheConfig `mapstructure:"cache"`

	// 持久化后端配置
	Backend BackendConfig `mapstructure:"backend"`

	// HTTP 服务配置
	Server ServerConfig `mapstructure:"server"`

	// 指标上报配置
	Metrics MetricsConfig `mapstructure:"metrics"`

	// 维护任务配置
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`

	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
}

// CacheConfig 内存缓存配置
type CacheConfig struct {
	MaxSize         int64         `mapstructure:"max_size"`         // 最大条目数
	MaxMemoryBytes  int64         `mapstructure:"max_memory_bytes"` // 内存软上限（字节）
	Policy          string        `mapstructure:"policy"`           // recency, frequency, insertion
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`      // 默认TTL
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"` // 后台清理间隔
	Lenient         bool          `mapstructure:"lenient"`          // 类型不匹配时按未命中处理
}

// BackendConfig 持久化后端配置
type BackendConfig struct {
	Type           string `mapstructure:"type"`            // redis, file, memory
	BreakerEnabled bool   `mapstructure:"breaker_enabled"` // 是否启用熔断装饰

	Redis struct {
		Addr      string `mapstructure:"addr"`
		Password  string `mapstructure:"password"`
		DB        int    `mapstructure:"db"`
		KeyPrefix string `mapstructure:"key_prefix"`
	} `mapstructure:"redis"`

	File struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"file"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr string `mapstructure:"addr"` // 监听地址
	Mode string `mapstructure:"mode"` // gin 模式 (debug, release, test)
}

// MetricsConfig 指标上报配置
type MetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	Token    string        `mapstructure:"token"`
	Org      string        `mapstructure:"org"`
	Bucket   string        `mapstructure:"bucket"`
	Interval time.Duration `mapstructure:"interval"`
}

// MaintenanceConfig 维护任务配置
type MaintenanceConfig struct {
	SweepSchedule  string `mapstructure:"sweep_schedule"`  // 过期清扫的 cron 表达式，空表示禁用
	ReloadSchedule string `mapstructure:"reload_schedule"` // 快照重载的 cron 表达式，空表示禁用
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			MaxSize:         10000,
			MaxMemoryBytes:  0,
			Policy:          "recency",
			DefaultTTL:      0,
			CleanupInterval: 1 * time.Minute,
		},
		Backend: BackendConfig{
			Type: "memory",
		},
		Server: ServerConfig{
			Addr: ":8080",
			Mode: "release",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Interval: 30 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Cache.MaxSize <= 0 {
		return errors.New("cache max_size must be positive")
	}

	if c.Cache.MaxMemoryBytes < 0 {
		return errors.New("cache max_memory_bytes cannot be negative")
	}

	switch c.Cache.Policy {
	case "recency", "frequency", "insertion":
	default:
		return fmt.Errorf("unknown eviction policy: %s", c.Cache.Policy)
	}

	switch c.Backend.Type {
	case "redis":
		if c.Backend.Redis.Addr == "" {
			return errors.New("redis backend requires an address")
		}
	case "file":
		if c.Backend.File.Path == "" {
			return errors.New("file backend requires a path")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown backend type: %s", c.Backend.Type)
	}

	if c.Metrics.Enabled {
		if c.Metrics.URL == "" || c.Metrics.Bucket == "" {
			return errors.New("metrics requires url and bucket")
		}
		if c.Metrics.Interval <= 0 {
			return errors.New("metrics interval must be positive")
		}
	}

	return nil
}

// Load 从配置文件和环境变量加载配置。文件不存在时回落到默认值，
// 环境变量以 CACHE_SERVER_ 为前缀覆盖文件内容。
func Load(configName string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// Set defaults
	defaults := Default()
	v.SetDefault("cache.max_size", defaults.Cache.MaxSize)
	v.SetDefault("cache.max_memory_bytes", defaults.Cache.MaxMemoryBytes)
	v.SetDefault("cache.policy", defaults.Cache.Policy)
	v.SetDefault("cache.default_ttl", defaults.Cache.DefaultTTL)
	v.SetDefault("cache.cleanup_interval", defaults.Cache.CleanupInterval)
	v.SetDefault("backend.type", defaults.Backend.Type)
	v.SetDefault("backend.redis.addr", "localhost:6379")
	v.SetDefault("backend.redis.db", 0)
	v.SetDefault("backend.redis.key_prefix", "tiercache:")
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.mode", defaults.Server.Mode)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.interval", defaults.Metrics.Interval)
	v.SetDefault("logger.level", defaults.Logger.Level)
	v.SetDefault("logger.format", defaults.Logger.Format)

	// Environment variable overrides
	v.SetEnvPrefix("CACHE_SERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
