package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试默认配置通过校验
func TestDefault(t *testing.T) {
	config := Default()
	assert.NoError(t, config.Validate())

	assert.Equal(t, int64(10000), config.Cache.MaxSize)
	assert.Equal(t, "recency", config.Cache.Policy)
	assert.Equal(t, "memory", config.Backend.Type)
	assert.Equal(t, ":8080", config.Server.Addr)
	assert.False(t, config.Metrics.Enabled)
}

// 测试各类非法配置被拒绝
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero max_size", func(c *Config) { c.Cache.MaxSize = 0 }},
		{"negative memory budget", func(c *Config) { c.Cache.MaxMemoryBytes = -1 }},
		{"unknown policy", func(c *Config) { c.Cache.Policy = "random" }},
		{"unknown backend", func(c *Config) { c.Backend.Type = "s3" }},
		{"redis without addr", func(c *Config) { c.Backend.Type = "redis" }},
		{"file without path", func(c *Config) { c.Backend.Type = "file" }},
		{"metrics without url", func(c *Config) { c.Metrics.Enabled = true }},
		{"metrics bad interval", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.URL = "http://localhost:8086"
			c.Metrics.Bucket = "cache"
			c.Metrics.Interval = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.modify(config)
			assert.Error(t, config.Validate())
		})
	}
}

// 测试有效的redis和file后端配置
func TestValidate_BackendVariants(t *testing.T) {
	config := Default()
	config.Backend.Type = "redis"
	config.Backend.Redis.Addr = "localhost:6379"
	assert.NoError(t, config.Validate())

	config = Default()
	config.Backend.Type = "file"
	config.Backend.File.Path = "/var/lib/tiercache/data.json"
	assert.NoError(t, config.Validate())
}

// 测试Load在没有配置文件时回落到默认值
func TestLoad_Defaults(t *testing.T) {
	config, err := Load("nonexistent_config")
	require.NoError(t, err)

	assert.Equal(t, int64(10000), config.Cache.MaxSize)
	assert.Equal(t, "recency", config.Cache.Policy)
	assert.Equal(t, "memory", config.Backend.Type)
}

// 测试环境变量覆盖
func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CACHE_SERVER_CACHE_POLICY", "frequency")
	t.Setenv("CACHE_SERVER_SERVER_ADDR", ":9090")

	config, err := Load("nonexistent_config")
	require.NoError(t, err)

	assert.Equal(t, "frequency", config.Cache.Policy)
	assert.Equal(t, ":9090", config.Server.Addr)
}
