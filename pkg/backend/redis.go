package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"tiercache/pkg/logger"
)

// RedisBackendConfig Redis 后端配置
type RedisBackendConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`             // Redis 服务器地址
	Password  string `yaml:"password" mapstructure:"password"`     // 密码
	DB        int    `yaml:"db" mapstructure:"db"`                 // 数据库编号
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"` // 键前缀，隔离不同实例的数据
}

// RedisBackend 基于 Redis 的后端实现。所有键都带配置的前缀存储，
// Load 和 Clear 只作用于带前缀的键。
type RedisBackend struct {
	client *redis.Client
	prefix string
	log    *logrus.Entry
}

// NewRedisBackend 创建 Redis 后端并验证连接。
func NewRedisBackend(config RedisBackendConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "tiercache:"
	}

	return &RedisBackend{
		client: client,
		prefix: prefix,
		log:    logger.WithComponent("redis_backend"),
	}, nil
}

// Load 扫描全部带前缀的键并批量读出。
func (rb *RedisBackend) Load(ctx context.Context) (map[string][]byte, error) {
	result := make(map[string][]byte)

	iter := rb.client.Scan(ctx, 0, rb.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}

	if len(keys) == 0 {
		return result, nil
	}

	values, err := rb.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	for i, raw := range values {
		if raw == nil {
			continue // 键在扫描和读取之间被删除
		}
		str, ok := raw.(string)
		if !ok {
			rb.log.Warnf("skipping key %s: unexpected value type %T", keys[i], raw)
			continue
		}
		result[keys[i][len(rb.prefix):]] = []byte(str)
	}

	rb.log.Debugf("loaded %d entries from redis", len(result))
	return result, nil
}

// Get 读取单个键。
func (rb *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := rb.client.Get(ctx, rb.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return value, true, nil
}

// Set 写入单个键，不设置过期：TTL 语义由内存层负责。
func (rb *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := rb.client.Set(ctx, rb.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete 删除单个键。
func (rb *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := rb.client.Del(ctx, rb.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Clear 删除所有带前缀的键。
func (rb *RedisBackend) Clear(ctx context.Context) error {
	iter := rb.client.Scan(ctx, 0, rb.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}

	if len(keys) > 0 {
		if err := rb.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis del failed: %w", err)
		}
	}
	return nil
}

// Close 关闭 Redis 连接。
func (rb *RedisBackend) Close() error {
	return rb.client.Close()
}

var _ Backend = (*RedisBackend)(nil)
