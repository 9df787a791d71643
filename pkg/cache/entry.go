// Package cache 提供了两级键值缓存的核心实现：受容量限制的内存缓存
// （支持 TTL、三种淘汰策略和单飞 GetOrSet）以及基于快照的持久化缓存。
package cache

import (
	"encoding/json"
	"time"
)

// CacheEntry 代表缓存中的一个条目。条目由 MemoryCache 独占持有，
// 所有字段的读写都发生在缓存互斥锁之内。
type CacheEntry struct {
	Key         string        // 缓存键
	Value       interface{}   // 缓存的值
	InsertedAt  time.Time     // 插入时间
	ExpiresAt   time.Time     // 过期时间，零值表示永不过期
	AccessedAt  time.Time     // 最后访问时间
	AccessCount int64         // 访问次数（LFU 依据）
	OriginalTTL time.Duration // 写入时指定的 TTL，RefreshTTL 依据
	Size        int64         // 条目估算大小（字节）
}

// expired 判断条目在给定时刻是否已经过期。
func (e *CacheEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(now)
}

// touch 更新访问簿记。
func (e *CacheEntry) touch(now time.Time) {
	e.AccessedAt = now
	e.AccessCount++
}

// estimateSize 估算值的大小。这是一个近似值，只要求与条目的实际
// 内存占用保持单调相关。
func estimateSize(value interface{}) int64 {
	switch v := value.(type) {
	case nil:
		return 0
	case string:
		return int64(len(v))
	case []byte:
		return int64(len(v))
	case bool, int8, uint8:
		return 1
	case int, int64, uint, uint64, float64:
		return 8
	case int32, uint32, float32:
		return 4
	default:
		if data, err := json.Marshal(value); err == nil {
			return int64(len(data))
		}
		return 64 // 无法序列化时的默认估算
	}
}
