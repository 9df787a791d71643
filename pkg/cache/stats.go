package cache

import (
	"sync/atomic"
	"time"
)

// CacheStats 包含了缓存的详细统计信息。
type CacheStats struct {
	Size           int64     `json:"size"`             // 当前缓存中的条目数
	MaxSize        int64     `json:"max_size"`         // 缓存最大容量
	HitCount       int64     `json:"hit_count"`        // 命中次数
	MissCount      int64     `json:"miss_count"`       // 未命中次数
	HitRate        float64   `json:"hit_rate"`         // 命中率 (HitCount / (HitCount + MissCount))
	EvictionCount  int64     `json:"eviction_count"`   // 因容量淘汰的条目数
	ExpiredCount   int64     `json:"expired_count"`    // 因过期移除的条目数
	EstimatedBytes int64     `json:"estimated_bytes"`  // 估算的内存占用（字节）
	MaxMemoryBytes int64     `json:"max_memory_bytes"` // 配置的内存软上限
	LastCleanup    time.Time `json:"last_cleanup"`     // 最后一次执行清理操作的时间
}

// statsRecorder 线程安全的统计计数器，供 MemoryCache 使用。
// 计数器用原子操作维护，使 Stats 读取不必竞争缓存主锁。
type statsRecorder struct {
	hitCount      int64
	missCount     int64
	evictionCount int64
	expiredCount  int64
}

func (sr *statsRecorder) hit()      { atomic.AddInt64(&sr.hitCount, 1) }
func (sr *statsRecorder) miss()     { atomic.AddInt64(&sr.missCount, 1) }
func (sr *statsRecorder) eviction() { atomic.AddInt64(&sr.evictionCount, 1) }

func (sr *statsRecorder) expirations(n int64) { atomic.AddInt64(&sr.expiredCount, n) }

// reset 清零所有计数器。缓存条目本身不受影响。
func (sr *statsRecorder) reset() {
	atomic.StoreInt64(&sr.hitCount, 0)
	atomic.StoreInt64(&sr.missCount, 0)
	atomic.StoreInt64(&sr.evictionCount, 0)
	atomic.StoreInt64(&sr.expiredCount, 0)
}

// snapshot 读取当前计数并计算命中率。
func (sr *statsRecorder) snapshot() CacheStats {
	hits := atomic.LoadInt64(&sr.hitCount)
	misses := atomic.LoadInt64(&sr.missCount)

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		HitCount:      hits,
		MissCount:     misses,
		HitRate:       hitRate,
		EvictionCount: atomic.LoadInt64(&sr.evictionCount),
		ExpiredCount:  atomic.LoadInt64(&sr.expiredCount),
	}
}
