package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// 测试过期判定：零值ExpiresAt表示永不过期
func TestCacheEntry_Expired(t *testing.T) {
	now := time.Now()

	forever := &CacheEntry{Key: "k"}
	assert.False(t, forever.expired(now))
	assert.False(t, forever.expired(now.Add(100*time.Hour)))

	bounded := &CacheEntry{Key: "k", ExpiresAt: now.Add(time.Minute)}
	assert.False(t, bounded.expired(now))
	assert.True(t, bounded.expired(now.Add(2*time.Minute)))
}

// 测试访问簿记
func TestCacheEntry_Touch(t *testing.T) {
	entry := &CacheEntry{Key: "k"}
	now := time.Now()

	entry.touch(now)
	entry.touch(now.Add(time.Second))

	assert.Equal(t, int64(2), entry.AccessCount)
	assert.Equal(t, now.Add(time.Second), entry.AccessedAt)
}

// 测试大小估算的量级
func TestEstimateSize(t *testing.T) {
	assert.Equal(t, int64(0), estimateSize(nil))
	assert.Equal(t, int64(5), estimateSize("hello"))
	assert.Equal(t, int64(3), estimateSize([]byte{1, 2, 3}))
	assert.Equal(t, int64(8), estimateSize(42))
	assert.Equal(t, int64(1), estimateSize(true))

	// 结构化值按JSON长度估算
	size := estimateSize(map[string]int{"a": 1})
	assert.Equal(t, int64(len(`{"a":1}`)), size)

	// 不可序列化的值使用默认估算
	assert.Equal(t, int64(64), estimateSize(make(chan int)))
}
