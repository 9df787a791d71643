package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试类型化读取：命中、未命中、类型不匹配三种结果
func TestTypedGet(t *testing.T) {
	mc := newTestCache(t, MemoryCacheConfig{MaxSize: 100})

	require.NoError(t, mc.Set("name", "alice", 0))
	require.NoError(t, mc.Set("count", 42, 0))

	name, ok, err := Get[string](mc, "name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", name)

	count, ok, err := Get[int](mc, "count")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, count)

	// 未命中不是错误
	_, ok, err = Get[string](mc, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	// 存储的是int，按string读取是调用方的契约违规
	_, ok, err = Get[string](mc, "count")
	assert.False(t, ok)
	assert.Error(t, err)
	assert.True(t, IsCode(err, ErrTypeMismatch))

	// 类型不匹配不会破坏条目本身
	count, ok, err = Get[int](mc, "count")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, count)
}

// 测试Lenient模式：类型不匹配静默按未命中处理
func TestTypedGet_Lenient(t *testing.T) {
	mc := newTestCache(t, MemoryCacheConfig{MaxSize: 100, Lenient: true})

	require.NoError(t, mc.Set("count", 42, 0))

	_, ok, err := Get[string](mc, "count")
	assert.NoError(t, err)
	assert.False(t, ok)
}

// 测试GetOrDefault
func TestTypedGetOrDefault(t *testing.T) {
	mc := newTestCache(t, MemoryCacheConfig{MaxSize: 100})

	require.NoError(t, mc.Set("limit", 10, 0))

	limit, err := GetOrDefault[int](mc, "limit", 99)
	require.NoError(t, err)
	assert.Equal(t, 10, limit)

	limit, err = GetOrDefault[int](mc, "missing", 99)
	require.NoError(t, err)
	assert.Equal(t, 99, limit)

	// 默认值不会被写入缓存
	assert.False(t, mc.Has("missing"))

	// 严格模式下类型不匹配返回默认值和错误
	_, err = GetOrDefault[string](mc, "limit", "fallback")
	assert.True(t, IsCode(err, ErrTypeMismatch))
}

// 测试类型化GetOrSet
func TestTypedGetOrSet(t *testing.T) {
	mc := newTestCache(t, MemoryCacheConfig{MaxSize: 100})
	ctx := context.Background()

	value, err := GetOrSet[int](ctx, mc, "answer", func(ctx context.Context) (int, error) {
		return 42, nil
	}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	// 命中时直接返回，泛型路径仍做类型断言
	value, err = GetOrSet[int](ctx, mc, "answer", func(ctx context.Context) (int, error) {
		t.Error("compute must not run on a hit")
		return 0, nil
	}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	// 键下已有异类型旧值时命中路径报类型错误
	require.NoError(t, mc.Set("label", 7, 0))
	_, err = GetOrSet[string](ctx, mc, "label", func(ctx context.Context) (string, error) {
		return "never", nil
	}, 0)
	assert.True(t, IsCode(err, ErrTypeMismatch))
}

// 测试类型化读取与并发Configure：Lenient配置的读取必须经过缓存锁，
// 与配置改写并发执行时不产生数据竞争
func TestTypedGet_ConcurrentConfigure(t *testing.T) {
	mc := newTestCache(t, MemoryCacheConfig{MaxSize: 100})
	require.NoError(t, mc.Set("count", 42, 0))

	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		lenient := false
		for {
			select {
			case <-done:
				return
			default:
			}
			lenient = !lenient
			if err := mc.Configure(MemoryCacheConfig{MaxSize: 100, Lenient: lenient}); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			// 存储的是int，按string读取：取决于当时的Lenient是
			// 未命中还是类型错误，两者都合法，崩溃和竞争才是缺陷
			_, ok, err := Get[string](mc, "count")
			if ok {
				t.Error("mismatched read must never report a hit")
				return
			}
			if err != nil && !IsCode(err, ErrTypeMismatch) {
				t.Errorf("unexpected error: %v", err)
				return
			}
		}
	}()

	time.Sleep(50 * time.Millisecond)
	close(done)
	wg.Wait()
}

// 测试类型化Pop：不匹配时条目留在原地
func TestTypedPop(t *testing.T) {
	mc := newTestCache(t, MemoryCacheConfig{MaxSize: 100})

	require.NoError(t, mc.Set("token", "abc123", 0))

	_, ok, err := Pop[int](mc, "token")
	assert.False(t, ok)
	assert.True(t, IsCode(err, ErrTypeMismatch))
	assert.True(t, mc.Has("token"), "mismatched Pop leaves the entry in place")

	token, ok, err := Pop[string](mc, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc123", token)
	assert.False(t, mc.Has("token"))

	_, ok, err = Pop[string](mc, "token")
	require.NoError(t, err)
	assert.False(t, ok)
}

// 测试类型化Update
func TestTypedUpdate(t *testing.T) {
	mc := newTestCache(t, MemoryCacheConfig{MaxSize: 100})

	require.NoError(t, mc.Set("hits", 10, time.Minute))

	ok, err := Update[int](mc, "hits", func(current int) int {
		return current + 5
	})
	require.NoError(t, err)
	assert.True(t, ok)

	hits, _, _ := Get[int](mc, "hits")
	assert.Equal(t, 15, hits)

	// TTL 不被更新扰动
	remaining, found := mc.RemainingTTL("hits")
	assert.True(t, found)
	assert.Greater(t, remaining, 50*time.Second)

	ok, err = Update[int](mc, "missing", func(current int) int { return current })
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Update[string](mc, "hits", func(current string) string { return current })
	assert.True(t, IsCode(err, ErrTypeMismatch))
}
