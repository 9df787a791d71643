package cache

import (
	"context"
	"time"
)

// 本文件提供内存缓存的类型化访问入口。缓存内部以 interface{} 存储，
// 类型检查发生在读取边界：存储类型与请求类型不一致默认以
// TYPE_MISMATCH 失败（调用方的契约违规，不应被掩盖为未命中），
// 配置 Lenient 后退化为按未命中处理。

// assertType 对取出的原始值做类型断言。在缓存锁外运行，Lenient
// 配置通过加锁的访问器读取。
func assertType[T any](mc *MemoryCache, key string, raw interface{}) (T, bool, error) {
	var zero T
	value, ok := raw.(T)
	if !ok {
		if mc.lenient() {
			return zero, false, nil
		}
		return zero, false, NewCacheError(ErrTypeMismatch, "stored value type mismatch").WithContext("key", key)
	}
	return value, true, nil
}

// Get 类型化读取。返回值依次为：值、是否命中、类型错误。
// 键不存在或已过期时返回 (零值, false, nil)。
func Get[T any](mc *MemoryCache, key string) (T, bool, error) {
	raw, ok := mc.Get(key)
	if !ok {
		var zero T
		return zero, false, nil
	}
	return assertType[T](mc, key, raw)
}

// GetOrDefault 类型化读取，未命中时返回给定默认值而不缓存它。
func GetOrDefault[T any](mc *MemoryCache, key string, def T) (T, error) {
	value, ok, err := Get[T](mc, key)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	return value, nil
}

// GetOrSet 类型化的单飞取值或计算，语义同 MemoryCache.GetOrSet。
func GetOrSet[T any](ctx context.Context, mc *MemoryCache, key string, compute func(ctx context.Context) (T, error), ttl time.Duration) (T, error) {
	raw, err := mc.GetOrSet(ctx, key, func(ctx context.Context) (interface{}, error) {
		return compute(ctx)
	}, ttl)
	if err != nil {
		var zero T
		return zero, err
	}

	value, ok, err := assertType[T](mc, key, raw)
	if err != nil {
		return value, err
	}
	if !ok {
		// Lenient 模式下命中了异类型的旧值
		var zero T
		return zero, nil
	}
	return value, nil
}

// Pop 类型化的移除并返回。类型不匹配时条目不会被移除。
func Pop[T any](mc *MemoryCache, key string) (T, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	var zero T
	entry, exists := mc.entries[key]
	if !exists {
		return zero, false, nil
	}
	if entry.expired(time.Now()) {
		mc.removeEntryLocked(key)
		mc.stats.expirations(1)
		return zero, false, nil
	}

	value, ok := entry.Value.(T)
	if !ok {
		if mc.config.Lenient {
			return zero, false, nil
		}
		return zero, false, NewCacheError(ErrTypeMismatch, "stored value type mismatch").WithContext("key", key)
	}

	mc.removeEntryLocked(key)
	return value, true, nil
}

// Update 类型化的原地更新，保留 TTL 和访问元数据。
// 返回键是否被找到并更新。
func Update[T any](mc *MemoryCache, key string, updater func(T) T) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, exists := mc.entries[key]
	if !exists {
		return false, nil
	}
	if entry.expired(time.Now()) {
		mc.removeEntryLocked(key)
		mc.stats.expirations(1)
		return false, nil
	}

	current, ok := entry.Value.(T)
	if !ok {
		if mc.config.Lenient {
			return false, nil
		}
		return false, NewCacheError(ErrTypeMismatch, "stored value type mismatch").WithContext("key", key)
	}

	entry.Value = updater(current)
	newSize := estimateSize(entry.Value)
	mc.memoryBytes += newSize - entry.Size
	entry.Size = newSize
	return true, nil
}
