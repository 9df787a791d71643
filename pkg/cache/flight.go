package cache

import (
	"context"
	"time"
)

// flightCall 代表一次正在进行的计算。done 关闭后 val/err 不再变化，
// 等待者只读。
type flightCall struct {
	done chan struct{}
	val  interface{}
	err  error
}

// GetOrSet 原子的取值或计算。存在未过期条目时直接返回（计一次命中，
// compute 不会被调用）。否则同一个键在同一个未命中窗口内只有一次
// compute 执行，所有并发调用者拿到同一个计算结果；结果在返回给任何
// 调用者之前已写入缓存。
//
// compute 运行期间不持有缓存锁，慢计算不会阻塞无关的缓存操作。
// 等待者可以通过 ctx 放弃等待，但这不会中止计算本身：计算照常完成并
// 为其余等待者缓存结果。compute 返回错误时不缓存任何东西，错误传播给
// 本窗口的所有调用者。
func (mc *MemoryCache) GetOrSet(ctx context.Context, key string, compute func(ctx context.Context) (interface{}, error), ttl time.Duration) (interface{}, error) {
	mc.mu.Lock()

	if mc.closed {
		mc.mu.Unlock()
		return nil, ErrCacheClosed
	}

	if entry, exists := mc.entries[key]; exists {
		now := time.Now()
		if !entry.expired(now) {
			entry.touch(now)
			mc.tracker.touch(key)
			mc.stats.hit()
			value := entry.Value
			mc.mu.Unlock()
			return value, nil
		}
		mc.removeEntryLocked(key)
		mc.stats.expirations(1)
	}

	mc.stats.miss()

	// 已有同键计算在进行，等待它的结果
	if call, exists := mc.flight[key]; exists {
		mc.mu.Unlock()
		select {
		case <-call.done:
			return call.val, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &flightCall{done: make(chan struct{})}
	mc.flight[key] = call
	mc.mu.Unlock()

	call.val, call.err = compute(ctx)

	mc.mu.Lock()
	if call.err == nil && !mc.closed {
		mc.insertLocked(key, call.val, ttl, time.Now())
		mc.evictLocked()
	}
	delete(mc.flight, key)
	mc.mu.Unlock()

	// 结果已入缓存，现在才放行等待者
	close(call.done)

	return call.val, call.err
}
