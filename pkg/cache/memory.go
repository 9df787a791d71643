package cache

import (
	"sync"
	"time"
)

// MemoryCacheConfig 内存缓存配置
type MemoryCacheConfig struct {
	MaxSize         int64         `yaml:"max_size"`         // 最大条目数量
	MaxMemoryBytes  int64         `yaml:"max_memory_bytes"` // 内存软上限（字节），0 表示不限制
	Policy          PolicyType    `yaml:"policy"`           // 淘汰策略
	DefaultTTL      time.Duration `yaml:"default_ttl"`      // 默认TTL，0 表示永不过期
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // 后台清理间隔，0 表示不启动后台清理
	Lenient         bool          `yaml:"lenient"`          // 类型不匹配时按未命中处理而不是报错
}

// validate 校验配置并填充默认策略。配置错误在这里拒绝，而不是推迟到首次写入。
func (c *MemoryCacheConfig) validate() error {
	if c.Policy == "" {
		c.Policy = PolicyRecency
	}
	if !c.Policy.valid() {
		return NewCacheError(ErrConfigInvalid, "unknown eviction policy").WithContext("policy", string(c.Policy))
	}
	if c.MaxSize <= 0 {
		return NewCacheError(ErrConfigInvalid, "max_size must be positive")
	}
	if c.MaxMemoryBytes < 0 {
		return NewCacheError(ErrConfigInvalid, "max_memory_bytes cannot be negative")
	}
	if c.CleanupInterval < 0 {
		return NewCacheError(ErrConfigInvalid, "cleanup_interval cannot be negative")
	}
	return nil
}

// MemoryCache 线程安全的内存缓存实现。
// 所有条目表和淘汰簿记的变更都在同一个互斥锁内完成，淘汰时需要
// 原子地检查整个排序结构，单锁比细粒度锁更合适。
type MemoryCache struct {
	mu          sync.Mutex
	config      MemoryCacheConfig
	entries     map[string]*CacheEntry
	tracker     *evictionTracker
	flight      map[string]*flightCall
	stats       statsRecorder
	memoryBytes int64
	closed      bool

	// 清理相关
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	lastCleanup   time.Time
}

// NewMemoryCache 创建新的内存缓存
func NewMemoryCache(config MemoryCacheConfig) (*MemoryCache, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	mc := &MemoryCache{
		config:      config,
		entries:     make(map[string]*CacheEntry),
		tracker:     newEvictionTracker(config.Policy),
		flight:      make(map[string]*flightCall),
		lastCleanup: time.Now(),
	}

	// 启动清理协程
	if config.CleanupInterval > 0 {
		mc.cleanupTicker = time.NewTicker(config.CleanupInterval)
		mc.stopCleanup = make(chan struct{})
		go mc.startCleanup(mc.cleanupTicker, mc.stopCleanup)
	}

	return mc, nil
}

// Configure 原地重新配置缓存。现有条目被保留；切换淘汰策略时会根据
// 当前条目的插入时间、访问时间和访问计数重建排序结构。
func (mc *MemoryCache) Configure(config MemoryCacheConfig) error {
	if err := config.validate(); err != nil {
		return err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return ErrCacheClosed
	}

	if config.Policy != mc.config.Policy {
		mc.tracker = rebuildTracker(config.Policy, mc.entries)
	}

	oldInterval := mc.config.CleanupInterval
	mc.config = config

	// 清理周期变化时重建定时器
	if config.CleanupInterval != oldInterval {
		mc.stopCleanupLocked()
		if config.CleanupInterval > 0 {
			mc.cleanupTicker = time.NewTicker(config.CleanupInterval)
			mc.stopCleanup = make(chan struct{})
			go mc.startCleanup(mc.cleanupTicker, mc.stopCleanup)
		}
	}

	return nil
}

// Set 插入或覆盖一个条目。覆盖时旧条目的 TTL 和访问元数据被整体替换。
// 插入后若超出条目数或内存预算，反复向 tracker 要受害者直到两个上限
// 都满足；淘汰循环以当前条目数为界。
func (mc *MemoryCache) Set(key string, value interface{}, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return ErrCacheClosed
	}

	mc.insertLocked(key, value, ttl, time.Now())
	mc.evictLocked()
	return nil
}

// SetAll 批量插入，逐键应用与 Set 相同的语义。
func (mc *MemoryCache) SetAll(entries map[string]interface{}, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.closed {
		return ErrCacheClosed
	}

	now := time.Now()
	for key, value := range entries {
		mc.insertLocked(key, value, ttl, now)
		mc.evictLocked()
	}
	return nil
}

// Get 获取缓存值。过期条目在读取时被惰性移除，计一次未命中和一次过期。
// 读取永远不会触发容量淘汰。
func (mc *MemoryCache) Get(key string) (interface{}, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, exists := mc.entries[key]
	if !exists {
		mc.stats.miss()
		return nil, false
	}

	now := time.Now()
	if entry.expired(now) {
		mc.removeEntryLocked(key)
		mc.stats.miss()
		mc.stats.expirations(1)
		return nil, false
	}

	entry.touch(now)
	mc.tracker.touch(key)
	mc.stats.hit()
	return entry.Value, true
}

// GetAll 批量读取，只返回调用时存在且未过期的键。
func (mc *MemoryCache) GetAll(keys []string) map[string]interface{} {
	result := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		if value, ok := mc.Get(key); ok {
			result[key] = value
		}
	}
	return result
}

// Has 存在性检查，已过期但尚未清理的条目视为不存在。
// 纯自省操作：不记录命中/未命中，也不更新淘汰簿记；
// 遇到过期条目会顺手清除，只计一次过期。
func (mc *MemoryCache) Has(key string) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, exists := mc.entries[key]
	if !exists {
		return false
	}
	if entry.expired(time.Now()) {
		mc.removeEntryLocked(key)
		mc.stats.expirations(1)
		return false
	}
	return true
}

// Remove 从条目表和 tracker 中原子地移除一个键。
func (mc *MemoryCache) Remove(key string) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, exists := mc.entries[key]; !exists {
		return false
	}
	mc.removeEntryLocked(key)
	return true
}

// RemoveAll 批量移除，返回实际移除的条目数。
func (mc *MemoryCache) RemoveAll(keys []string) int {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	removed := 0
	for _, key := range keys {
		if _, exists := mc.entries[key]; exists {
			mc.removeEntryLocked(key)
			removed++
		}
	}
	return removed
}

// Clear 清空所有条目。历史计数器（命中、未命中等）不受影响。
func (mc *MemoryCache) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries = make(map[string]*CacheEntry)
	mc.tracker = newEvictionTracker(mc.config.Policy)
	mc.memoryBytes = 0
}

// Pop 原子地移除并返回一个值。过期条目被清除并返回未找到。
func (mc *MemoryCache) Pop(key string) (interface{}, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, exists := mc.entries[key]
	if !exists {
		return nil, false
	}
	if entry.expired(time.Now()) {
		mc.removeEntryLocked(key)
		mc.stats.expirations(1)
		return nil, false
	}

	value := entry.Value
	mc.removeEntryLocked(key)
	return value, true
}

// Update 原地替换已有条目的值，保留 TTL 和访问元数据。
// 键不存在或已过期时不做任何事。
func (mc *MemoryCache) Update(key string, updater func(interface{}) interface{}) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, exists := mc.entries[key]
	if !exists {
		return false
	}
	if entry.expired(time.Now()) {
		mc.removeEntryLocked(key)
		mc.stats.expirations(1)
		return false
	}

	entry.Value = updater(entry.Value)
	newSize := estimateSize(entry.Value)
	mc.memoryBytes += newSize - entry.Size
	entry.Size = newSize
	return true
}

// RemainingTTL 返回条目的剩余存活时间。键不存在、没有 TTL 或已过期
// 时统一返回未找到。
func (mc *MemoryCache) RemainingTTL(key string) (time.Duration, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, exists := mc.entries[key]
	if !exists || entry.ExpiresAt.IsZero() {
		return 0, false
	}

	remaining := time.Until(entry.ExpiresAt)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// RefreshTTL 把已有条目的过期时间重置为 now + 原始TTL。
// 返回键是否被找到；false 不是错误，只表示没有可刷新的条目。
func (mc *MemoryCache) RefreshTTL(key string) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, exists := mc.entries[key]
	if !exists {
		return false
	}
	if entry.expired(time.Now()) {
		mc.removeEntryLocked(key)
		mc.stats.expirations(1)
		return false
	}
	if entry.OriginalTTL > 0 {
		entry.ExpiresAt = time.Now().Add(entry.OriginalTTL)
	}
	return true
}

// CleanExpired 全量清理过期条目，返回移除的条目数。
func (mc *MemoryCache) CleanExpired() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.cleanExpiredLocked()
}

// Cleanup 等同于 CleanExpired，并额外把后台清理定时器的下次触发
// 时间推迟一个完整周期。
func (mc *MemoryCache) Cleanup() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	n := mc.cleanExpiredLocked()
	if mc.cleanupTicker != nil {
		mc.cleanupTicker.Reset(mc.config.CleanupInterval)
	}
	return n
}

// StopAutoCleanup 停止后台清理协程。可以安全地重复调用。
func (mc *MemoryCache) StopAutoCleanup() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.stopCleanupLocked()
}

// Close 关闭缓存并停止后台清理。关闭后的读写操作属于调用方错误，
// 写入会返回 RESOURCE_CLOSED。
func (mc *MemoryCache) Close() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.stopCleanupLocked()
	mc.closed = true
	return nil
}

// Stats 获取缓存统计信息
func (mc *MemoryCache) Stats() CacheStats {
	stats := mc.stats.snapshot()

	mc.mu.Lock()
	stats.Size = int64(len(mc.entries))
	stats.MaxSize = mc.config.MaxSize
	stats.EstimatedBytes = mc.memoryBytes
	stats.MaxMemoryBytes = mc.config.MaxMemoryBytes
	stats.LastCleanup = mc.lastCleanup
	mc.mu.Unlock()

	return stats
}

// ResetStats 重置统计计数器，条目本身不受影响。
func (mc *MemoryCache) ResetStats() {
	mc.stats.reset()
}

// lenient 在缓存锁内读取 Lenient 配置。Configure 可能并发改写配置，
// 锁外读取会构成数据竞争。
func (mc *MemoryCache) lenient() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.config.Lenient
}

// insertLocked 创建并登记一个条目。调用方必须持有 mc.mu。
func (mc *MemoryCache) insertLocked(key string, value interface{}, ttl time.Duration, now time.Time) {
	if _, exists := mc.entries[key]; exists {
		mc.removeEntryLocked(key)
	}

	if ttl <= 0 {
		ttl = mc.config.DefaultTTL
	}

	entry := &CacheEntry{
		Key:         key,
		Value:       value,
		InsertedAt:  now,
		AccessedAt:  now,
		OriginalTTL: ttl,
		Size:        estimateSize(value),
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}

	mc.entries[key] = entry
	mc.tracker.add(key)
	mc.memoryBytes += entry.Size
}

// removeEntryLocked 从条目表和 tracker 中注销一个键。调用方必须持有 mc.mu。
func (mc *MemoryCache) removeEntryLocked(key string) {
	if entry, exists := mc.entries[key]; exists {
		delete(mc.entries, key)
		mc.tracker.remove(key)
		mc.memoryBytes -= entry.Size
	}
}

// overLimitLocked 判断是否超出条目数或内存预算。
func (mc *MemoryCache) overLimitLocked() bool {
	if int64(len(mc.entries)) > mc.config.MaxSize {
		return true
	}
	return mc.config.MaxMemoryBytes > 0 && mc.memoryBytes > mc.config.MaxMemoryBytes
}

// evictLocked 反复淘汰受害者直到两个上限都满足。
// 循环以进入时的条目数为界，避免在极端配置下空转。
func (mc *MemoryCache) evictLocked() {
	limit := len(mc.entries)
	for i := 0; i < limit && mc.overLimitLocked(); i++ {
		victim, ok := mc.tracker.victim(mc.entries)
		if !ok {
			break
		}
		mc.removeEntryLocked(victim)
		mc.stats.eviction()
	}
}

// cleanExpiredLocked 移除所有过期条目。调用方必须持有 mc.mu。
func (mc *MemoryCache) cleanExpiredLocked() int {
	now := time.Now()
	removed := 0
	for key, entry := range mc.entries {
		if entry.expired(now) {
			mc.removeEntryLocked(key)
			removed++
		}
	}
	if removed > 0 {
		mc.stats.expirations(int64(removed))
	}
	mc.lastCleanup = now
	return removed
}

// stopCleanupLocked 停止当前的清理定时器和协程。调用方必须持有 mc.mu。
func (mc *MemoryCache) stopCleanupLocked() {
	if mc.cleanupTicker != nil {
		mc.cleanupTicker.Stop()
		close(mc.stopCleanup)
		mc.cleanupTicker = nil
		mc.stopCleanup = nil
	}
}

// startCleanup 后台清理协程。ticker 和 stop 以参数传入，使 Configure
// 重建定时器后旧协程仍能正常退出。
func (mc *MemoryCache) startCleanup(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-ticker.C:
			mc.CleanExpired()
		case <-stop:
			return
		}
	}
}
