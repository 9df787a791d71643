package backend

import (
	"context"
	"sync"
)

// MemoryBackend 进程内的后端实现，用于开发和测试。
// 行为与真实后端一致：存取的都是值的副本。
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend 创建内存后端
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[string][]byte),
	}
}

// Load 返回全部键值对的副本。
func (mb *MemoryBackend) Load(ctx context.Context) (map[string][]byte, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	result := make(map[string][]byte, len(mb.data))
	for key, value := range mb.data {
		result[key] = append([]byte(nil), value...)
	}
	return result, nil
}

// Get 读取单个键。
func (mb *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	value, exists := mb.data[key]
	if !exists {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Set 写入单个键。
func (mb *MemoryBackend) Set(ctx context.Context, key string, value []byte) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete 删除单个键。
func (mb *MemoryBackend) Delete(ctx context.Context, key string) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	delete(mb.data, key)
	return nil
}

// Clear 清空所有键值对。
func (mb *MemoryBackend) Clear(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	mb.data = make(map[string][]byte)
	return nil
}

// Close 关闭后端。内存后端没有需要释放的资源。
func (mb *MemoryBackend) Close() error {
	return nil
}

var _ Backend = (*MemoryBackend)(nil)
