package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"tiercache/pkg/backend"
	"tiercache/pkg/logger"
)

// PersistentCacheConfig 持久化缓存配置
type PersistentCacheConfig struct {
	Lenient    bool       // 类型不匹配时按未命中处理而不是报错
	Serializer Serializer // 为空时使用 JSON 序列化
}

// PersistentCache 在异步持久化后端之上提供同步读取的缓存层。
// 初始化时把后端的全部内容整体加载进内存快照，读取只访问快照，
// 永远不会阻塞在后端 I/O 上；写入先到后端，成功后才镜像进快照，
// 保证快照始终反映后端最后一次成功写入的状态。
//
// 锁的分工：writeMu 串行化所有后端写入和重载，后端 I/O 只在
// writeMu 内进行；mu 保护快照本身，只在镜像和读取时短暂持有，
// 慢后端不会拖住快照读取。
type PersistentCache struct {
	mu          sync.RWMutex
	writeMu     sync.Mutex
	backend     backend.Backend
	serializer  Serializer
	snapshot    map[string][]byte
	initialized bool
	lenient     bool
	log         *logrus.Entry
}

// NewPersistentCache 创建持久化缓存。使用前必须先调用 Init。
func NewPersistentCache(be backend.Backend, config PersistentCacheConfig) *PersistentCache {
	serializer := config.Serializer
	if serializer == nil {
		serializer = NewJSONSerializer()
	}

	return &PersistentCache{
		backend:    be,
		serializer: serializer,
		lenient:    config.Lenient,
		log:        logger.WithComponent("persistent_cache"),
	}
}

// Init 把后端的全部内容加载进快照。重复调用是安全的空操作；
// 需要强制重新加载时使用 Reload。
func (pc *PersistentCache) Init(ctx context.Context) error {
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()

	if pc.ready() {
		return nil
	}
	return pc.reload(ctx)
}

// Reload 重新读取整个后端，整体替换当前快照。
// 用于从后端的带外变更中恢复。
func (pc *PersistentCache) Reload(ctx context.Context) error {
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()
	return pc.reload(ctx)
}

// reload 从后端构建新快照并整体交换。调用方必须持有 writeMu；
// 后端加载在快照锁外进行，失败时原快照保持不动。
func (pc *PersistentCache) reload(ctx context.Context) error {
	data, err := pc.backend.Load(ctx)
	if err != nil {
		return WrapError(ErrBackendUnavailable, "snapshot load failed", err)
	}

	pc.mu.Lock()
	pc.snapshot = data
	pc.initialized = true
	pc.mu.Unlock()

	pc.log.Debugf("snapshot loaded: %d entries", len(data))
	return nil
}

// ready 判断快照是否已完成初始化。
func (pc *PersistentCache) ready() bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.initialized
}

// GetRaw 返回快照中的序列化字节。只读快照，不访问后端。
func (pc *PersistentCache) GetRaw(key string) ([]byte, bool, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if !pc.initialized {
		return nil, false, ErrSnapshotNotLoaded
	}

	data, exists := pc.snapshot[key]
	if !exists {
		return nil, false, nil
	}
	return data, true, nil
}

// Has 快照中的存在性检查。
func (pc *PersistentCache) Has(key string) (bool, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if !pc.initialized {
		return false, ErrSnapshotNotLoaded
	}
	_, exists := pc.snapshot[key]
	return exists, nil
}

// Keys 返回快照中全部键的副本。
func (pc *PersistentCache) Keys() ([]string, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if !pc.initialized {
		return nil, ErrSnapshotNotLoaded
	}

	keys := make([]string, 0, len(pc.snapshot))
	for key := range pc.snapshot {
		keys = append(keys, key)
	}
	return keys, nil
}

// Size 返回快照中的条目数。
func (pc *PersistentCache) Size() (int, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if !pc.initialized {
		return 0, ErrSnapshotNotLoaded
	}
	return len(pc.snapshot), nil
}

// Set 序列化值并写入。后端写入成功后快照才被镜像更新；
// 写入失败时快照保持写前状态，错误传播给调用方。
// 后端 I/O 在 writeMu 内、快照锁外进行，写入期间读取不被阻塞。
func (pc *PersistentCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := pc.serializer.Serialize(value)
	if err != nil {
		return err
	}

	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()

	if !pc.ready() {
		return ErrSnapshotNotLoaded
	}

	if err := pc.backend.Set(ctx, key, data); err != nil {
		return WrapError(ErrBackendWriteFailed, "backend write failed", err).WithContext("key", key)
	}

	pc.mu.Lock()
	pc.snapshot[key] = data
	pc.mu.Unlock()
	return nil
}

// SetString 写入字符串值
func (pc *PersistentCache) SetString(ctx context.Context, key, value string) error {
	return pc.Set(ctx, key, value)
}

// SetInt 写入整数值
func (pc *PersistentCache) SetInt(ctx context.Context, key string, value int64) error {
	return pc.Set(ctx, key, value)
}

// SetFloat 写入浮点值
func (pc *PersistentCache) SetFloat(ctx context.Context, key string, value float64) error {
	return pc.Set(ctx, key, value)
}

// SetBool 写入布尔值
func (pc *PersistentCache) SetBool(ctx context.Context, key string, value bool) error {
	return pc.Set(ctx, key, value)
}

// SetStrings 写入字符串序列
func (pc *PersistentCache) SetStrings(ctx context.Context, key string, value []string) error {
	return pc.Set(ctx, key, value)
}

// SetJSON 写入任意可序列化的结构化值
func (pc *PersistentCache) SetJSON(ctx context.Context, key string, value interface{}) error {
	return pc.Set(ctx, key, value)
}

// SetAll 批量写入，逐键应用写后镜像的顺序。某个键失败时中止剩余写入，
// 此前成功的键保持已写入已镜像的状态，不回滚；失败作为整体报告。
func (pc *PersistentCache) SetAll(ctx context.Context, entries map[string]interface{}) error {
	for key, value := range entries {
		if err := pc.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// Remove 先从后端删除，成功后从快照移除。
func (pc *PersistentCache) Remove(ctx context.Context, key string) error {
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()

	if !pc.ready() {
		return ErrSnapshotNotLoaded
	}

	if err := pc.backend.Delete(ctx, key); err != nil {
		return WrapError(ErrBackendWriteFailed, "backend delete failed", err).WithContext("key", key)
	}

	pc.mu.Lock()
	delete(pc.snapshot, key)
	pc.mu.Unlock()
	return nil
}

// RemoveAll 批量删除，语义同 SetAll 的部分失败策略。
func (pc *PersistentCache) RemoveAll(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := pc.Remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Clear 清空后端，成功后清空快照。
func (pc *PersistentCache) Clear(ctx context.Context) error {
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()

	if !pc.ready() {
		return ErrSnapshotNotLoaded
	}

	if err := pc.backend.Clear(ctx); err != nil {
		return WrapError(ErrBackendWriteFailed, "backend clear failed", err)
	}

	pc.mu.Lock()
	pc.snapshot = make(map[string][]byte)
	pc.mu.Unlock()
	return nil
}

// PGet 持久化缓存的类型化读取，只访问快照。键不存在返回
// (零值, false, nil)；存储值无法按 T 反序列化时默认以 TYPE_MISMATCH
// 失败，Lenient 配置下按未命中处理。
func PGet[T any](pc *PersistentCache, key string) (T, bool, error) {
	var zero T

	data, exists, err := pc.GetRaw(key)
	if err != nil || !exists {
		return zero, false, err
	}

	var value T
	if err := pc.serializer.Deserialize(data, &value); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if pc.lenient {
				return zero, false, nil
			}
			return zero, false, WrapError(ErrTypeMismatch, "stored value type mismatch", err).WithContext("key", key)
		}
		return zero, false, err
	}
	return value, true, nil
}
