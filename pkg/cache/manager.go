package cache

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tiercache/pkg/backend"
	"tiercache/pkg/logger"
)

// ManagerConfig 缓存管理器配置
type ManagerConfig struct {
	Memory     MemoryCacheConfig     `yaml:"memory"`     // 内存层配置
	Persistent PersistentCacheConfig `yaml:"persistent"` // 持久化层配置
}

// Manager 协调一对内存缓存和持久化缓存的生命周期。
// 每个逻辑上下文持有自己的 Manager 实例，通过构造注入显式传递，
// 不存在进程级的全局缓存。两层在构造时即被创建，互相独立：
// 内存层从不直接访问持久化层，Manager 是唯一同时看到两层的组件。
type Manager struct {
	id         string
	memory     *MemoryCache
	persistent *PersistentCache
	log        *logrus.Entry
}

// NewManager 创建缓存管理器。be 是持久化层使用的后端。
func NewManager(config ManagerConfig, be backend.Backend) (*Manager, error) {
	memory, err := NewMemoryCache(config.Memory)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	return &Manager{
		id:         id,
		memory:     memory,
		persistent: NewPersistentCache(be, config.Persistent),
		log:        logger.WithComponent("cache_manager").WithField("instance", id),
	}, nil
}

// ID 返回该实例的唯一标识，用于日志关联。
func (m *Manager) ID() string {
	return m.id
}

// Memory 返回内存缓存层。
func (m *Manager) Memory() *MemoryCache {
	return m.memory
}

// Persistent 返回持久化缓存层。
func (m *Manager) Persistent() *PersistentCache {
	return m.persistent
}

// InitPersistent 初始化持久化层快照。幂等：已初始化后重复调用是
// 安全的空操作，不触发重新加载（需要重读后端时显式调用
// Persistent().Reload）。
func (m *Manager) InitPersistent(ctx context.Context) error {
	if err := m.persistent.Init(ctx); err != nil {
		m.log.WithError(err).Error("failed to initialize persistent cache")
		return err
	}
	return nil
}

// ClearMemory 清空内存层，持久化层不受影响。
func (m *Manager) ClearMemory() {
	m.memory.Clear()
}

// ClearPersistent 清空持久化层，内存层不受影响。
func (m *Manager) ClearPersistent(ctx context.Context) error {
	return m.persistent.Clear(ctx)
}

// ClearAll 清空两层。
func (m *Manager) ClearAll(ctx context.Context) error {
	m.memory.Clear()
	return m.persistent.Clear(ctx)
}

// Close 关闭内存层并停止其后台清理。持久化层没有需要释放的
// 后台资源，后端连接的关闭由后端的创建方负责。
func (m *Manager) Close() error {
	m.log.Debug("closing cache manager")
	return m.memory.Close()
}
