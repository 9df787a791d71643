package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiercache/pkg/backend"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{
		Memory: MemoryCacheConfig{MaxSize: 100},
	}, backend.NewMemoryBackend())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// 测试Manager的构造和实例标识
func TestManager_New(t *testing.T) {
	m1 := newTestManager(t)
	m2 := newTestManager(t)

	assert.NotEmpty(t, m1.ID())
	assert.NotEqual(t, m1.ID(), m2.ID(), "each manager gets its own identity")
	assert.NotNil(t, m1.Memory())
	assert.NotNil(t, m1.Persistent())

	// 非法内存层配置在构造时拒绝
	_, err := NewManager(ManagerConfig{
		Memory: MemoryCacheConfig{MaxSize: -1},
	}, backend.NewMemoryBackend())
	assert.True(t, IsCode(err, ErrConfigInvalid))
}

// 测试InitPersistent幂等
func TestManager_InitPersistent(t *testing.T) {
	ctx := context.Background()
	be := backend.NewMemoryBackend()
	require.NoError(t, be.Set(ctx, "seed", []byte(`"v"`)))

	m, err := NewManager(ManagerConfig{
		Memory: MemoryCacheConfig{MaxSize: 10},
	}, be)
	require.NoError(t, err)
	defer m.Close()

	// 初始化前持久化层拒绝访问
	_, err = m.Persistent().Size()
	assert.True(t, IsCode(err, ErrNotInitialized))

	require.NoError(t, m.InitPersistent(ctx))
	require.NoError(t, m.InitPersistent(ctx), "repeat init is a no-op")

	size, err := m.Persistent().Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

// 测试两层互相独立：清空一层不影响另一层
func TestManager_TierIndependence(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	require.NoError(t, m.InitPersistent(ctx))

	require.NoError(t, m.Memory().Set("mem", 1, 0))
	require.NoError(t, m.Persistent().SetString(ctx, "disk", "v"))

	m.ClearMemory()
	assert.False(t, m.Memory().Has("mem"))
	ok, _ := m.Persistent().Has("disk")
	assert.True(t, ok, "persistent tier untouched by ClearMemory")

	require.NoError(t, m.Memory().Set("mem", 1, 0))
	require.NoError(t, m.ClearPersistent(ctx))
	assert.True(t, m.Memory().Has("mem"), "memory tier untouched by ClearPersistent")
	ok, _ = m.Persistent().Has("disk")
	assert.False(t, ok)

	require.NoError(t, m.Persistent().SetString(ctx, "disk", "v"))
	require.NoError(t, m.ClearAll(ctx))
	assert.False(t, m.Memory().Has("mem"))
	size, _ := m.Persistent().Size()
	assert.Equal(t, 0, size)
}

// 测试Close只关内存层
func TestManager_Close(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(ManagerConfig{
		Memory: MemoryCacheConfig{MaxSize: 10},
	}, backend.NewMemoryBackend())
	require.NoError(t, err)
	require.NoError(t, m.InitPersistent(ctx))

	require.NoError(t, m.Close())

	err = m.Memory().Set("key1", 1, 0)
	assert.True(t, IsCode(err, ErrResourceClosed))

	// 持久化层和后端仍然可用
	require.NoError(t, m.Persistent().SetString(ctx, "key1", "v"))
}
