package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileBackend(t *testing.T) (*FileBackend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.json")
	fb, err := NewFileBackend(FileBackendConfig{Path: path})
	require.NoError(t, err)
	return fb, path
}

// 测试文件后端基本操作
func TestFileBackend_BasicOperations(t *testing.T) {
	fb, _ := newTestFileBackend(t)
	ctx := context.Background()

	require.NoError(t, fb.Set(ctx, "key1", []byte(`"value1"`)))

	value, exists, err := fb.Get(ctx, "key1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []byte(`"value1"`), value)

	require.NoError(t, fb.Delete(ctx, "key1"))
	_, exists, _ = fb.Get(ctx, "key1")
	assert.False(t, exists)
}

// 测试数据跨实例持久化：重新打开同一路径能读回写入的内容
func TestFileBackend_PersistsAcrossReopen(t *testing.T) {
	fb, path := newTestFileBackend(t)
	ctx := context.Background()

	require.NoError(t, fb.Set(ctx, "a", []byte(`1`)))
	require.NoError(t, fb.Set(ctx, "b", []byte(`2`)))
	require.NoError(t, fb.Delete(ctx, "a"))
	require.NoError(t, fb.Close())

	reopened, err := NewFileBackend(FileBackendConfig{Path: path})
	require.NoError(t, err)

	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
	assert.Equal(t, []byte(`2`), loaded["b"])
}

// 测试空路径和损坏文件被拒绝
func TestFileBackend_InvalidSetup(t *testing.T) {
	_, err := NewFileBackend(FileBackendConfig{})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	_, err = NewFileBackend(FileBackendConfig{Path: path})
	assert.Error(t, err)
}

// 测试不存在的数据文件视为空后端
func TestFileBackend_MissingFileIsEmpty(t *testing.T) {
	fb, _ := newTestFileBackend(t)

	loaded, err := fb.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

// 测试Clear清空内存和磁盘
func TestFileBackend_Clear(t *testing.T) {
	fb, path := newTestFileBackend(t)
	ctx := context.Background()

	require.NoError(t, fb.Set(ctx, "key1", []byte(`1`)))
	require.NoError(t, fb.Clear(ctx))

	loaded, _ := fb.Load(ctx)
	assert.Empty(t, loaded)

	reopened, err := NewFileBackend(FileBackendConfig{Path: path})
	require.NoError(t, err)
	loaded, _ = reopened.Load(ctx)
	assert.Empty(t, loaded)
}
