package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileBackendConfig 文件后端配置
type FileBackendConfig struct {
	Path string `yaml:"path"` // 数据文件路径
}

// FileBackend 基于单个 JSON 文件的后端实现。全部数据常驻内存，
// 每次写入通过临时文件加重命名原子地落盘。适合小数据量的本地持久化。
type FileBackend struct {
	mu   sync.Mutex
	path string
	data map[string][]byte
}

// NewFileBackend 创建文件后端并加载已有数据。
func NewFileBackend(config FileBackendConfig) (*FileBackend, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("file backend: path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("file backend: cannot create dir: %w", err)
	}

	fb := &FileBackend{
		path: config.Path,
		data: make(map[string][]byte),
	}

	raw, err := os.ReadFile(config.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("file backend: cannot read %q: %w", config.Path, err)
		}
		return fb, nil
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fb.data); err != nil {
			return nil, fmt.Errorf("file backend: corrupt data file %q: %w", config.Path, err)
		}
	}

	return fb, nil
}

// Load 返回全部键值对的副本。
func (fb *FileBackend) Load(ctx context.Context) (map[string][]byte, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	result := make(map[string][]byte, len(fb.data))
	for key, value := range fb.data {
		result[key] = append([]byte(nil), value...)
	}
	return result, nil
}

// Get 读取单个键。
func (fb *FileBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	value, exists := fb.data[key]
	if !exists {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Set 写入单个键并落盘。落盘失败时内存数据回滚，写入视为失败。
func (fb *FileBackend) Set(ctx context.Context, key string, value []byte) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	prev, existed := fb.data[key]
	fb.data[key] = append([]byte(nil), value...)

	if err := fb.persistLocked(); err != nil {
		if existed {
			fb.data[key] = prev
		} else {
			delete(fb.data, key)
		}
		return err
	}
	return nil
}

// Delete 删除单个键并落盘。
func (fb *FileBackend) Delete(ctx context.Context, key string) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	prev, existed := fb.data[key]
	if !existed {
		return nil
	}
	delete(fb.data, key)

	if err := fb.persistLocked(); err != nil {
		fb.data[key] = prev
		return err
	}
	return nil
}

// Clear 清空所有键值对并落盘。
func (fb *FileBackend) Clear(ctx context.Context) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	prev := fb.data
	fb.data = make(map[string][]byte)

	if err := fb.persistLocked(); err != nil {
		fb.data = prev
		return err
	}
	return nil
}

// Close 关闭后端。数据已在每次写入时落盘。
func (fb *FileBackend) Close() error {
	return nil
}

// persistLocked 把当前数据写入临时文件后重命名到目标路径。
// 调用方必须持有 fb.mu。
func (fb *FileBackend) persistLocked() error {
	raw, err := json.Marshal(fb.data)
	if err != nil {
		return fmt.Errorf("file backend: cannot marshal data: %w", err)
	}

	dir := filepath.Dir(fb.path)
	tmpFile, err := os.CreateTemp(dir, "tiercache.tmp.*")
	if err != nil {
		return fmt.Errorf("file backend: cannot create temporary file in %q: %w", dir, err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(raw); err != nil {
		tmpFile.Close()
		return fmt.Errorf("file backend: cannot write %q: %w", tmpPath, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("file backend: cannot close %q: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, fb.path); err != nil {
		return fmt.Errorf("file backend: cannot rename %q to %q: %w", tmpPath, fb.path, err)
	}
	return nil
}

var _ Backend = (*FileBackend)(nil)
