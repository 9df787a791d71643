// Package backend 提供持久化缓存底层键值存储的抽象和具体实现
// （Redis、本地文件、内存），以及可选的熔断装饰器。
package backend

import "context"

// Backend 定义了持久化键值后端的行为。后端按字节存取，序列化由上层
// 负责。所有方法都是异步 I/O 风格，通过 context 控制超时和取消。
type Backend interface {
	// Load 一次性读出后端的全部键值对，供快照初始化使用。
	Load(ctx context.Context) (map[string][]byte, error)
	// Get 读取单个键。键不存在时返回 (nil, false, nil)。
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set 写入单个键。
	Set(ctx context.Context, key string, value []byte) error
	// Delete 删除单个键。删除不存在的键不是错误。
	Delete(ctx context.Context, key string) error
	// Clear 清空后端的所有键值对。
	Clear(ctx context.Context) error
	// Close 关闭后端连接并释放资源。
	Close() error
}
