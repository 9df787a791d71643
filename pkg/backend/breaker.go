package backend

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"tiercache/pkg/logger"
)

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`                 // 熔断器名称
	MaxRequests uint32        `yaml:"max_requests" mapstructure:"max_requests"` // 半开状态下的最大请求数
	Interval    time.Duration `yaml:"interval" mapstructure:"interval"`         // 统计窗口时间
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`           // 熔断器打开后的超时时间
	ReadyToTrip uint32        `yaml:"ready_to_trip" mapstructure:"ready_to_trip"` // 触发熔断的连续失败次数阈值
}

// DefaultBreakerConfig 默认熔断器配置
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:        "CacheBackend",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: 5,
	}
}

// BreakerBackend 带熔断器的后端装饰器。
// 使用 sony/gobreaker，后端连续失败达到阈值后快速失败一段时间，
// 避免在后端不可用时拖垮写路径。
type BreakerBackend struct {
	inner Backend
	cb    *gobreaker.CircuitBreaker
	log   *logrus.Entry
}

// NewBreakerBackend 创建熔断装饰器。
func NewBreakerBackend(inner Backend, config BreakerConfig) *BreakerBackend {
	log := logger.WithComponent("backend_breaker")

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.ReadyToTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("circuit breaker %s: %v -> %v", name, from, to)
		},
	}

	return &BreakerBackend{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
		log:   log,
	}
}

// State 返回熔断器当前状态。
func (bb *BreakerBackend) State() gobreaker.State {
	return bb.cb.State()
}

// Load 带熔断的批量读取。
func (bb *BreakerBackend) Load(ctx context.Context) (map[string][]byte, error) {
	result, err := bb.cb.Execute(func() (interface{}, error) {
		return bb.inner.Load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string][]byte), nil
}

// Get 带熔断的单键读取。
func (bb *BreakerBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	type getResult struct {
		value []byte
		found bool
	}
	result, err := bb.cb.Execute(func() (interface{}, error) {
		value, found, err := bb.inner.Get(ctx, key)
		return getResult{value, found}, err
	})
	if err != nil {
		return nil, false, err
	}
	gr := result.(getResult)
	return gr.value, gr.found, nil
}

// Set 带熔断的写入。
func (bb *BreakerBackend) Set(ctx context.Context, key string, value []byte) error {
	_, err := bb.cb.Execute(func() (interface{}, error) {
		return nil, bb.inner.Set(ctx, key, value)
	})
	return err
}

// Delete 带熔断的删除。
func (bb *BreakerBackend) Delete(ctx context.Context, key string) error {
	_, err := bb.cb.Execute(func() (interface{}, error) {
		return nil, bb.inner.Delete(ctx, key)
	})
	return err
}

// Clear 带熔断的清空。
func (bb *BreakerBackend) Clear(ctx context.Context) error {
	_, err := bb.cb.Execute(func() (interface{}, error) {
		return nil, bb.inner.Clear(ctx)
	})
	return err
}

// Close 关闭被装饰的后端。
func (bb *BreakerBackend) Close() error {
	return bb.inner.Close()
}

var _ Backend = (*BreakerBackend)(nil)
