package cache

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode 是一个字符串类型，用于表示缓存子系统中所有预定义的错误类别。
type ErrorCode string

// 标准错误代码常量。缺失或已过期的键不是错误，这里只定义真正的失败类别。
const (
	// ErrTypeMismatch 表示类型化读取发现存储值的类型与请求的类型不一致。
	ErrTypeMismatch ErrorCode = "TYPE_MISMATCH"
	// ErrNotInitialized 表示在 Init/Reload 完成之前访问了持久化缓存。
	ErrNotInitialized ErrorCode = "NOT_INITIALIZED"
	// ErrBackendWriteFailed 表示对持久化后端的写入未能完成。
	ErrBackendWriteFailed ErrorCode = "BACKEND_WRITE_FAILED"
	// ErrBackendUnavailable 表示持久化后端当前不可用（如熔断器打开）。
	ErrBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	// ErrConfigInvalid 表示缓存配置无效。
	ErrConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ErrResourceClosed 表示尝试访问已关闭的缓存实例。
	ErrResourceClosed ErrorCode = "RESOURCE_CLOSED"
	// ErrSerializeFailed 表示序列化操作失败。
	ErrSerializeFailed ErrorCode = "SERIALIZE_FAILED"
	// ErrDeserializeFailed 表示反序列化操作失败。
	ErrDeserializeFailed ErrorCode = "DESERIALIZE_FAILED"
)

// CacheError 是缓存子系统的自定义错误类型。
// 它包含了错误代码、消息、可选的原始错误(cause)和附加上下文信息。
type CacheError struct {
	Code      ErrorCode              `json:"code"`              // 错误的分类代码
	Message   string                 `json:"message"`           // 人类可读的错误信息
	Cause     error                  `json:"-"`                 // 导致此错误的原始错误
	Context   map[string]interface{} `json:"context,omitempty"` // 额外的上下文信息
	Timestamp time.Time              `json:"timestamp"`         // 错误发生的时间戳
}

// Error 实现了 Go 内置的 error 接口。
func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap 实现了 Go 1.13+ 的错误包装接口，允许访问被包装的原始错误(Cause)。
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// Is 实现了错误判断接口，用于判断一个错误是否与目标错误具有相同的错误代码。
func (e *CacheError) Is(target error) bool {
	var cErr *CacheError
	if errors.As(target, &cErr) {
		return e.Code == cErr.Code
	}
	return false
}

// WithContext 为错误附加一个键值对形式的上下文信息。
func (e *CacheError) WithContext(key string, value interface{}) *CacheError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewCacheError 创建一个新的 CacheError。
func NewCacheError(code ErrorCode, message string) *CacheError {
	return &CacheError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]interface{}),
	}
}

// WrapError 将一个已有的 error 包装成一个新的 CacheError。
func WrapError(code ErrorCode, message string, cause error) *CacheError {
	return &CacheError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
		Context:   make(map[string]interface{}),
	}
}

// 预定义的常用错误实例
var (
	ErrCacheClosed          = NewCacheError(ErrResourceClosed, "cache is closed")
	ErrSnapshotNotLoaded    = NewCacheError(ErrNotInitialized, "persistent cache not initialized")
	ErrInvalidConfiguration = NewCacheError(ErrConfigInvalid, "invalid configuration")
	ErrStoredTypeMismatch   = NewCacheError(ErrTypeMismatch, "stored value type mismatch")
	ErrBackendWriteRejected = NewCacheError(ErrBackendWriteFailed, "backend write failed")
)

// IsCode 判断一个错误是否携带指定的错误代码。
func IsCode(err error, code ErrorCode) bool {
	var cErr *CacheError
	if errors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}
