package cache

import "encoding/json"

// Serializer 定义了值和字节流之间相互转换的接口。
// 持久化缓存通过它把值送往后端、从快照还原。
type Serializer interface {
	// Serialize 将任意值序列化为字节数组。
	Serialize(value interface{}) ([]byte, error)
	// Deserialize 将字节数组反序列化到目标对象。
	Deserialize(data []byte, target interface{}) error
	// MimeType 返回此序列化器对应的MIME类型。
	MimeType() string
}

// JSONSerializer 基于 encoding/json 的默认序列化实现。
type JSONSerializer struct{}

// NewJSONSerializer 创建 JSON 序列化器
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

// Serialize 序列化为 JSON 字节
func (s *JSONSerializer) Serialize(value interface{}) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, WrapError(ErrSerializeFailed, "json marshal failed", err)
	}
	return data, nil
}

// Deserialize 从 JSON 字节反序列化
func (s *JSONSerializer) Deserialize(data []byte, target interface{}) error {
	if err := json.Unmarshal(data, target); err != nil {
		return WrapError(ErrDeserializeFailed, "json unmarshal failed", err)
	}
	return nil
}

// MimeType 返回 MIME 类型
func (s *JSONSerializer) MimeType() string {
	return "application/json"
}

var _ Serializer = (*JSONSerializer)(nil)
