package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// 测试级别解析：未识别的级别回落到info
func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, parseLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, logrus.InfoLevel, parseLevel("nonsense"))
	assert.Equal(t, logrus.InfoLevel, parseLevel(""))
}

// 测试格式选择
func TestBuildFormatter(t *testing.T) {
	assert.IsType(t, &logrus.JSONFormatter{}, buildFormatter("json"))
	assert.IsType(t, &logrus.TextFormatter{}, buildFormatter("text"))
	assert.IsType(t, &logrus.TextFormatter{}, buildFormatter(""))
}

// 测试环境变量初始化使用CACHE_SERVER_*键
func TestInitFromEnv(t *testing.T) {
	t.Setenv("CACHE_SERVER_LOG_LEVEL", "debug")
	t.Setenv("CACHE_SERVER_LOG_FORMAT", "json")

	InitFromEnv()

	assert.Equal(t, logrus.DebugLevel, GetLogger().GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, GetLogger().Formatter)
}

// 测试WithComponent附加组件字段
func TestWithComponent(t *testing.T) {
	Init(Config{Level: "info", Format: "text"})

	entry := WithComponent("test_component")
	assert.Equal(t, "test_component", entry.Data["component"])
}
