// Package logger 提供了基于 logrus 的统一日志封装。所有组件通过
// WithComponent 获取带组件字段的日志入口，日志级别和格式由配置或
// CACHE_SERVER_* 环境变量决定。
package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// 环境变量键，与 pkg/config 的 viper 前缀保持一致。
const (
	envLevel  = "CACHE_SERVER_LOG_LEVEL"
	envFormat = "CACHE_SERVER_LOG_FORMAT"
)

const timestampLayout = "2006-01-02 15:04:05.000"

var base *logrus.Logger

// Config 日志配置
type Config struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
}

// Init 按给定配置初始化日志器。未识别的级别回落到 info。
func Init(config Config) {
	log := logrus.New()
	log.SetLevel(parseLevel(config.Level))
	log.SetFormatter(buildFormatter(config.Format))
	log.SetOutput(os.Stdout)
	base = log
}

// InitFromEnv 从 CACHE_SERVER_LOG_LEVEL 和 CACHE_SERVER_LOG_FORMAT
// 环境变量初始化日志器，未设置时使用 info/text。
func InitFromEnv() {
	level := os.Getenv(envLevel)
	if level == "" {
		level = "info"
	}

	format := os.Getenv(envFormat)
	if format == "" {
		format = "text"
	}

	Init(Config{Level: level, Format: format})
}

// GetLogger 返回全局日志器，首次调用时按环境变量初始化。
func GetLogger() *logrus.Logger {
	if base == nil {
		InitFromEnv()
	}
	return base
}

// WithComponent 返回带组件字段的日志入口。
func WithComponent(component string) *logrus.Entry {
	return GetLogger().WithField("component", component)
}

// SetLevel 运行时调整日志级别。
func SetLevel(level string) {
	GetLogger().SetLevel(parseLevel(level))
}

// parseLevel 解析日志级别字符串，无法识别时回落到 info。
func parseLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

// buildFormatter 按格式名构建 logrus 格式化器。
func buildFormatter(format string) logrus.Formatter {
	if format == "json" {
		return &logrus.JSONFormatter{TimestampFormat: timestampLayout}
	}
	return &logrus.TextFormatter{
		TimestampFormat: timestampLayout,
		FullTimestamp:   true,
		ForceColors:     true,
	}
}
