// 公共API类型
package api

import (
	"time"

	"github.com/pkg/errors"
)

// 日志文件滚动方式
type LogRotate string

const (
	LogRotateSize  LogRotate = "size"  // 按大小滚动
	LogRotateDaily LogRotate = "daily" // 按天切分
)

// 配置
type Config struct {
	LogLevel   string    // 日志级别（debug, info, warn, error）
	LogFile    string    // 日志文件，空表示输出到标准错误
	LogRotate  LogRotate // 日志文件滚动方式
	LogMaxSize int       // 按大小滚动时单个文件上限（MB）
	LogMaxAge  time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		LogLevel:   "info",
		LogRotate:  LogRotateSize,
		LogMaxSize: 10,
		LogMaxAge:  7 * 24 * time.Hour,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	switch c.LogRotate {
	case LogRotateSize, LogRotateDaily:
	default:
		return errors.Errorf("无效的日志滚动方式: %q", c.LogRotate)
	}
	if c.LogRotate == LogRotateSize && c.LogMaxSize <= 0 {
		return errors.Errorf("无效的日志文件大小: %d", c.LogMaxSize)
	}
	return nil
}

// 发送参数
type SendSettings struct {
	Addr       string        // 单播目标地址host:port
	Multicast  bool          // 是否组播
	Group      string        // 组播地址，空表示224.0.1.187:5683
	Interfaces []string      // 组播使用的接口，空表示全部
	Timeout    time.Duration // 发送超时
}

// 消息输出格式
type OutputFormat string

const (
	OutputHex    OutputFormat = "hex"    // 线上字节的十六进制
	OutputPretty OutputFormat = "pretty" // 解码后的可读形式
)
