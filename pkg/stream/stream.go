// 提供统一的字节流抽象：文件流、内存缓冲流和只读输入缓冲流
// 持久化上下文和命令行工具通过该接口读写已编码的消息
package stream

import (
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedConfiguration 流不支持请求的模式或操作
	ErrUnsupportedConfiguration = errors.New("stream: 不支持的配置")
	// ErrClosed 流已关闭
	ErrClosed = errors.New("stream: 流已关闭")
)

// Stream 字节流
type Stream interface {
	// Write 写入全部数据，不支持短写
	Write(data []byte) error
	// Read 最多读取len(p)字节；eof表示读取后流中已无更多数据
	// len(p)为0时不读取，eof始终为false
	Read(p []byte) (n int, eof bool, err error)
	// Peek 查看当前读位置之后第offset个字节，不移动读位置；越过末尾时返回io.EOF
	Peek(offset int) (byte, error)
	// Reset 将流恢复到初始位置
	Reset() error
	Close() error
}

// Seekable 支持随机定位的流
type Seekable interface {
	Stream
	Seek(offset int64) error
	Length() (int64, error)
}
