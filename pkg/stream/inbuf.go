package stream

import (
	"io"

	"github.com/pkg/errors"
)

// InBuf 调用方缓冲区上的只读流，不复制数据
type InBuf struct {
	buf []byte
	pos int
}

var _ Stream = (*InBuf)(nil)

// NewInBuf 在buf上创建只读流
func NewInBuf(buf []byte) *InBuf {
	return &InBuf{buf: buf}
}

// Write 只读流不支持写入
func (s *InBuf) Write([]byte) error {
	return errors.Wrap(ErrUnsupportedConfiguration, "输入缓冲流不可写")
}

func (s *InBuf) Read(p []byte) (int, bool, error) {
	if len(p) == 0 {
		return 0, false, nil
	}
	n := copy(p, s.buf[s.pos:])
	s.pos += n
	return n, s.pos == len(s.buf), nil
}

func (s *InBuf) Peek(offset int) (byte, error) {
	idx := s.pos + offset
	if offset < 0 || idx >= len(s.buf) {
		return 0, io.EOF
	}
	return s.buf[idx], nil
}

// Reset 回到缓冲区开头
func (s *InBuf) Reset() error {
	s.pos = 0
	return nil
}

// Remaining 尚未读取的字节数
func (s *InBuf) Remaining() int {
	return len(s.buf) - s.pos
}

func (s *InBuf) Close() error {
	s.buf = nil
	s.pos = 0
	return nil
}
