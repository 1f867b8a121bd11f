package stream

import (
	"io"
	"os"
	"syscall"

	"github.com/junbin-yang/coapkit-go/pkg/utils/logger"
	"github.com/pkg/errors"
)

// Mode 文件流打开模式，可按位组合
type Mode uint8

const (
	ModeRead Mode = 1 << iota
	ModeWrite
)

func (m Mode) flags() (int, bool) {
	switch m {
	case ModeRead:
		return os.O_RDONLY, true
	case ModeWrite:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, true
	case ModeRead | ModeWrite:
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, true
	}
	return 0, false
}

// File 基于操作系统文件的流
// 只读模式要求文件已存在；写模式会创建或截断文件
type File struct {
	f    *os.File
	path string
	mode Mode
}

var _ Seekable = (*File)(nil)

// OpenFile 以指定模式打开文件流
func OpenFile(path string, mode Mode) (*File, error) {
	flag, ok := mode.flags()
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedConfiguration, "无效的文件模式: %#x", uint8(mode))
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "打开文件流失败")
	}
	logger.Debug("打开文件流", logger.String("path", path), logger.Int("mode", int(mode)))
	return &File{f: f, path: path, mode: mode}, nil
}

func (s *File) Write(data []byte) error {
	if s.f == nil {
		return ErrClosed
	}
	if s.mode&ModeWrite == 0 {
		return &os.PathError{Op: "write", Path: s.path, Err: syscall.EBADF}
	}
	if len(data) == 0 {
		return nil
	}
	_, err := s.f.Write(data)
	return err
}

func (s *File) Read(p []byte) (int, bool, error) {
	if s.f == nil {
		return 0, false, ErrClosed
	}
	if s.mode&ModeRead == 0 {
		return 0, false, &os.PathError{Op: "read", Path: s.path, Err: syscall.EBADF}
	}
	if len(p) == 0 {
		return 0, false, nil
	}
	n, err := io.ReadFull(s.f, p)
	switch {
	case err == io.EOF, err == io.ErrUnexpectedEOF:
		return n, true, nil
	case err != nil:
		return n, false, err
	}
	return n, false, nil
}

func (s *File) Peek(offset int) (byte, error) {
	if s.f == nil {
		return 0, ErrClosed
	}
	if offset < 0 {
		return 0, errors.Errorf("stream: 无效的偏移量%d", offset)
	}
	pos, err := s.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	var b [1]byte
	if _, err := s.f.ReadAt(b[:], pos+int64(offset)); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Reset 回到文件开头
func (s *File) Reset() error {
	return s.Seek(0)
}

// Seek 定位到距文件开头offset字节处，允许超过文件末尾
func (s *File) Seek(offset int64) error {
	if s.f == nil {
		return ErrClosed
	}
	_, err := s.f.Seek(offset, io.SeekStart)
	return err
}

// Length 文件当前长度
func (s *File) Length() (int64, error) {
	if s.f == nil {
		return 0, ErrClosed
	}
	fi, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (s *File) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	logger.Debug("关闭文件流", logger.String("path", s.path))
	return err
}
