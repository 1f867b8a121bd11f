package stream

import "io"

// MemBuf 可增长的内存流：写入追加到末尾，读取从读位置开始
type MemBuf struct {
	data   []byte
	rpos   int
	closed bool
}

var _ Stream = (*MemBuf)(nil)

// NewMemBuf 创建内存流，capacity为初始容量
func NewMemBuf(capacity int) *MemBuf {
	return &MemBuf{data: make([]byte, 0, capacity)}
}

func (m *MemBuf) Write(data []byte) error {
	if m.closed {
		return ErrClosed
	}
	m.data = append(m.data, data...)
	return nil
}

func (m *MemBuf) Read(p []byte) (int, bool, error) {
	if m.closed {
		return 0, false, ErrClosed
	}
	if len(p) == 0 {
		return 0, false, nil
	}
	n := copy(p, m.data[m.rpos:])
	m.rpos += n
	return n, m.rpos == len(m.data), nil
}

func (m *MemBuf) Peek(offset int) (byte, error) {
	if m.closed {
		return 0, ErrClosed
	}
	idx := m.rpos + offset
	if offset < 0 || idx >= len(m.data) {
		return 0, io.EOF
	}
	return m.data[idx], nil
}

// Reset 清空内容，保留已分配的容量
func (m *MemBuf) Reset() error {
	if m.closed {
		return ErrClosed
	}
	m.data = m.data[:0]
	m.rpos = 0
	return nil
}

// Len 尚未读取的字节数
func (m *MemBuf) Len() int {
	return len(m.data) - m.rpos
}

// Bytes 尚未读取的数据（与流共享内存）
func (m *MemBuf) Bytes() []byte {
	return m.data[m.rpos:]
}

// TakeOwnership 取走尚未读取的数据，流随后为空
func (m *MemBuf) TakeOwnership() []byte {
	out := m.data[m.rpos:]
	m.data = nil
	m.rpos = 0
	return out
}

func (m *MemBuf) Close() error {
	m.closed = true
	m.data = nil
	return nil
}
