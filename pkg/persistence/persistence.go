// 提供对称的存储/恢复上下文：同一段代码在存储方向写出字段，在恢复方向读回字段
// 所有整数均为大端序
package persistence

import (
	"encoding/binary"

	"github.com/junbin-yang/coapkit-go/pkg/coap"
	"github.com/junbin-yang/coapkit-go/pkg/stream"
	"github.com/pkg/errors"
)

var (
	// ErrUnexpectedEOF 恢复时流提前结束
	ErrUnexpectedEOF = errors.New("persistence: 数据意外结束")
	// ErrInvalidLength 恢复出的长度字段不合理
	ErrInvalidLength = errors.New("persistence: 无效的长度")
)

// MaxBytesLength 恢复变长字段时允许的最大长度
const MaxBytesLength = 16 << 20

// Direction 上下文方向
type Direction uint8

const (
	Store Direction = iota
	Restore
)

func (d Direction) String() string {
	if d == Store {
		return "store"
	}
	return "restore"
}

// Context 持久化上下文，绑定一个流和方向
type Context struct {
	dir Direction
	s   stream.Stream
}

// NewStoreContext 创建写出到s的上下文
func NewStoreContext(s stream.Stream) *Context {
	return &Context{dir: Store, s: s}
}

// NewRestoreContext 创建从s读回的上下文
func NewRestoreContext(s stream.Stream) *Context {
	return &Context{dir: Restore, s: s}
}

func (c *Context) Direction() Direction { return c.dir }

// WriteFull 写出全部数据（仅存储方向）
func (c *Context) WriteFull(data []byte) error {
	return c.s.Write(data)
}

// ReadFull 读满p，数据不足时返回ErrUnexpectedEOF（仅恢复方向）
func (c *Context) ReadFull(p []byte) error {
	for off := 0; off < len(p); {
		n, eof, err := c.s.Read(p[off:])
		if err != nil {
			return err
		}
		off += n
		if off < len(p) && (eof || n == 0) {
			return errors.Wrapf(ErrUnexpectedEOF, "需要%d字节，仅读到%d字节", len(p), off)
		}
	}
	return nil
}

func (c *Context) fixed(buf []byte) error {
	if c.dir == Store {
		return c.WriteFull(buf)
	}
	return c.ReadFull(buf)
}

// U8 存储或恢复一个字节
func (c *Context) U8(v *uint8) error {
	buf := []byte{*v}
	if err := c.fixed(buf); err != nil {
		return err
	}
	*v = buf[0]
	return nil
}

// U16 存储或恢复大端序uint16
func (c *Context) U16(v *uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], *v)
	if err := c.fixed(buf[:]); err != nil {
		return err
	}
	*v = binary.BigEndian.Uint16(buf[:])
	return nil
}

// U32 存储或恢复大端序uint32
func (c *Context) U32(v *uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], *v)
	if err := c.fixed(buf[:]); err != nil {
		return err
	}
	*v = binary.BigEndian.Uint32(buf[:])
	return nil
}

// I32 存储或恢复大端序int32（补码）
func (c *Context) I32(v *int32) error {
	u := uint32(*v)
	if err := c.U32(&u); err != nil {
		return err
	}
	*v = int32(u)
	return nil
}

// Bool 以单字节存储布尔值
func (c *Context) Bool(v *bool) error {
	var b uint8
	if *v {
		b = 1
	}
	if err := c.U8(&b); err != nil {
		return err
	}
	*v = b != 0
	return nil
}

// RawBytes 存储或恢复固定长度n的数据，不写长度
func (c *Context) RawBytes(v *[]byte, n int) error {
	if c.dir == Store {
		if len(*v) != n {
			return errors.Wrapf(ErrInvalidLength, "期望%d字节，实际%d字节", n, len(*v))
		}
		return c.WriteFull(*v)
	}
	if n < 0 || n > MaxBytesLength {
		return errors.Wrapf(ErrInvalidLength, "%d", n)
	}
	buf := make([]byte, n)
	if err := c.ReadFull(buf); err != nil {
		return err
	}
	*v = buf
	return nil
}

// Bytes 存储或恢复u32长度前缀的数据
func (c *Context) Bytes(v *[]byte) error {
	n := uint32(len(*v))
	if err := c.U32(&n); err != nil {
		return err
	}
	if n > MaxBytesLength {
		return errors.Wrapf(ErrInvalidLength, "%d", n)
	}
	return c.RawBytes(v, int(n))
}

// String 存储或恢复u32长度前缀的字符串
func (c *Context) String(v *string) error {
	b := []byte(*v)
	if err := c.Bytes(&b); err != nil {
		return err
	}
	*v = string(b)
	return nil
}

// Message 存储或恢复一条已编码的CoAP消息
// 只保存线上字节，恢复时重新补长度前缀，因此持久化数据与主机字节序无关
func (c *Context) Message(m *coap.Message) error {
	datagram := m.Datagram()
	if err := c.Bytes(&datagram); err != nil {
		return err
	}
	if c.dir == Store {
		return nil
	}
	msg, err := coap.WrapDatagram(datagram)
	if err != nil {
		return errors.WithMessage(err, "恢复消息失败")
	}
	*m = msg
	return nil
}
