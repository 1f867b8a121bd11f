package coap

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Message 已编码消息的只读视图：4字节长度前缀 + 头部 + 令牌 + 选项 + [0xFF + 负载]
// 视图借用底层缓冲区，不复制数据；Options/Payload返回的切片同样指向该缓冲区。
// 视图覆盖整个缓冲区，有效范围每次按当前长度前缀计算，因此构建器继续追加负载后，
// 之前取得的视图同样反映最新内容。
type Message struct {
	raw []byte
}

// ParseMessage 将带长度前缀的已编码数据包装为视图，并校验其结构
func ParseMessage(data []byte) (Message, error) {
	if len(data) < LengthPrefixSize+HeaderSize {
		return Message{}, errors.Wrapf(ErrMalformedMessage, "数据过短: %d字节", len(data))
	}
	length := int(binary.NativeEndian.Uint32(data))
	if length < HeaderSize || length > len(data)-LengthPrefixSize {
		return Message{}, errors.Wrapf(ErrMalformedMessage, "长度前缀%d与数据长度%d不符", length, len(data))
	}

	m := Message{raw: data[: LengthPrefixSize+length : LengthPrefixSize+length]}
	if v := m.Version(); v != Version1 {
		return Message{}, errors.Wrapf(ErrMalformedMessage, "不支持的协议版本: %d", v)
	}
	if tkl := m.TokenLength(); tkl > MaxTokenLength || HeaderSize+tkl > length {
		return Message{}, errors.Wrapf(ErrMalformedMessage, "无效的令牌长度: %d", tkl)
	}
	if _, err := m.Options(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// WrapDatagram 为线上收到的数据报补上长度前缀并复制到新的对齐缓冲区，再按ParseMessage校验
func WrapDatagram(datagram []byte) (Message, error) {
	buf := NewAlignedBuffer(LengthPrefixSize + len(datagram))
	binary.NativeEndian.PutUint32(buf, uint32(len(datagram)))
	copy(buf[LengthPrefixSize:], datagram)
	return ParseMessage(buf)
}

// IsZero 视图是否为空（例如构建器尚未初始化）
func (m Message) IsZero() bool {
	return len(m.Bytes()) < LengthPrefixSize+HeaderSize
}

// Length 长度前缀的值：头部、令牌、选项、分隔符和负载的总字节数
func (m Message) Length() uint32 {
	if len(m.raw) < LengthPrefixSize {
		return 0
	}
	return binary.NativeEndian.Uint32(m.raw)
}

// Bytes 返回包含长度前缀的完整字节
func (m Message) Bytes() []byte {
	n := LengthPrefixSize + int(m.Length())
	if n > len(m.raw) {
		n = len(m.raw)
	}
	return m.raw[:n:n]
}

// Datagram 返回不含长度前缀的线上字节（可直接作为UDP数据报发送）
func (m Message) Datagram() []byte {
	if m.IsZero() {
		return nil
	}
	return m.Bytes()[LengthPrefixSize:]
}

func (m Message) header() []byte {
	if m.IsZero() {
		return make([]byte, HeaderSize)
	}
	return m.Datagram()[:HeaderSize]
}

// Version 协议版本
func (m Message) Version() uint8 { return m.header()[0] >> 6 }

// Type 消息类型
func (m Message) Type() MessageType { return MessageType(m.header()[0] >> 4 & 0x03) }

// TokenLength 头部中的令牌长度字段
func (m Message) TokenLength() int { return int(m.header()[0] & 0x0F) }

// Code 消息码
func (m Message) Code() Code { return Code(m.header()[1]) }

// MessageID 消息ID（网络字节序解码）
func (m Message) MessageID() uint16 { return binary.BigEndian.Uint16(m.header()[2:]) }

// Token 令牌
func (m Message) Token() []byte {
	d := m.Datagram()
	tkl := m.TokenLength()
	if len(d) < HeaderSize+tkl {
		return nil
	}
	return d[HeaderSize : HeaderSize+tkl]
}

// Identity 消息标识（令牌为视图的副本）
func (m Message) Identity() Identity {
	return Identity{
		MessageID: m.MessageID(),
		Token:     append([]byte(nil), m.Token()...),
	}
}

// Options 按编码顺序返回全部选项
func (m Message) Options() ([]Option, error) {
	var options []Option
	it := m.Iterate()
	for it.Next() {
		options = append(options, it.Option())
	}
	return options, it.Err()
}

// Option 返回第一个指定选项号的选项值
func (m Message) Option(number uint16) ([]byte, error) {
	it := m.Iterate()
	for it.Next() {
		opt := it.Option()
		if opt.Number == number {
			return opt.Value, nil
		}
		if opt.Number > number {
			break
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return nil, errors.Wrapf(ErrOptionNotFound, "选项%d", number)
}

// Uint 将指定选项的值按大端序整数解码
func (m Message) Uint(number uint16) (uint64, error) {
	v, err := m.Option(number)
	if err != nil {
		return 0, err
	}
	return DecodeUint(v)
}

// ContentFormat 返回Content-Format选项；不存在时返回ContentFormatNone
func (m Message) ContentFormat() (uint16, error) {
	v, err := m.Uint(OptionContentFormat)
	if errors.Is(err, ErrOptionNotFound) {
		return ContentFormatNone, nil
	}
	if err != nil {
		return 0, err
	}
	if v > 0xFFFF {
		return 0, errors.Wrapf(ErrMalformedMessage, "Content-Format值%d超出范围", v)
	}
	return uint16(v), nil
}

// Payload 返回负载（不含分隔符），无负载时返回nil
func (m Message) Payload() []byte {
	it := m.Iterate()
	for it.Next() {
	}
	if it.Err() != nil {
		return nil
	}
	return it.payload
}

func (m Message) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s mid=%d token=%x", m.Type(), m.Code(), m.MessageID(), m.Token())
	options, err := m.Options()
	for _, opt := range options {
		fmt.Fprintf(&sb, " opt(%d)=%x", opt.Number, opt.Value)
	}
	if err != nil {
		fmt.Fprintf(&sb, " <%v>", err)
	}
	if p := m.Payload(); len(p) > 0 {
		fmt.Fprintf(&sb, " payload=%d字节", len(p))
	}
	return sb.String()
}

// OptionIterator 按编码顺序遍历消息中的选项
type OptionIterator struct {
	data    []byte // 选项起始处到消息末尾
	pos     int
	prev    uint32
	cur     Option
	payload []byte
	err     error
	done    bool
}

// Iterate 返回选项遍历器
func (m Message) Iterate() *OptionIterator {
	d := m.Datagram()
	start := HeaderSize + m.TokenLength()
	if start > len(d) {
		return &OptionIterator{
			err:  errors.Wrap(ErrMalformedMessage, "令牌超出消息长度"),
			done: true,
		}
	}
	return &OptionIterator{data: d[start:]}
}

// Next 前进到下一个选项；遇到负载分隔符、数据结束或错误时返回false
func (it *OptionIterator) Next() bool {
	if it.done {
		return false
	}
	if it.pos >= len(it.data) {
		it.done = true
		return false
	}

	head := it.data[it.pos]
	if head == PayloadMarker {
		it.done = true
		it.payload = it.data[it.pos+1:]
		if len(it.payload) == 0 {
			it.err = errors.Wrap(ErrMalformedMessage, "负载分隔符后没有负载")
		}
		return false
	}

	pos := it.pos + 1
	delta, n, err := readExtended(it.data[pos:], head>>4)
	if err != nil {
		return it.fail(err)
	}
	pos += n
	length, n, err := readExtended(it.data[pos:], head&0x0F)
	if err != nil {
		return it.fail(err)
	}
	pos += n
	if int(length) > len(it.data)-pos {
		return it.fail(errors.Wrapf(ErrMalformedMessage, "选项值长度%d超出消息末尾", length))
	}
	number := it.prev + delta
	if number > 0xFFFF {
		return it.fail(errors.Wrapf(ErrMalformedMessage, "选项号%d超出范围", number))
	}

	it.cur = Option{
		Number: uint16(number),
		Value:  it.data[pos : pos+int(length) : pos+int(length)],
	}
	it.prev = number
	it.pos = pos + int(length)
	return true
}

func (it *OptionIterator) fail(err error) bool {
	it.err = err
	it.done = true
	return false
}

// Option 当前选项
func (it *OptionIterator) Option() Option { return it.cur }

// Err 遍历过程中遇到的错误
func (it *OptionIterator) Err() error { return it.err }
