package coap

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// BuilderState 构建器状态
type BuilderState uint8

// 没有单独的结束状态：Message可重复调用且不影响后续Payload，
// 因此“已完成”只是AcceptingPayload下取得视图的时刻
const (
	// StateEmpty 尚未调用Init
	StateEmpty BuilderState = iota
	// StateAcceptingPayload 头部、令牌和选项已写入，可继续追加负载或随时获取消息视图
	StateAcceptingPayload
)

// Builder 在调用方提供的缓冲区中一次写入头部、令牌和全部选项，随后接受零个或多个负载分片
//
// 缓冲区始终归调用方所有，Builder既不扩容也不释放它；返回的Message是同一块内存上的视图，
// 其有效期与缓冲区一致。一个缓冲区同一时间只能由一个Builder写入。
type Builder struct {
	buf            []byte
	pos            int  // 下一个写入位置（含长度前缀）
	payloadStarted bool // 是否已写入负载分隔符
	state          BuilderState
}

// NewBuilder 创建构建器并立即调用Init
func NewBuilder(buf []byte, info *MsgInfo) (*Builder, error) {
	b := &Builder{}
	if err := b.Init(buf, info); err != nil {
		return nil, err
	}
	return b, nil
}

// Init 将长度前缀占位、头部、令牌和全部选项写入buf，之后进入StateAcceptingPayload
//
// buf的起始地址必须满足MessageAlignment（参见EnsureAlignedBuffer），否则视为调用方错误并panic。
// len(buf)小于LengthPrefixSize+info.StorageSize()时返回ErrBufferTooSmall，且不写入任何字节。
func (b *Builder) Init(buf []byte, info *MsgInfo) error {
	if info == nil {
		return ErrNilMsgInfo
	}
	if !IsAligned(buf) {
		panic("coap: 缓冲区未按MessageAlignment对齐")
	}
	if err := info.validateHeader(); err != nil {
		return err
	}

	need := LengthPrefixSize + info.StorageSize()
	if len(buf) < need {
		return errors.Wrapf(ErrBufferTooSmall, "需要%d字节，实际%d字节", need, len(buf))
	}

	pos := LengthPrefixSize
	token := info.Identity.Token

	// 版本(2位) | 类型(2位) | 令牌长度(4位)
	buf[pos] = Version1<<6 | byte(info.Type&0x03)<<4 | byte(len(token))&0x0F
	buf[pos+1] = byte(info.Code)
	binary.BigEndian.PutUint16(buf[pos+2:], info.Identity.MessageID)
	pos += HeaderSize
	pos += copy(buf[pos:], token)

	var prev uint16
	for _, opt := range info.options {
		pos += putOption(buf[pos:], uint32(opt.Number-prev), opt.Value)
		prev = opt.Number
	}

	*b = Builder{
		buf:   buf,
		pos:   pos,
		state: StateAcceptingPayload,
	}
	b.writeLength()
	return nil
}

// Payload 追加一段负载，返回写入的负载字节数（不含分隔符）
//
// 第一次传入非空分片时先写入唯一的0xFF分隔符；在此之前的空分片不写入任何内容并返回0。
// 每次调用要么完整写入分片，要么返回ErrBufferTooSmall且不写入任何字节；之前成功写入的内容保持不变。
func (b *Builder) Payload(chunk []byte) (int, error) {
	if b.state != StateAcceptingPayload {
		return 0, ErrBuilderNotInitialized
	}
	if len(chunk) == 0 {
		return 0, nil
	}

	need := len(chunk)
	if !b.payloadStarted {
		need++
	}
	if remaining := len(b.buf) - b.pos; need > remaining {
		return 0, errors.Wrapf(ErrBufferTooSmall, "负载需要%d字节，剩余%d字节", need, remaining)
	}

	if !b.payloadStarted {
		b.buf[b.pos] = PayloadMarker
		b.pos++
		b.payloadStarted = true
	}
	b.pos += copy(b.buf[b.pos:], chunk)
	b.writeLength()
	return len(chunk), nil
}

// Message 更新长度前缀并返回缓冲区上的只读消息视图
// 可重复调用，调用后仍可继续Payload；先前返回的视图随长度前缀一起更新
func (b *Builder) Message() Message {
	if b.state != StateAcceptingPayload {
		return Message{}
	}
	b.writeLength()
	return Message{raw: b.buf}
}

// Remaining 返回缓冲区剩余可写字节数
func (b *Builder) Remaining() int {
	return len(b.buf) - b.pos
}

// State 返回当前状态
func (b *Builder) State() BuilderState {
	return b.state
}

// PayloadStarted 是否已写入负载分隔符
func (b *Builder) PayloadStarted() bool {
	return b.payloadStarted
}

func (b *Builder) writeLength() {
	binary.NativeEndian.PutUint32(b.buf, uint32(b.pos-LengthPrefixSize))
}

// BuildWithoutPayload 一次性构建不含负载的消息，等价于Init后立即获取视图
func BuildWithoutPayload(buf []byte, info *MsgInfo) (Message, error) {
	var b Builder
	if err := b.Init(buf, info); err != nil {
		return Message{}, err
	}
	return b.Message(), nil
}
