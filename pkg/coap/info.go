package coap

import (
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Identity 标识一条消息：消息ID（去重）与令牌（请求/响应关联）
type Identity struct {
	MessageID uint16
	Token     []byte // 0-8字节
}

// MsgInfo 待构建消息的描述：头部字段、标识与按追加顺序保存的选项列表
//
// 选项必须按选项号非递减的顺序追加，违反顺序的追加会被立即拒绝。
// 任何追加操作失败时描述保持调用前的状态不变。
// MsgInfo被Builder读取期间不得修改，不支持并发使用。
type MsgInfo struct {
	Type     MessageType
	Code     Code
	Identity Identity

	options []Option
}

// NewMsgInfo 创建空描述：CON类型、0.00消息码、消息ID为0、无令牌、无选项
func NewMsgInfo() *MsgInfo {
	return &MsgInfo{
		Type: TypeConfirmable,
		Code: CodeEmpty,
	}
}

// CreateMsgInfo 创建指定类型、消息码和消息ID的描述
func CreateMsgInfo(messageType MessageType, code Code, messageID uint16) *MsgInfo {
	info := NewMsgInfo()
	info.Type = messageType
	info.Code = code
	info.Identity.MessageID = messageID
	return info
}

// SetToken 设置令牌（复制一份），超过8字节返回ErrTokenTooLong且不修改原令牌
func (i *MsgInfo) SetToken(token []byte) error {
	if len(token) > MaxTokenLength {
		return errors.Wrapf(ErrTokenTooLong, "令牌长度%d（最大支持%d字节）", len(token), MaxTokenLength)
	}
	i.Identity.Token = append([]byte(nil), token...)
	return nil
}

// OptEmpty 追加一个空值选项
func (i *MsgInfo) OptEmpty(number uint16) error {
	return i.appendOption(number, nil)
}

// OptOpaque 追加一个不透明字节选项（值被复制）
func (i *MsgInfo) OptOpaque(number uint16, value []byte) error {
	if len(value) > MaxOptionValueLength {
		return errors.Wrapf(ErrOptionTooLarge, "选项%d的值长度%d超过上限%d", number, len(value), MaxOptionValueLength)
	}
	return i.appendOption(number, value)
}

// OptUint 以固定宽度width（1/2/4/8字节，大端序）追加整数选项，不裁剪前导零
func (i *MsgInfo) OptUint(number uint16, value uint64, width int) error {
	var buf [8]byte
	if !validWidth(width) {
		return errors.Wrapf(ErrInvalidWidth, "选项%d的宽度%d", number, width)
	}
	if err := EncodeUint(buf[:width], value, width); err != nil {
		return errors.WithMessagef(err, "选项%d", number)
	}
	return i.appendOption(number, buf[:width])
}

// OptU16 追加2字节整数选项
func (i *MsgInfo) OptU16(number uint16, value uint16) error {
	return i.OptUint(number, uint64(value), 2)
}

// OptU32 追加4字节整数选项
func (i *MsgInfo) OptU32(number uint16, value uint32) error {
	return i.OptUint(number, uint64(value), 4)
}

// OptString 追加UTF-8字符串选项
func (i *MsgInfo) OptString(number uint16, text string) error {
	if len(text) > MaxOptionValueLength {
		return errors.Wrapf(ErrValueTooLong, "选项%d的字符串长度%d超过上限%d", number, len(text), MaxOptionValueLength)
	}
	if !utf8.ValidString(text) {
		return errors.Wrapf(ErrInvalidString, "选项%d", number)
	}
	return i.appendOption(number, []byte(text))
}

// OptContentFormat 追加Content-Format选项，按最小宽度（1或2字节）编码
// format为ContentFormatNone时不添加任何选项
func (i *MsgInfo) OptContentFormat(format uint16) error {
	if format == ContentFormatNone {
		return nil
	}
	return i.OptUint(OptionContentFormat, uint64(format), MinimalUintWidth(uint64(format)))
}

// appendOption 校验顺序和编码范围后追加选项；失败时不修改描述
func (i *MsgInfo) appendOption(number uint16, value []byte) error {
	var prev uint16
	if n := len(i.options); n > 0 {
		prev = i.options[n-1].Number
	}
	if number < prev {
		return errors.Wrapf(ErrInvalidOptionOrder, "选项%d位于选项%d之后", number, prev)
	}
	if _, err := optionSize(uint32(number-prev), uint32(len(value))); err != nil {
		return errors.WithMessagef(err, "选项%d", number)
	}

	i.options = append(i.options, Option{
		Number: number,
		Value:  append(make([]byte, 0, len(value)), value...),
	})
	return nil
}

// Options 返回选项列表的深拷贝（按追加顺序），修改返回值不影响描述
func (i *MsgInfo) Options() []Option {
	options := make([]Option, len(i.options))
	for k, opt := range i.options {
		options[k] = Option{
			Number: opt.Number,
			Value:  append(make([]byte, 0, len(opt.Value)), opt.Value...),
		}
	}
	return options
}

// OptionCount 返回已追加的选项数量
func (i *MsgInfo) OptionCount() int {
	return len(i.options)
}

// Reset 将描述恢复为NewMsgInfo的初始状态，释放选项列表以便复用
func (i *MsgInfo) Reset() {
	*i = MsgInfo{
		Type: TypeConfirmable,
		Code: CodeEmpty,
	}
}

// StorageSize 计算头部+令牌+选项编码后的字节数
// 不包含长度前缀、负载分隔符和负载（负载通过Builder.Payload另行写入）
func (i *MsgInfo) StorageSize() int {
	size := HeaderSize + len(i.Identity.Token)
	var prev uint16
	for _, opt := range i.options {
		// 追加时已校验范围，这里不会出错
		n, _ := optionSize(uint32(opt.Number-prev), uint32(len(opt.Value)))
		size += n
		prev = opt.Number
	}
	return size
}

// BufferSize 计算容纳完整消息所需的缓冲区大小：长度前缀 + StorageSize + 负载分隔符 + 负载
func BufferSize(info *MsgInfo, payloadLen int) int {
	size := LengthPrefixSize + info.StorageSize()
	if payloadLen > 0 {
		size += 1 + payloadLen
	}
	return size
}

// validateHeader 校验头部字段（类型范围、令牌长度）
func (i *MsgInfo) validateHeader() error {
	if i.Type > TypeReset {
		return errors.Wrapf(ErrInvalidType, "类型%d（仅支持0-3）", i.Type)
	}
	if len(i.Identity.Token) > MaxTokenLength {
		return errors.Wrapf(ErrTokenTooLong, "令牌长度%d（最大支持%d字节）", len(i.Identity.Token), MaxTokenLength)
	}
	return nil
}
