// 提供CoAP消息（RFC 7252）的描述、尺寸计算与基于调用方缓冲区的编码功能
package coap

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// CoAP消息格式相关常量
const (
	// Version1 CoAP协议版本（仅支持v1）
	Version1 = 1

	// HeaderSize 固定头部长度：版本/类型/令牌长度(1) + 消息码(1) + 消息ID(2)
	HeaderSize = 4

	// MaxTokenLength 令牌最大长度（RFC 7252限制为8字节）
	MaxTokenLength = 8

	// LengthPrefixSize 编码结果前的长度前缀（主机字节序uint32），不计入线上数据
	LengthPrefixSize = 4

	// PayloadMarker 负载分隔符（固定为0xFF）：选项与负载的边界
	PayloadMarker = 0xFF

	// MaxOptionValueLength 单个选项值的最大长度
	MaxOptionValueLength = 0xFFFF
)

// MessageType 表示CoAP消息类型（头部中的2位字段）
type MessageType uint8

const (
	TypeConfirmable    MessageType = 0 // 确认型消息（CON）
	TypeNonConfirmable MessageType = 1 // 非确认型消息（NON）
	TypeAcknowledgment MessageType = 2 // 确认消息（ACK）
	TypeReset          MessageType = 3 // 重置消息（RST）
)

func (t MessageType) String() string {
	switch t {
	case TypeConfirmable:
		return "CON"
	case TypeNonConfirmable:
		return "NON"
	case TypeAcknowledgment:
		return "ACK"
	case TypeReset:
		return "RST"
	}
	return fmt.Sprintf("TYPE(%d)", uint8(t))
}

// ParseMessageType 解析消息类型名称（CON/NON/ACK/RST，不区分大小写）
func ParseMessageType(s string) (MessageType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CON", "CONFIRMABLE":
		return TypeConfirmable, nil
	case "NON", "NON-CONFIRMABLE":
		return TypeNonConfirmable, nil
	case "ACK", "ACKNOWLEDGMENT":
		return TypeAcknowledgment, nil
	case "RST", "RESET":
		return TypeReset, nil
	}
	return 0, errors.Wrapf(ErrInvalidType, "未知的消息类型: %q", s)
}

// CoAP标准选项号（RFC 7252 / RFC 7641 / RFC 7959）
const (
	OptionIfMatch       = 1
	OptionUriHost       = 3
	OptionETag          = 4
	OptionIfNoneMatch   = 5
	OptionObserve       = 6
	OptionUriPort       = 7
	OptionLocationPath  = 8
	OptionUriPath       = 11
	OptionContentFormat = 12 // Content-Format：OptContentFormat使用的保留选项号
	OptionMaxAge        = 14
	OptionUriQuery      = 15
	OptionAccept        = 17
	OptionLocationQuery = 20
	OptionBlock2        = 23
	OptionBlock1        = 27
	OptionSize2         = 28
	OptionProxyUri      = 35
	OptionProxyScheme   = 39
	OptionSize1         = 60
)

// 负载数据格式编码（RFC 7252及LwM2M扩展）
const (
	ContentFormatText        uint16 = 0
	ContentFormatLinkFormat  uint16 = 40
	ContentFormatXML         uint16 = 41
	ContentFormatOctetStream uint16 = 42
	ContentFormatExi         uint16 = 47
	ContentFormatJSON        uint16 = 50
	ContentFormatCBOR        uint16 = 60
	ContentFormatSenMLJSON   uint16 = 110
	ContentFormatSenMLCBOR   uint16 = 112
	ContentFormatTLV         uint16 = 11542 // LwM2M TLV
	ContentFormatLwM2MJSON   uint16 = 11543

	// ContentFormatNone 表示"无内容格式"，OptContentFormat遇到该值不添加选项
	ContentFormatNone uint16 = 0xFFFF
)
