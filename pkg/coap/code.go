package coap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Code 表示CoAP消息码：高3位为类别（class），低5位为细节（detail），文本形式为"c.dd"
type Code uint8

// NewCode 由类别和细节组合消息码
func NewCode(class, detail uint8) Code {
	return Code((class&0x07)<<5 | detail&0x1F)
}

// 常用消息码
const (
	CodeEmpty  Code = 0x00 // 0.00
	CodeGet    Code = 0x01 // 0.01
	CodePost   Code = 0x02 // 0.02
	CodePut    Code = 0x03 // 0.03
	CodeDelete Code = 0x04 // 0.04

	CodeCreated  Code = 0x41 // 2.01
	CodeDeleted  Code = 0x42 // 2.02
	CodeValid    Code = 0x43 // 2.03
	CodeChanged  Code = 0x44 // 2.04
	CodeContent  Code = 0x45 // 2.05
	CodeContinue Code = 0x5F // 2.31

	CodeBadRequest               Code = 0x80 // 4.00
	CodeUnauthorized             Code = 0x81 // 4.01
	CodeBadOption                Code = 0x82 // 4.02
	CodeForbidden                Code = 0x83 // 4.03
	CodeNotFound                 Code = 0x84 // 4.04
	CodeMethodNotAllowed         Code = 0x85 // 4.05
	CodeNotAcceptable            Code = 0x86 // 4.06
	CodeRequestEntityIncomplete  Code = 0x88 // 4.08
	CodePreconditionFailed       Code = 0x8C // 4.12
	CodeRequestEntityTooLarge    Code = 0x8D // 4.13
	CodeUnsupportedContentFormat Code = 0x8F // 4.15

	CodeInternalServerError Code = 0xA0 // 5.00
	CodeNotImplemented      Code = 0xA1 // 5.01
	CodeBadGateway          Code = 0xA2 // 5.02
	CodeServiceUnavailable  Code = 0xA3 // 5.03
	CodeGatewayTimeout      Code = 0xA4 // 5.04
)

var methodNames = map[string]Code{
	"GET":    CodeGet,
	"POST":   CodePost,
	"PUT":    CodePut,
	"DELETE": CodeDelete,
	"EMPTY":  CodeEmpty,
}

// Class 返回消息码类别（0-7）
func (c Code) Class() uint8 { return uint8(c) >> 5 }

// Detail 返回消息码细节（0-31）
func (c Code) Detail() uint8 { return uint8(c) & 0x1F }

// IsRequest 类别为0且非空消息时为请求
func (c Code) IsRequest() bool { return c.Class() == 0 && c != CodeEmpty }

func (c Code) String() string {
	return fmt.Sprintf("%d.%02d", c.Class(), c.Detail())
}

// ParseCode 解析消息码，支持"2.05"形式、方法名（GET/POST/PUT/DELETE）和十进制数值
func ParseCode(s string) (Code, error) {
	s = strings.TrimSpace(s)
	if c, ok := methodNames[strings.ToUpper(s)]; ok {
		return c, nil
	}

	if class, detail, ok := strings.Cut(s, "."); ok {
		cl, err := strconv.ParseUint(class, 10, 8)
		if err != nil || cl > 7 {
			return 0, errors.Errorf("无效的消息码类别: %q", s)
		}
		dt, err := strconv.ParseUint(detail, 10, 8)
		if err != nil || dt > 31 {
			return 0, errors.Errorf("无效的消息码细节: %q", s)
		}
		return NewCode(uint8(cl), uint8(dt)), nil
	}

	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, errors.Errorf("无效的消息码: %q", s)
	}
	return Code(v), nil
}
