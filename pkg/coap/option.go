package coap

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// 选项delta/长度的扩展编码阈值（RFC 7252 3.1节）
// - 0..12：直接存入4位半字节
// - 13..268：半字节存13，扩展1字节存（值-13）
// - 269..65804：半字节存14，扩展2字节存（值-269，大端序）
// - 半字节15为保留值（与负载分隔符冲突）
const (
	extendedBase8    = 13
	extendedBase16   = 269
	nibbleExtended8  = 13
	nibbleExtended16 = 14
	nibbleReserved   = 15

	// maxExtendedValue 两字节扩展能表示的最大值
	maxExtendedValue = extendedBase16 + 0xFFFF
)

// Option 表示一个CoAP选项（选项号+选项值）
type Option struct {
	Number uint16 // 选项号（对应OptionXXX常量）
	Value  []byte // 选项值（不透明字节）
}

// extendedSize 计算delta或长度所需的扩展字节数
func extendedSize(v uint32) (int, error) {
	switch {
	case v < extendedBase8:
		return 0, nil
	case v < extendedBase16:
		return 1, nil
	case v <= maxExtendedValue:
		return 2, nil
	}
	return 0, errors.Wrapf(ErrOptionTooLarge, "数值%d超过扩展编码上限%d", v, maxExtendedValue)
}

// optionSize 计算一个选项的编码长度：1字节头 + 扩展delta + 扩展长度 + 值
func optionSize(delta, length uint32) (int, error) {
	deltaExt, err := extendedSize(delta)
	if err != nil {
		return 0, errors.WithMessage(err, "选项delta")
	}
	lengthExt, err := extendedSize(length)
	if err != nil {
		return 0, errors.WithMessage(err, "选项长度")
	}
	return 1 + deltaExt + lengthExt + int(length), nil
}

func nibble(v uint32) byte {
	switch {
	case v < extendedBase8:
		return byte(v)
	case v < extendedBase16:
		return nibbleExtended8
	}
	return nibbleExtended16
}

// putExtended 写入扩展字段，返回写入的字节数
func putExtended(dst []byte, v uint32) int {
	switch {
	case v < extendedBase8:
		return 0
	case v < extendedBase16:
		dst[0] = byte(v - extendedBase8)
		return 1
	}
	binary.BigEndian.PutUint16(dst, uint16(v-extendedBase16))
	return 2
}

// putOption 将选项直接写入dst（调用方已保证空间足够且delta/长度合法），返回写入的字节数
// 布局：头字节(delta半字节<<4 | 长度半字节) + 扩展delta + 扩展长度 + 值
func putOption(dst []byte, delta uint32, value []byte) int {
	length := uint32(len(value))
	dst[0] = nibble(delta)<<4 | nibble(length)
	n := 1
	n += putExtended(dst[n:], delta)
	n += putExtended(dst[n:], length)
	n += copy(dst[n:], value)
	return n
}

// readExtended 根据半字节读取实际的delta或长度，返回数值和消耗的字节数
func readExtended(data []byte, base byte) (uint32, int, error) {
	switch base {
	case nibbleExtended8:
		if len(data) < 1 {
			return 0, 0, errors.WithMessage(ErrMalformedMessage, "扩展字段被截断")
		}
		return uint32(data[0]) + extendedBase8, 1, nil
	case nibbleExtended16:
		if len(data) < 2 {
			return 0, 0, errors.WithMessage(ErrMalformedMessage, "扩展字段被截断")
		}
		return uint32(binary.BigEndian.Uint16(data)) + extendedBase16, 2, nil
	case nibbleReserved:
		return 0, 0, errors.WithMessage(ErrMalformedMessage, "保留的半字节值15")
	}
	return uint32(base), 0, nil
}
