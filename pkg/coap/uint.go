package coap

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// EncodeUint 将value按固定宽度width（1/2/4/8字节）以大端序写入dst
// 不做最小宽度推断：宽度由调用方决定，value超出宽度可表示范围时返回ErrValueOutOfRange
func EncodeUint(dst []byte, value uint64, width int) error {
	if !validWidth(width) {
		return errors.Wrapf(ErrInvalidWidth, "宽度%d", width)
	}
	if width < 8 && value>>(uint(width)*8) != 0 {
		return errors.Wrapf(ErrValueOutOfRange, "数值%#x无法用%d字节表示", value, width)
	}
	if len(dst) < width {
		return errors.Wrapf(ErrBufferTooSmall, "需要%d字节，实际%d字节", width, len(dst))
	}

	switch width {
	case 1:
		dst[0] = byte(value)
	case 2:
		binary.BigEndian.PutUint16(dst, uint16(value))
	case 4:
		binary.BigEndian.PutUint32(dst, uint32(value))
	case 8:
		binary.BigEndian.PutUint64(dst, value)
	}
	return nil
}

// DecodeUint 将0-8字节的大端序数据解码为无符号整数
func DecodeUint(src []byte) (uint64, error) {
	if len(src) > 8 {
		return 0, errors.Wrapf(ErrValueOutOfRange, "整数选项长度%d超过8字节", len(src))
	}
	var v uint64
	for _, b := range src {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// MinimalUintWidth 返回表示value所需的最小合法宽度（1/2/4/8）
func MinimalUintWidth(value uint64) int {
	switch {
	case value <= 0xFF:
		return 1
	case value <= 0xFFFF:
		return 2
	case value <= 0xFFFFFFFF:
		return 4
	}
	return 8
}

func validWidth(width int) bool {
	return width == 1 || width == 2 || width == 4 || width == 8
}
