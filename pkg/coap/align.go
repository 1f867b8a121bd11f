package coap

import "unsafe"

// MessageAlignment 编码缓冲区要求的对齐字节数（长度前缀uint32的对齐要求）
const MessageAlignment = int(unsafe.Alignof(uint32(0)))

func misalignment(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}
	return int(uintptr(unsafe.Pointer(unsafe.SliceData(buf))) % uintptr(MessageAlignment))
}

// IsAligned 判断缓冲区起始地址是否满足MessageAlignment
func IsAligned(buf []byte) bool {
	return misalignment(buf) == 0
}

// EnsureAlignedBuffer 返回buf中从第一个对齐地址开始的部分
// 已对齐时原样返回；跳过的字节使可用空间相应减少，调用方需按此预留
func EnsureAlignedBuffer(buf []byte) []byte {
	off := misalignment(buf)
	if off == 0 {
		return buf
	}
	skip := MessageAlignment - off
	if skip > len(buf) {
		return buf[len(buf):]
	}
	return buf[skip:]
}

// NewAlignedBuffer 分配一个长度为size且起始地址对齐的缓冲区
func NewAlignedBuffer(size int) []byte {
	raw := make([]byte, size+MessageAlignment-1)
	return EnsureAlignedBuffer(raw)[:size:size]
}
