package coap

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMsgInfo_DeltaBoundaries 验证delta在12/13/268/269处切换编码宽度
func TestMsgInfo_DeltaBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		number   uint16
		expected []byte
	}{
		{"delta 12", 12, []byte{0xC0}},
		{"delta 13", 13, []byte{0xD0, 0x00}},
		{"delta 268", 268, []byte{0xD0, 0xFF}},
		{"delta 269", 269, []byte{0xE0, 0x00, 0x00}},
		{"delta 65535", 65535, []byte{0xE0, 0xFE, 0xF2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := templateInfo()
			require.NoError(t, info.OptEmpty(tt.number))
			assert.Equal(t, HeaderSize+len(tt.expected), info.StorageSize())

			msg := buildWithoutPayload(t, info)
			assert.Equal(t, msgTemplate(0, tt.expected...), msg.Bytes())
		})
	}
}

// TestMsgInfo_LengthBoundaries 验证值长度在12/13/268/269处切换编码宽度
func TestMsgInfo_LengthBoundaries(t *testing.T) {
	tests := []struct {
		length int
		header []byte
	}{
		{12, []byte{0x0C}},
		{13, []byte{0x0D, 0x00}},
		{268, []byte{0x0D, 0xFF}},
		{269, []byte{0x0E, 0x00, 0x00}},
		{MaxOptionValueLength, []byte{0x0E, 0xFE, 0xF2}},
	}

	for _, tt := range tests {
		value := bytes.Repeat([]byte{0x5A}, tt.length)
		info := templateInfo()
		require.NoError(t, info.OptOpaque(0, value))
		assert.Equal(t, HeaderSize+len(tt.header)+tt.length, info.StorageSize())

		msg := buildWithoutPayload(t, info)
		expected := msgTemplate(0, append(append([]byte{}, tt.header...), value...)...)
		assert.Equal(t, expected, msg.Bytes(), "length %d", tt.length)
	}
}

func TestMsgInfo_ValueTooLarge(t *testing.T) {
	info := NewMsgInfo()
	err := info.OptOpaque(1, make([]byte, MaxOptionValueLength+1))
	assert.ErrorIs(t, err, ErrOptionTooLarge)
	assert.Equal(t, 0, info.OptionCount())
}

func TestMsgInfo_InvalidOptionOrder(t *testing.T) {
	info := NewMsgInfo()
	require.NoError(t, info.OptString(OptionUriPath, "a"))
	require.NoError(t, info.OptString(OptionUriPath, "b"))
	sizeBefore := info.StorageSize()

	err := info.OptString(OptionUriHost, "example.com")
	assert.ErrorIs(t, err, ErrInvalidOptionOrder)
	err = info.OptEmpty(OptionIfMatch)
	assert.ErrorIs(t, err, ErrInvalidOptionOrder)

	assert.Equal(t, 2, info.OptionCount())
	assert.Equal(t, sizeBefore, info.StorageSize())
}

func TestMsgInfo_OptUintErrors(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
		width int
		err   error
	}{
		{"1字节溢出", 0x100, 1, ErrValueOutOfRange},
		{"2字节溢出", 0x10000, 2, ErrValueOutOfRange},
		{"4字节溢出", 0x100000000, 4, ErrValueOutOfRange},
		{"宽度3", 1, 3, ErrInvalidWidth},
		{"宽度0", 0, 0, ErrInvalidWidth},
		{"宽度16", 0, 16, ErrInvalidWidth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := NewMsgInfo()
			require.NoError(t, info.OptUint(OptionObserve, 1, 1))

			err := info.OptUint(OptionObserve, tt.value, tt.width)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, info.OptionCount(), "失败的追加不应改变描述")
		})
	}
}

func TestMsgInfo_OptStringInvalidUTF8(t *testing.T) {
	info := NewMsgInfo()
	err := info.OptString(OptionUriPath, "\xff\xfe")
	assert.ErrorIs(t, err, ErrInvalidString)
	assert.Equal(t, 0, info.OptionCount())
}

func TestMsgInfo_ValuesAreCopied(t *testing.T) {
	value := []byte("abc")
	info := NewMsgInfo()
	require.NoError(t, info.OptOpaque(OptionETag, value))
	value[0] = 'X'

	options := info.Options()
	require.Len(t, options, 1)
	assert.Equal(t, []byte("abc"), options[0].Value)

	options[0].Value[0] = 'Y'
	assert.Equal(t, []byte("abc"), info.Options()[0].Value, "Options返回的值与描述互不影响")

	token := []byte{1, 2}
	require.NoError(t, info.SetToken(token))
	token[0] = 9
	assert.Equal(t, []byte{1, 2}, info.Identity.Token)
}

func TestMsgInfo_FixedWidthHelpers(t *testing.T) {
	info := NewMsgInfo()
	require.NoError(t, info.OptU16(OptionUriPort, 5683))
	require.NoError(t, info.OptU32(OptionMaxAge, 60))

	options := info.Options()
	require.Len(t, options, 2)
	assert.Equal(t, []byte{0x16, 0x33}, options[0].Value)
	assert.Equal(t, []byte{0, 0, 0, 60}, options[1].Value)

	assert.ErrorIs(t, info.OptU16(OptionUriHost, 1), ErrInvalidOptionOrder)
	assert.Equal(t, 2, info.OptionCount())
}

func TestMsgInfo_SetTokenTooLong(t *testing.T) {
	info := NewMsgInfo()
	require.NoError(t, info.SetToken([]byte{1}))
	err := info.SetToken(make([]byte, 9))
	assert.ErrorIs(t, err, ErrTokenTooLong)
	assert.Equal(t, []byte{1}, info.Identity.Token)
}

func TestMsgInfo_Reset(t *testing.T) {
	info := CreateMsgInfo(TypeAcknowledgment, CodeContent, 77)
	require.NoError(t, info.SetToken([]byte{1, 2, 3}))
	require.NoError(t, info.OptString(OptionUriPath, "x"))

	info.Reset()
	assert.Equal(t, TypeConfirmable, info.Type)
	assert.Equal(t, CodeEmpty, info.Code)
	assert.Equal(t, uint16(0), info.Identity.MessageID)
	assert.Empty(t, info.Identity.Token)
	assert.Equal(t, 0, info.OptionCount())
	assert.Equal(t, HeaderSize, info.StorageSize())

	// 复位后可以从较小的选项号重新开始
	require.NoError(t, info.OptEmpty(OptionIfMatch))
}

// TestMsgInfo_StorageSizeMatchesWritten 对随机的合法选项序列，StorageSize等于构建器写入的字节数
func TestMsgInfo_StorageSizeMatchesWritten(t *testing.T) {
	rng := rand.New(rand.NewSource(7252))

	for round := 0; round < 200; round++ {
		info := CreateMsgInfo(MessageType(rng.Intn(4)), Code(rng.Intn(256)), uint16(rng.Intn(0x10000)))
		require.NoError(t, info.SetToken(make([]byte, rng.Intn(MaxTokenLength+1))))

		number := 0
		for n := rng.Intn(12); n > 0; n-- {
			switch rng.Intn(3) {
			case 0:
				number += rng.Intn(13)
			case 1:
				number += rng.Intn(300)
			default:
				number += rng.Intn(2000)
			}
			if number > 0xFFFF {
				break
			}
			value := make([]byte, []int{0, 5, 12, 13, 200, 268, 269, 1000}[rng.Intn(8)])
			require.NoError(t, info.OptOpaque(uint16(number), value))
		}

		msg := buildWithoutPayload(t, info)
		assert.Equal(t, uint32(info.StorageSize()), msg.Length())
		assert.Len(t, msg.Bytes(), LengthPrefixSize+info.StorageSize())

		options, err := msg.Options()
		require.NoError(t, err)
		assert.Equal(t, info.OptionCount(), len(options))
		for i, opt := range info.Options() {
			assert.Equal(t, opt.Number, options[i].Number)
			assert.Equal(t, len(opt.Value), len(options[i].Value))
		}
	}
}

func TestEncodeUint(t *testing.T) {
	buf := make([]byte, 8)
	require.NoError(t, EncodeUint(buf, 0x0102, 2))
	assert.Equal(t, []byte{0x01, 0x02}, buf[:2])

	require.NoError(t, EncodeUint(buf, 0x01, 4))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x01}, buf[:4])

	assert.ErrorIs(t, EncodeUint(buf, 0x1FF, 1), ErrValueOutOfRange)
	assert.ErrorIs(t, EncodeUint(buf[:1], 1, 2), ErrBufferTooSmall)

	v, err := DecodeUint([]byte{0x87, 0x86, 0x85, 0x84, 0x83, 0x82, 0x81, 0x80})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x8786858483828180), v)

	v, err = DecodeUint(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	_, err = DecodeUint(make([]byte, 9))
	assert.ErrorIs(t, err, ErrValueOutOfRange)

	assert.Equal(t, 1, MinimalUintWidth(0))
	assert.Equal(t, 2, MinimalUintWidth(0x100))
	assert.Equal(t, 4, MinimalUintWidth(0x10000))
	assert.Equal(t, 8, MinimalUintWidth(0x100000000))
}
