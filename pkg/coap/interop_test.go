package coap

import (
	"context"
	"testing"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	"github.com/plgd-dev/go-coap/v3/udp/coder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 用go-coap的UDP解码器解析本包编码出的数据报，确认线上格式与RFC 7252一致
func TestInterop_DecodeWithGoCoap(t *testing.T) {
	info := CreateMsgInfo(TypeConfirmable, CodePut, 4321)
	require.NoError(t, info.SetToken([]byte{1, 2, 3, 4}))
	require.NoError(t, info.OptString(OptionUriPath, "a"))
	require.NoError(t, info.OptString(OptionUriPath, "b"))
	require.NoError(t, info.OptContentFormat(ContentFormatCBOR))
	require.NoError(t, info.OptString(OptionUriQuery, "k=v"))

	buf := NewAlignedBuffer(BufferSize(info, 5))
	b, err := NewBuilder(buf, info)
	require.NoError(t, err)
	_, err = b.Payload([]byte("he"))
	require.NoError(t, err)
	_, err = b.Payload([]byte("llo"))
	require.NoError(t, err)
	msg := b.Message()

	decoded := pool.NewMessage(context.Background())
	defer decoded.Reset()
	n, err := decoded.UnmarshalWithDecoder(coder.DefaultCoder, msg.Datagram())
	require.NoError(t, err)
	assert.Equal(t, len(msg.Datagram()), n)

	assert.Equal(t, message.Confirmable, decoded.Type())
	assert.Equal(t, codes.PUT, decoded.Code())
	assert.Equal(t, int32(4321), decoded.MessageID())
	assert.Equal(t, message.Token{1, 2, 3, 4}, decoded.Token())

	path, err := decoded.Options().Path()
	require.NoError(t, err)
	assert.Equal(t, "/a/b", path)

	cf, err := decoded.ContentFormat()
	require.NoError(t, err)
	assert.Equal(t, message.AppCBOR, cf)

	queries, err := decoded.Queries()
	require.NoError(t, err)
	assert.Equal(t, []string{"k=v"}, queries)

	body, err := decoded.ReadBody()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), body)
}

// 反方向：go-coap编码的数据报加上长度前缀后能被ParseMessage解析
func TestInterop_ParseGoCoapDatagram(t *testing.T) {
	src := pool.NewMessage(context.Background())
	defer src.Reset()
	src.SetCode(codes.Content)
	src.SetType(message.Acknowledgement)
	src.SetMessageID(99)
	src.SetToken(message.Token{0xAB})
	src.SetContentFormat(message.TextPlain)
	require.NoError(t, src.SetPath("/x/y"))

	data, err := src.MarshalWithEncoder(coder.DefaultCoder)
	require.NoError(t, err)

	msg, err := WrapDatagram(data)
	require.NoError(t, err)
	assert.Equal(t, TypeAcknowledgment, msg.Type())
	assert.Equal(t, CodeContent, msg.Code())
	assert.Equal(t, uint16(99), msg.MessageID())
	assert.Equal(t, []byte{0xAB}, msg.Token())

	cf, err := msg.ContentFormat()
	require.NoError(t, err)
	assert.Equal(t, ContentFormatText, cf)
}
