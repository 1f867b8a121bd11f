package coap

// Encoder 基于堆分配的便捷编码器：按BufferSize分配刚好够用的对齐缓冲区后构建消息
// 适用于不关心分配的场景；对分配敏感的路径请直接使用Builder和自有缓冲区
type Encoder struct{}

// NewEncoder 创建一个新的编码器实例
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode 将消息描述和可选负载编码为消息视图
func (e *Encoder) Encode(info *MsgInfo, payload []byte) (Message, error) {
	if info == nil {
		return Message{}, ErrNilMsgInfo
	}
	buf := NewAlignedBuffer(BufferSize(info, len(payload)))

	var b Builder
	if err := b.Init(buf, info); err != nil {
		return Message{}, err
	}
	if _, err := b.Payload(payload); err != nil {
		return Message{}, err
	}
	return b.Message(), nil
}

// EncodeDatagram 编码并返回不含长度前缀的线上字节
func (e *Encoder) EncodeDatagram(info *MsgInfo, payload []byte) ([]byte, error) {
	msg, err := e.Encode(info, payload)
	if err != nil {
		return nil, err
	}
	return msg.Datagram(), nil
}
