package coap

import "github.com/pkg/errors"

// 编码器返回的错误类型，调用方通过errors.Is判断
var (
	// ErrInvalidOptionOrder 选项号小于前一个选项号（调用方违反非递减顺序约定）
	ErrInvalidOptionOrder = errors.New("coap: 选项顺序无效")
	// ErrOptionTooLarge 选项delta或值长度超出扩展编码可表示范围
	ErrOptionTooLarge = errors.New("coap: 选项过大")
	// ErrValueTooLong 字符串选项的字节长度超出选项长度上限
	ErrValueTooLong = errors.New("coap: 选项值过长")
	// ErrValueOutOfRange 整数无法用指定宽度表示
	ErrValueOutOfRange = errors.New("coap: 数值超出范围")
	// ErrInvalidWidth 整数宽度不是1/2/4/8
	ErrInvalidWidth = errors.New("coap: 无效的整数宽度")
	// ErrInvalidString 字符串选项不是合法的UTF-8
	ErrInvalidString = errors.New("coap: 字符串不是合法的UTF-8")
	// ErrTokenTooLong 令牌超过8字节
	ErrTokenTooLong = errors.New("coap: 令牌过长")
	// ErrInvalidType 消息类型不在0-3范围内
	ErrInvalidType = errors.New("coap: 无效的消息类型")
	// ErrBufferTooSmall 调用方提供的缓冲区空间不足
	ErrBufferTooSmall = errors.New("coap: 缓冲区空间不足")
	// ErrNilMsgInfo 未提供消息描述
	ErrNilMsgInfo = errors.New("coap: 消息描述不能为空")
	// ErrBuilderNotInitialized 构建器尚未Init
	ErrBuilderNotInitialized = errors.New("coap: 构建器未初始化")
	// ErrMalformedMessage 已编码数据不符合CoAP格式
	ErrMalformedMessage = errors.New("coap: 消息格式错误")
	// ErrOptionNotFound 消息中不存在指定选项
	ErrOptionNotFound = errors.New("coap: 选项不存在")
)
