// 用YAML声明式地描述一条CoAP消息，并转换为coap.MsgInfo和负载
//
//	type: CON
//	code: GET
//	message_id: 1234
//	token: random
//	options:
//	  - name: uri-path
//	    value: sensors
//	  - number: 12
//	    kind: content-format
//	    value: cbor
//	payload:
//	  cbor: {t: 21.5}
package msgspec

import (
	"encoding/hex"
	"os"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/junbin-yang/coapkit-go/pkg/coap"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSpec 消息描述无效
var ErrInvalidSpec = errors.New("msgspec: 消息描述无效")

// RandomToken 令牌取该值时生成随机令牌
const RandomToken = "random"

// 选项值的解释方式
const (
	KindEmpty         = "empty"
	KindOpaque        = "opaque" // 十六进制字符串
	KindUint          = "uint"
	KindString        = "string"
	KindContentFormat = "content-format"
)

// Spec 消息描述
type Spec struct {
	Type      string   `yaml:"type"`
	Code      string   `yaml:"code"`
	MessageID uint16   `yaml:"message_id"`
	Token     string   `yaml:"token"`
	Options   []Option `yaml:"options"`
	Payload   *Payload `yaml:"payload"`
}

// Option 单个选项；Name和Number二选一，Kind省略时按选项号推断
//
// 从YAML解析时Value保留标量的原始文本（如0102、0x10），由Kind决定如何解释，
// 避免opaque和string的值先被YAML按整数解析。
type Option struct {
	Name   string `yaml:"name"`
	Number uint16 `yaml:"number"`
	Kind   string `yaml:"kind"`
	Value  any    `yaml:"value"`
	Width  int    `yaml:"width"` // uint的编码宽度，0表示最小宽度
}

// yamlOption Option的YAML形式，value按原始节点读取
type yamlOption struct {
	Name   string    `yaml:"name"`
	Number uint16    `yaml:"number"`
	Kind   string    `yaml:"kind"`
	Value  yaml.Node `yaml:"value"`
	Width  int       `yaml:"width"`
}

var optionKeys = map[string]bool{"name": true, "number": true, "kind": true, "value": true, "width": true}

func (o *Option) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.Wrapf(ErrInvalidSpec, "第%d行: 选项必须是映射", node.Line)
	}
	// node.Decode不继承KnownFields，这里逐个检查键名
	for k := 0; k+1 < len(node.Content); k += 2 {
		if key := node.Content[k]; !optionKeys[key.Value] {
			return errors.Wrapf(ErrInvalidSpec, "第%d行: 未知的选项字段 %q", key.Line, key.Value)
		}
	}

	var raw yamlOption
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*o = Option{Name: raw.Name, Number: raw.Number, Kind: raw.Kind, Width: raw.Width}

	switch {
	case raw.Value.Kind == 0, raw.Value.Tag == "!!null":
	case raw.Value.Kind == yaml.ScalarNode:
		o.Value = raw.Value.Value
	default:
		return errors.Wrapf(ErrInvalidSpec, "第%d行: 选项值必须是标量", raw.Value.Line)
	}
	return nil
}

// Payload 负载，三种形式只能出现一种
type Payload struct {
	Text string `yaml:"text"`
	Hex  string `yaml:"hex"`
	CBOR any    `yaml:"cbor"`
}

// 选项名称到选项号和默认类型
var optionNames = map[string]struct {
	number uint16
	kind   string
}{
	"if-match":       {coap.OptionIfMatch, KindOpaque},
	"uri-host":       {coap.OptionUriHost, KindString},
	"etag":           {coap.OptionETag, KindOpaque},
	"if-none-match":  {coap.OptionIfNoneMatch, KindEmpty},
	"observe":        {coap.OptionObserve, KindUint},
	"uri-port":       {coap.OptionUriPort, KindUint},
	"location-path":  {coap.OptionLocationPath, KindString},
	"uri-path":       {coap.OptionUriPath, KindString},
	"content-format": {coap.OptionContentFormat, KindContentFormat},
	"max-age":        {coap.OptionMaxAge, KindUint},
	"uri-query":      {coap.OptionUriQuery, KindString},
	"accept":         {coap.OptionAccept, KindUint},
	"location-query": {coap.OptionLocationQuery, KindString},
	"block2":         {coap.OptionBlock2, KindUint},
	"block1":         {coap.OptionBlock1, KindUint},
	"size2":          {coap.OptionSize2, KindUint},
	"proxy-uri":      {coap.OptionProxyUri, KindString},
	"proxy-scheme":   {coap.OptionProxyScheme, KindString},
	"size1":          {coap.OptionSize1, KindUint},
}

var contentFormatNames = map[string]uint16{
	"text":        coap.ContentFormatText,
	"link-format": coap.ContentFormatLinkFormat,
	"xml":         coap.ContentFormatXML,
	"octet":       coap.ContentFormatOctetStream,
	"exi":         coap.ContentFormatExi,
	"json":        coap.ContentFormatJSON,
	"cbor":        coap.ContentFormatCBOR,
	"senml+json":  coap.ContentFormatSenMLJSON,
	"senml+cbor":  coap.ContentFormatSenMLCBOR,
	"lwm2m+tlv":   coap.ContentFormatTLV,
	"lwm2m+json":  coap.ContentFormatLwM2MJSON,
}

// cborMode 确定性编码，相同输入得到相同字节
var cborMode cbor.EncMode

func init() {
	var err error
	cborMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("msgspec: 初始化CBOR编码器失败: " + err.Error())
	}
}

// Load 读取并解析YAML文件
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "读取消息描述失败")
	}
	return Parse(data)
}

// Parse 解析YAML，未知字段视为错误
func Parse(data []byte) (*Spec, error) {
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)

	var s Spec
	if err := dec.Decode(&s); err != nil {
		return nil, errors.Wrapf(ErrInvalidSpec, "解析YAML失败: %v", err)
	}
	return &s, nil
}

// MsgInfo 转换为消息描述；选项按出现顺序追加，顺序不合法时返回coap.ErrInvalidOptionOrder
func (s *Spec) MsgInfo() (*coap.MsgInfo, error) {
	info := coap.NewMsgInfo()

	if s.Type != "" {
		t, err := coap.ParseMessageType(s.Type)
		if err != nil {
			return nil, err
		}
		info.Type = t
	}
	if s.Code != "" {
		c, err := coap.ParseCode(s.Code)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidSpec, "%v", err)
		}
		info.Code = c
	}
	info.Identity.MessageID = s.MessageID

	token, err := s.token()
	if err != nil {
		return nil, err
	}
	if err := info.SetToken(token); err != nil {
		return nil, err
	}

	for i, opt := range s.Options {
		if err := opt.apply(info); err != nil {
			return nil, errors.WithMessagef(err, "options[%d]", i)
		}
	}
	return info, nil
}

func (s *Spec) token() ([]byte, error) {
	switch s.Token {
	case "":
		return nil, nil
	case RandomToken:
		id := uuid.New()
		return id[:coap.MaxTokenLength], nil
	}
	token, err := hex.DecodeString(s.Token)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSpec, "令牌不是十六进制: %q", s.Token)
	}
	return token, nil
}

func (o Option) resolve() (uint16, string, error) {
	number, kind := o.Number, o.Kind
	if o.Name != "" {
		known, ok := optionNames[strings.ToLower(o.Name)]
		if !ok {
			return 0, "", errors.Wrapf(ErrInvalidSpec, "未知的选项名称: %q", o.Name)
		}
		number = known.number
		if kind == "" {
			kind = known.kind
		}
	}
	if kind == "" {
		kind = KindOpaque
		for _, known := range optionNames {
			if known.number == number {
				kind = known.kind
				break
			}
		}
	}
	return number, kind, nil
}

func (o Option) apply(info *coap.MsgInfo) error {
	number, kind, err := o.resolve()
	if err != nil {
		return err
	}

	switch kind {
	case KindEmpty:
		return info.OptEmpty(number)
	case KindString:
		return info.OptString(number, valueString(o.Value))
	case KindOpaque:
		value, err := opaqueValue(o.Value)
		if err != nil {
			return err
		}
		return info.OptOpaque(number, value)
	case KindUint:
		v, err := valueUint(o.Value)
		if err != nil {
			return err
		}
		width := o.Width
		if width == 0 {
			width = coap.MinimalUintWidth(v)
		}
		return info.OptUint(number, v, width)
	case KindContentFormat:
		if number != coap.OptionContentFormat {
			return errors.Wrapf(ErrInvalidSpec, "content-format类型只能用于选项%d", coap.OptionContentFormat)
		}
		cf, err := contentFormat(o.Value)
		if err != nil {
			return err
		}
		return info.OptContentFormat(cf)
	}
	return errors.Wrapf(ErrInvalidSpec, "未知的选项类型: %q", kind)
}

func valueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	}
	return strings.TrimSpace(yamlScalar(v))
}

// opaqueValue 解析十六进制文本，允许0x前缀；非字符串的值含义不明确，直接拒绝
func opaqueValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	text, ok := v.(string)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidSpec, "opaque值必须是十六进制字符串: %v", v)
	}
	text = strings.TrimSpace(text)
	if len(text) > 1 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X') {
		text = text[2:]
	}
	value, err := hex.DecodeString(text)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSpec, "opaque值不是十六进制: %q", text)
	}
	return value, nil
}

func yamlScalar(v any) string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return ""
	}
	return string(out)
}

func valueUint(v any) (uint64, error) {
	switch x := v.(type) {
	case int:
		if x >= 0 {
			return uint64(x), nil
		}
	case uint64:
		return x, nil
	case string:
		if u, err := strconv.ParseUint(x, 0, 64); err == nil {
			return u, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidSpec, "无效的整数值: %v", v)
}

func contentFormat(v any) (uint16, error) {
	if name, ok := v.(string); ok {
		if cf, ok := contentFormatNames[strings.ToLower(name)]; ok {
			return cf, nil
		}
	}
	u, err := valueUint(v)
	if err != nil || u > 0xFFFF {
		return 0, errors.Wrapf(ErrInvalidSpec, "无效的Content-Format: %v", v)
	}
	return uint16(u), nil
}

// PayloadBytes 返回负载字节，无负载时返回nil
func (s *Spec) PayloadBytes() ([]byte, error) {
	p := s.Payload
	if p == nil {
		return nil, nil
	}

	set := 0
	for _, present := range []bool{p.Text != "", p.Hex != "", p.CBOR != nil} {
		if present {
			set++
		}
	}
	if set > 1 {
		return nil, errors.Wrap(ErrInvalidSpec, "负载只能指定text、hex、cbor中的一种")
	}

	switch {
	case p.Text != "":
		return []byte(p.Text), nil
	case p.Hex != "":
		b, err := hex.DecodeString(p.Hex)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidSpec, "负载不是十六进制: %v", err)
		}
		return b, nil
	case p.CBOR != nil:
		b, err := cborMode.Marshal(p.CBOR)
		if err != nil {
			return nil, errors.Wrap(err, "CBOR编码失败")
		}
		return b, nil
	}
	return nil, nil
}

// Build 按描述编码消息
func (s *Spec) Build() (coap.Message, error) {
	info, err := s.MsgInfo()
	if err != nil {
		return coap.Message{}, err
	}
	payload, err := s.PayloadBytes()
	if err != nil {
		return coap.Message{}, err
	}
	return coap.NewEncoder().Encode(info, payload)
}
