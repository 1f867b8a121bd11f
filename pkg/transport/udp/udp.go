// 通过UDP发送已编码的CoAP消息（单播与IPv4组播）
package udp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/junbin-yang/coapkit-go/pkg/coap"
	"github.com/junbin-yang/coapkit-go/pkg/network"
	"github.com/junbin-yang/coapkit-go/pkg/utils/logger"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/net/ipv4"
)

const (
	DefaultPort        = 5683          // CoAP默认UDP端口
	AllCoAPNodesIPv4   = "224.0.1.187" // IPv4“所有CoAP节点”组播地址
	DefaultTTL         = 1             // 组播默认只在本地链路传播
	MaxDatagramSize    = 1152          // RFC 7252建议的消息上限
	DefaultSendTimeout = 5 * time.Second
)

var (
	// ErrEmptyMessage 消息视图为空
	ErrEmptyMessage = errors.New("transport: 消息为空")
	// ErrNoMulticastInterface 没有可用的组播接口
	ErrNoMulticastInterface = errors.New("transport: 没有可用的组播接口")
	// ErrClosed 发送器已关闭
	ErrClosed = errors.New("transport: 发送器已关闭")
)

// Sender 面向单个对端的UDP发送器
type Sender struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
	log     *logger.Logger
}

// Dial 连接到addr（host:port），ctx只约束连接建立过程
func Dial(ctx context.Context, addr string) (*Sender, error) {
	if err := network.EnsureGlobalState(); err != nil {
		return nil, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "连接%s失败", addr)
	}
	s := &Sender{
		conn:    conn,
		timeout: DefaultSendTimeout,
		log:     logger.Default().Named("udp").With(logger.String("remote", conn.RemoteAddr().String())),
	}
	s.log.Debug("UDP发送器已创建")
	return s, nil
}

// SetTimeout 设置单次发送超时，0表示不限
func (s *Sender) SetTimeout(d time.Duration) {
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

// Send 发送消息的线上字节（不含长度前缀）
func (s *Sender) Send(msg coap.Message) error {
	datagram := msg.Datagram()
	if len(datagram) == 0 {
		return ErrEmptyMessage
	}
	if len(datagram) > MaxDatagramSize {
		s.log.Warn("消息超过建议的数据报上限", logger.Int("size", len(datagram)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrClosed
	}
	if s.timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return errors.Wrap(err, "设置发送超时失败")
		}
	}
	if _, err := s.conn.Write(datagram); err != nil {
		return errors.Wrap(err, "发送消息失败")
	}
	s.log.Debug("已发送消息",
		logger.String("type", msg.Type().String()),
		logger.String("code", msg.Code().String()),
		logger.Uint16("mid", msg.MessageID()),
		logger.Int("size", len(datagram)))
	return nil
}

// LocalAddr 本地地址
func (s *Sender) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// MulticastConfig 组播发送配置
type MulticastConfig struct {
	Interfaces []string // 指定使用的接口名称，空则使用全部可组播接口
	TTL        int      // 0表示DefaultTTL
	Loopback   bool     // 是否让本机也收到组播
}

// MulticastSender 通过每个可组播接口各发送一份的IPv4组播发送器
type MulticastSender struct {
	mu         sync.Mutex
	conn       *net.UDPConn
	pc         *ipv4.PacketConn
	interfaces []net.Interface
	log        *logger.Logger
}

// NewMulticastSender 创建组播发送器，接口清单来自network全局状态
func NewMulticastSender(cfg MulticastConfig) (*MulticastSender, error) {
	mgr, err := network.Interfaces()
	if err != nil {
		return nil, err
	}
	ifaces := selectInterfaces(mgr.MulticastInterfaces(), cfg.Interfaces)
	if len(ifaces) == 0 {
		return nil, ErrNoMulticastInterface
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, errors.Wrap(err, "创建组播套接字失败")
	}
	pc := ipv4.NewPacketConn(conn)

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := multierr.Combine(
		pc.SetMulticastTTL(ttl),
		pc.SetMulticastLoopback(cfg.Loopback),
	); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "设置组播选项失败")
	}

	return &MulticastSender{
		conn:       conn,
		pc:         pc,
		interfaces: ifaces,
		log:        logger.Default().Named("udp-multicast"),
	}, nil
}

func selectInterfaces(candidates []network.InterfaceInfo, names []string) []net.Interface {
	var out []net.Interface
	for _, c := range candidates {
		if c.IPv4() == nil {
			continue
		}
		if len(names) > 0 && !contains(names, c.Name) {
			continue
		}
		out = append(out, net.Interface{Index: c.Index, Name: c.Name, Flags: c.Flags, MTU: c.MTU, HardwareAddr: c.MAC})
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Interfaces 发送使用的接口
func (m *MulticastSender) Interfaces() []net.Interface {
	return append([]net.Interface(nil), m.interfaces...)
}

// SendMulticast 经每个接口向group发送一份消息，返回成功的接口数
// 至少一个接口成功即视为成功；全部失败时返回合并后的错误
func (m *MulticastSender) SendMulticast(msg coap.Message, group *net.UDPAddr) (int, error) {
	datagram := msg.Datagram()
	if len(datagram) == 0 {
		return 0, ErrEmptyMessage
	}
	if group == nil {
		group = &net.UDPAddr{IP: net.ParseIP(AllCoAPNodesIPv4), Port: DefaultPort}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return 0, ErrClosed
	}

	var errs error
	sent := 0
	for i := range m.interfaces {
		iface := &m.interfaces[i]
		if err := m.pc.SetMulticastInterface(iface); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "接口%s", iface.Name))
			continue
		}
		if _, err := m.pc.WriteTo(datagram, nil, group); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "接口%s", iface.Name))
			m.log.Warn("组播发送失败", logger.String("interface", iface.Name), logger.Err(err))
			continue
		}
		sent++
		m.log.Debug("组播发送成功", logger.String("interface", iface.Name), logger.Int("size", len(datagram)))
	}
	if sent == 0 {
		return 0, errs
	}
	return sent, nil
}

func (m *MulticastSender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn, m.pc = nil, nil
	return err
}
