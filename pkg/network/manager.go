// 提供进程级网络状态：网络接口清单与TLS根证书池，以及按需的一次性初始化
package network

import (
	"net"
	"sort"
	"sync"
	"time"

	"github.com/junbin-yang/coapkit-go/pkg/utils/logger"
	"github.com/pkg/errors"
)

// DefaultScanInterval 接口监控的默认扫描周期
const DefaultScanInterval = 5 * time.Second

// ErrInterfaceNotFound 指定名称的接口不存在
var ErrInterfaceNotFound = errors.New("network: 未找到接口")

// InterfaceInfo 表示网络接口的详细信息
type InterfaceInfo struct {
	Name      string           // 接口名称（如eth0、lo等）
	Index     int              // 接口索引（系统分配的唯一标识）
	Flags     net.Flags        // 接口标志（如是否启用、是否为回环等）
	Addresses []net.IP         // 接口关联的IP地址列表
	MAC       net.HardwareAddr // 接口的MAC地址
	MTU       int              // 接口的最大传输单元(MTU)
}

// IsUp 接口是否启用
func (i InterfaceInfo) IsUp() bool { return i.Flags&net.FlagUp != 0 }

// CanMulticast 启用、支持多播、非回环且有地址
func (i InterfaceInfo) CanMulticast() bool {
	return i.IsUp() &&
		i.Flags&net.FlagMulticast != 0 &&
		i.Flags&net.FlagLoopback == 0 &&
		len(i.Addresses) > 0
}

// IPv4 返回接口的第一个IPv4地址
func (i InterfaceInfo) IPv4() net.IP {
	for _, addr := range i.Addresses {
		if v4 := addr.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}

// Manager 网络接口清单，可选地按周期刷新
type Manager struct {
	mu sync.RWMutex

	interfaces map[string]*InterfaceInfo
	stopChan   chan struct{} // 非nil表示正在监控
	list       func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
	log        *logger.Logger
}

// NewManager 创建接口管理器并立即扫描一次
func NewManager() (*Manager, error) {
	m := &Manager{
		interfaces: make(map[string]*InterfaceInfo),
		list:       net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
		log:        logger.Default().Named("network"),
	}
	if err := m.Refresh(); err != nil {
		return nil, errors.WithMessage(err, "扫描接口失败")
	}
	return m, nil
}

// Start 开始按interval周期刷新接口清单
func (m *Manager) Start(interval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopChan != nil {
		return errors.New("network: 已在监控中")
	}
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	m.stopChan = make(chan struct{})
	go m.monitorLoop(interval, m.stopChan)

	m.log.Debug("网络监控已启动", logger.Duration("interval", interval))
	return nil
}

// Stop 停止监控，可重复调用
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopChan == nil {
		return
	}
	close(m.stopChan)
	m.stopChan = nil
	m.log.Debug("网络监控已停止")
}

// Close 停止监控并清空清单
func (m *Manager) Close() error {
	m.Stop()
	m.mu.Lock()
	m.interfaces = make(map[string]*InterfaceInfo)
	m.mu.Unlock()
	return nil
}

// Interfaces 按接口索引顺序返回全部接口
func (m *Manager) Interfaces() []InterfaceInfo {
	return m.filter(func(InterfaceInfo) bool { return true })
}

// Interface 按名称查询接口，返回副本
func (m *Manager) Interface(name string) (InterfaceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	iface, ok := m.interfaces[name]
	if !ok {
		return InterfaceInfo{}, errors.Wrapf(ErrInterfaceNotFound, "%s", name)
	}
	return *iface, nil
}

// ActiveInterfaces 已启用且有IP地址的接口
func (m *Manager) ActiveInterfaces() []InterfaceInfo {
	return m.filter(func(i InterfaceInfo) bool { return i.IsUp() && len(i.Addresses) > 0 })
}

// MulticastInterfaces 适合发送多播的接口
func (m *Manager) MulticastInterfaces() []InterfaceInfo {
	return m.filter(InterfaceInfo.CanMulticast)
}

// DefaultInterface 第一个启用的、带非回环IPv4地址的非回环接口
func (m *Manager) DefaultInterface() (InterfaceInfo, error) {
	for _, iface := range m.filter(func(i InterfaceInfo) bool {
		return i.IsUp() && i.Flags&net.FlagLoopback == 0
	}) {
		if v4 := iface.IPv4(); v4 != nil && !v4.IsLoopback() {
			return iface, nil
		}
	}
	return InterfaceInfo{}, errors.Wrap(ErrInterfaceNotFound, "没有默认接口")
}

// IsLocalIP 判断ip是否属于本机某个接口
func (m *Manager) IsLocalIP(ip net.IP) bool {
	if ip.IsLoopback() {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, iface := range m.interfaces {
		for _, addr := range iface.Addresses {
			if ip.Equal(addr) {
				return true
			}
		}
	}
	return false
}

func (m *Manager) filter(keep func(InterfaceInfo) bool) []InterfaceInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]InterfaceInfo, 0, len(m.interfaces))
	for _, iface := range m.interfaces {
		if keep(*iface) {
			out = append(out, *iface)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Index < out[b].Index })
	return out
}

// Refresh 重新扫描系统接口；单个接口地址获取失败时记录警告并跳过该接口
func (m *Manager) Refresh() error {
	interfaces, err := m.list()
	if err != nil {
		return errors.Wrap(err, "获取接口列表失败")
	}

	scanned := make(map[string]*InterfaceInfo, len(interfaces))
	for _, iface := range interfaces {
		info := &InterfaceInfo{
			Name:  iface.Name,
			Index: iface.Index,
			Flags: iface.Flags,
			MAC:   iface.HardwareAddr,
			MTU:   iface.MTU,
		}

		addrs, err := m.addrs(iface)
		if err != nil {
			m.log.Warn("获取接口地址失败", logger.String("interface", iface.Name), logger.Err(err))
			continue
		}
		for _, addr := range addrs {
			switch v := addr.(type) {
			case *net.IPNet:
				info.Addresses = append(info.Addresses, v.IP)
			case *net.IPAddr:
				info.Addresses = append(info.Addresses, v.IP)
			}
		}
		scanned[iface.Name] = info
	}

	m.mu.Lock()
	m.interfaces = scanned
	m.mu.Unlock()

	m.log.Debug("已扫描接口", logger.Int("count", len(scanned)))
	return nil
}

func (m *Manager) monitorLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := m.Refresh(); err != nil {
				m.log.Error("扫描接口失败", logger.Err(err))
			}
		}
	}
}
