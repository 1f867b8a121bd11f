package network

import (
	"crypto/x509"
	"sync"

	"github.com/junbin-yang/coapkit-go/pkg/utils/logger"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// 进程级状态：接口清单（兼容层）和TLS根证书池（SSL层）
// 初始化失败不会被记住，下一次EnsureGlobalState会重新尝试
var (
	globalMu    sync.Mutex
	globalReady bool
	compatState *Manager
	sslState    *x509.CertPool
)

// 可替换的初始化与清理步骤
var (
	initCompatState    = NewManager
	cleanupCompatState = func(m *Manager) error { return m.Close() }
	initSSLState       = loadSystemRoots
	cleanupSSLState    = func(*x509.CertPool) error { return nil }
)

func loadSystemRoots() (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		logger.Warn("加载系统根证书失败，使用空证书池", logger.Err(err))
		return x509.NewCertPool(), nil
	}
	return pool, nil
}

// EnsureGlobalState 确保进程级网络状态已初始化，可并发调用
// 兼容层成功而SSL层失败时回滚兼容层并返回错误
func EnsureGlobalState() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	return ensureLocked()
}

func ensureLocked() error {
	if globalReady {
		return nil
	}

	compat, err := initCompatState()
	if err != nil {
		return errors.WithMessage(err, "初始化网络兼容层失败")
	}
	ssl, err := initSSLState()
	if err != nil {
		if cerr := cleanupCompatState(compat); cerr != nil {
			logger.Warn("回滚网络兼容层失败", logger.Err(cerr))
		}
		return errors.WithMessage(err, "初始化SSL状态失败")
	}

	compatState, sslState, globalReady = compat, ssl, true
	logger.Debug("网络全局状态已初始化")
	return nil
}

// CleanupGlobalState 释放进程级状态；之后的EnsureGlobalState会重新初始化
func CleanupGlobalState() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if !globalReady {
		return nil
	}
	err := multierr.Append(cleanupSSLState(sslState), cleanupCompatState(compatState))
	compatState, sslState, globalReady = nil, nil, false
	return err
}

// Interfaces 返回全局接口清单，必要时先初始化
func Interfaces() (*Manager, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if err := ensureLocked(); err != nil {
		return nil, err
	}
	return compatState, nil
}

// RootCAs 返回全局根证书池，必要时先初始化
func RootCAs() (*x509.CertPool, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if err := ensureLocked(); err != nil {
		return nil, err
	}
	return sslState, nil
}
