// 描述安全凭据（证书、证书链、私钥、吊销列表）的来源，并提供加载、持久化和密钥派生功能
package crypto

import (
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedSource 当前操作不支持该数据来源
	ErrUnsupportedSource = errors.New("crypto: 不支持的数据来源")
	// ErrInvalidPersistedData 持久化数据格式错误
	ErrInvalidPersistedData = errors.New("crypto: 持久化数据无效")
	// ErrInvalidArgument 参数无效
	ErrInvalidArgument = errors.New("crypto: 参数无效")
)

// InfoType 安全凭据类型
type InfoType uint8

const (
	TypeEmpty InfoType = iota
	TypeTrustedCert
	TypeCertificateChain
	TypePrivateKey
	TypeCertRevocationList
)

func (t InfoType) String() string {
	switch t {
	case TypeTrustedCert:
		return "trusted-cert"
	case TypeCertificateChain:
		return "certificate-chain"
	case TypePrivateKey:
		return "private-key"
	case TypeCertRevocationList:
		return "crl"
	}
	return "empty"
}

// Source 凭据数据来源
type Source uint8

const (
	SourceEmpty Source = iota
	SourceFile
	SourcePath   // 目录，加载其中全部文件
	SourceBuffer // 内存中的PEM或DER数据
	SourceArray
	SourceList
)

func (s Source) String() string {
	switch s {
	case SourceFile:
		return "file"
	case SourcePath:
		return "path"
	case SourceBuffer:
		return "buffer"
	case SourceArray:
		return "array"
	case SourceList:
		return "list"
	}
	return "empty"
}

// SecurityInfo 单个凭据描述，或由Entries组成的复合描述（SourceArray/SourceList）
type SecurityInfo struct {
	Type     InfoType
	Source   Source
	Filename string
	Path     string
	Buffer   []byte
	Password *string // nil表示无口令
	Entries  []SecurityInfo
}

// WithPassword 返回带口令的副本，仅对文件和缓冲区来源有意义
func (s SecurityInfo) WithPassword(password string) SecurityInfo {
	s.Password = &password
	return s
}

// IsCompound 是否为数组或列表
func (s SecurityInfo) IsCompound() bool {
	return s.Source == SourceArray || s.Source == SourceList
}

// Leaves 按顺序展开复合描述，返回全部非空叶子描述
func (s SecurityInfo) Leaves() []SecurityInfo {
	var out []SecurityInfo
	s.walk(func(leaf SecurityInfo) { out = append(out, leaf) })
	return out
}

func (s SecurityInfo) walk(fn func(SecurityInfo)) {
	switch {
	case s.IsCompound():
		for _, e := range s.Entries {
			e.walk(fn)
		}
	case s.Source != SourceEmpty:
		fn(s)
	}
}

func fromFile(t InfoType, filename string) SecurityInfo {
	return SecurityInfo{Type: t, Source: SourceFile, Filename: filename}
}

func fromPath(t InfoType, path string) SecurityInfo {
	return SecurityInfo{Type: t, Source: SourcePath, Path: path}
}

func fromBuffer(t InfoType, buf []byte) SecurityInfo {
	return SecurityInfo{Type: t, Source: SourceBuffer, Buffer: buf}
}

func compound(t InfoType, source Source, entries []SecurityInfo) SecurityInfo {
	return SecurityInfo{Type: t, Source: source, Entries: entries}
}

// 证书链
func CertificateChainFromFile(filename string) SecurityInfo {
	return fromFile(TypeCertificateChain, filename)
}
func CertificateChainFromPath(path string) SecurityInfo {
	return fromPath(TypeCertificateChain, path)
}
func CertificateChainFromBuffer(buf []byte) SecurityInfo {
	return fromBuffer(TypeCertificateChain, buf)
}
func CertificateChainFromArray(entries ...SecurityInfo) SecurityInfo {
	return compound(TypeCertificateChain, SourceArray, entries)
}
func CertificateChainFromList(entries ...SecurityInfo) SecurityInfo {
	return compound(TypeCertificateChain, SourceList, entries)
}

// 受信任的CA证书
func TrustedCertFromFile(filename string) SecurityInfo {
	return fromFile(TypeTrustedCert, filename)
}
func TrustedCertFromPath(path string) SecurityInfo {
	return fromPath(TypeTrustedCert, path)
}
func TrustedCertFromBuffer(buf []byte) SecurityInfo {
	return fromBuffer(TypeTrustedCert, buf)
}
func TrustedCertFromArray(entries ...SecurityInfo) SecurityInfo {
	return compound(TypeTrustedCert, SourceArray, entries)
}

// 客户端私钥
func ClientKeyFromFile(filename string) SecurityInfo {
	return fromFile(TypePrivateKey, filename)
}
func ClientKeyFromBuffer(buf []byte) SecurityInfo {
	return fromBuffer(TypePrivateKey, buf)
}

// 证书吊销列表
func CRLFromFile(filename string) SecurityInfo {
	return fromFile(TypeCertRevocationList, filename)
}
func CRLFromBuffer(buf []byte) SecurityInfo {
	return fromBuffer(TypeCertRevocationList, buf)
}
