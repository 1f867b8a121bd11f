package crypto

import (
	stdcrypto "crypto"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/junbin-yang/coapkit-go/pkg/utils/logger"
	"github.com/pkg/errors"
)

// LoadCertificates 加载证书（受信任证书或证书链），支持PEM和DER，复合描述按顺序合并
// 目录来源加载其中全部常规文件，无法解析的文件记录警告后跳过
func LoadCertificates(info SecurityInfo) ([]*x509.Certificate, error) {
	if info.Type != TypeTrustedCert && info.Type != TypeCertificateChain {
		return nil, errors.Wrapf(ErrInvalidArgument, "类型%s不是证书", info.Type)
	}

	var certs []*x509.Certificate
	for _, leaf := range info.Leaves() {
		var (
			loaded []*x509.Certificate
			err    error
		)
		switch leaf.Source {
		case SourceFile:
			loaded, err = loadCertFile(leaf.Filename)
		case SourcePath:
			loaded, err = loadCertDir(leaf.Path)
		case SourceBuffer:
			loaded, err = parseCertificates(leaf.Buffer)
		default:
			err = errors.Wrapf(ErrUnsupportedSource, "%s", leaf.Source)
		}
		if err != nil {
			return nil, err
		}
		certs = append(certs, loaded...)
	}
	return certs, nil
}

// NewCertPool 将受信任证书加载到新的证书池
func NewCertPool(info SecurityInfo) (*x509.CertPool, error) {
	certs, err := LoadCertificates(info)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	for _, c := range certs {
		pool.AddCert(c)
	}
	return pool, nil
}

// LoadCRLs 加载证书吊销列表（文件或缓冲区，PEM或DER）
func LoadCRLs(info SecurityInfo) ([]*x509.RevocationList, error) {
	if info.Type != TypeCertRevocationList {
		return nil, errors.Wrapf(ErrInvalidArgument, "类型%s不是CRL", info.Type)
	}

	var crls []*x509.RevocationList
	for _, leaf := range info.Leaves() {
		var data []byte
		switch leaf.Source {
		case SourceFile:
			b, err := os.ReadFile(leaf.Filename)
			if err != nil {
				return nil, errors.Wrap(err, "读取CRL文件失败")
			}
			data = b
		case SourceBuffer:
			data = leaf.Buffer
		default:
			return nil, errors.Wrapf(ErrUnsupportedSource, "%s", leaf.Source)
		}
		if block, _ := pem.Decode(data); block != nil && block.Type == "X509 CRL" {
			data = block.Bytes
		}
		crl, err := x509.ParseRevocationList(data)
		if err != nil {
			return nil, errors.Wrap(err, "解析CRL失败")
		}
		crls = append(crls, crl)
	}
	return crls, nil
}

func loadCertFile(name string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "读取证书文件失败")
	}
	certs, err := parseCertificates(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "证书文件%s", name)
	}
	return certs, nil
}

func loadCertDir(dir string) ([]*x509.Certificate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "读取证书目录失败")
	}
	var certs []*x509.Certificate
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := filepath.Join(dir, e.Name())
		loaded, err := loadCertFile(name)
		if err != nil {
			logger.Warn("跳过无法加载的证书", logger.String("file", name), logger.Err(err))
			continue
		}
		certs = append(certs, loaded...)
	}
	return certs, nil
}

// parseCertificates 解析一个或多个PEM证书块；不是PEM时按单个DER证书解析
func parseCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "解析PEM证书失败")
		}
		certs = append(certs, c)
	}
	if len(certs) > 0 {
		return certs, nil
	}

	c, err := x509.ParseCertificate(data)
	if err != nil {
		return nil, errors.Wrap(err, "解析DER证书失败")
	}
	return []*x509.Certificate{c}, nil
}

// LoadPrivateKey 加载客户端私钥，支持PKCS#8、SEC1(EC)和PKCS#1(RSA)，PEM或DER
func LoadPrivateKey(info SecurityInfo) (stdcrypto.PrivateKey, error) {
	if info.Type != TypePrivateKey {
		return nil, errors.Wrapf(ErrInvalidArgument, "类型%s不是私钥", info.Type)
	}

	var data []byte
	switch info.Source {
	case SourceFile:
		var err error
		if data, err = os.ReadFile(info.Filename); err != nil {
			return nil, errors.Wrap(err, "读取私钥文件失败")
		}
	case SourceBuffer:
		data = info.Buffer
	default:
		return nil, errors.Wrapf(ErrUnsupportedSource, "私钥不支持%s来源", info.Source)
	}

	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
		//lint:ignore SA1019 兼容旧式口令加密的PEM私钥
		if x509.IsEncryptedPEMBlock(block) {
			if info.Password == nil {
				return nil, errors.Wrap(ErrInvalidArgument, "私钥已加密但未提供口令")
			}
			//lint:ignore SA1019 兼容旧式口令加密的PEM私钥
			plain, err := x509.DecryptPEMBlock(block, []byte(*info.Password))
			if err != nil {
				return nil, errors.Wrap(err, "解密私钥失败")
			}
			der = plain
		}
	}
	return parsePrivateKey(der)
}

func parsePrivateKey(der []byte) (stdcrypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	return nil, errors.Wrap(ErrInvalidArgument, "无法识别的私钥格式")
}
