package crypto

import (
	"bytes"

	"github.com/junbin-yang/coapkit-go/pkg/persistence"
	"github.com/pkg/errors"
)

// 持久化条目的来源标记
const (
	tagFile   = 'F'
	tagPath   = 'P'
	tagBuffer = 'B'

	persistVersion = 0

	noPassword = -1
)

// PersistCertificateChain 存储证书链描述：u32条目数，随后依次存储展开后的每个叶子条目
//
// 条目格式：来源标记(1) + 版本(1) + u32缓冲区长度 + 缓冲区 + 来源相关的长度字段
//   - 文件：缓冲区为 文件名\0[口令\0]，随后 u32文件名长度、i32口令长度（-1表示无口令）
//   - 目录：缓冲区为 路径\0，随后 u32路径长度
//   - 缓冲区：缓冲区为 数据[口令\0]，随后 u32数据长度、i32口令长度
func PersistCertificateChain(ctx *persistence.Context, info SecurityInfo) error {
	if ctx.Direction() != persistence.Store {
		return errors.Wrap(ErrInvalidArgument, "PersistCertificateChain只能用于存储方向")
	}
	leaves := info.Leaves()
	count := uint32(len(leaves))
	if err := ctx.U32(&count); err != nil {
		return err
	}
	for i := range leaves {
		if err := persistEntry(ctx, &leaves[i]); err != nil {
			return errors.WithMessagef(err, "条目%d", i)
		}
	}
	return nil
}

// CertificateChainArrayPersistence 按方向存储或恢复证书链条目数组
// 恢复时*entries被替换为恢复出的条目，类型均为TypeCertificateChain
func CertificateChainArrayPersistence(ctx *persistence.Context, entries *[]SecurityInfo) error {
	if ctx.Direction() == persistence.Store {
		return PersistCertificateChain(ctx, CertificateChainFromArray(*entries...))
	}

	var count uint32
	if err := ctx.U32(&count); err != nil {
		return err
	}
	out := make([]SecurityInfo, 0, min(count, 64))
	for i := uint32(0); i < count; i++ {
		entry := SecurityInfo{Type: TypeCertificateChain}
		if err := persistEntry(ctx, &entry); err != nil {
			return errors.WithMessagef(err, "条目%d", i)
		}
		out = append(out, entry)
	}
	*entries = out
	return nil
}

func persistEntry(ctx *persistence.Context, info *SecurityInfo) error {
	var tag uint8
	if ctx.Direction() == persistence.Store {
		switch info.Source {
		case SourceFile:
			tag = tagFile
		case SourcePath:
			tag = tagPath
		case SourceBuffer:
			tag = tagBuffer
		default:
			return errors.Wrapf(ErrUnsupportedSource, "%s", info.Source)
		}
	}
	if err := ctx.U8(&tag); err != nil {
		return err
	}
	version := uint8(persistVersion)
	if err := ctx.U8(&version); err != nil {
		return err
	}
	if version != persistVersion {
		return errors.Wrapf(ErrInvalidPersistedData, "不支持的版本: %d", version)
	}

	switch tag {
	case tagFile:
		info.Source = SourceFile
		return persistStrings(ctx, &info.Filename, &info.Password)
	case tagPath:
		info.Source = SourcePath
		return persistStrings(ctx, &info.Path, nil)
	case tagBuffer:
		info.Source = SourceBuffer
		return persistBuffer(ctx, info)
	}
	return errors.Wrapf(ErrInvalidPersistedData, "未知的来源标记: %#x", tag)
}

// persistStrings 处理文件和目录条目：主字符串以\0结尾，可选口令紧随其后
func persistStrings(ctx *persistence.Context, main *string, password **string) error {
	var buf []byte
	if ctx.Direction() == persistence.Store {
		buf = appendTerminated(nil, *main)
		if password != nil && *password != nil {
			buf = appendTerminated(buf, **password)
		}
	}
	if err := ctx.Bytes(&buf); err != nil {
		return err
	}

	mainLen := uint32(len(*main))
	if err := ctx.U32(&mainLen); err != nil {
		return err
	}
	var pwLen int32 = noPassword
	if password != nil {
		if *password != nil {
			pwLen = int32(len(**password))
		}
		if err := ctx.I32(&pwLen); err != nil {
			return err
		}
	}
	if ctx.Direction() == persistence.Store {
		return nil
	}

	rest, s, err := splitTerminated(buf, int64(mainLen))
	if err != nil {
		return err
	}
	*main = s
	if password != nil {
		pw, err := restorePassword(rest, pwLen)
		if err != nil {
			return err
		}
		*password = pw
	}
	return nil
}

func persistBuffer(ctx *persistence.Context, info *SecurityInfo) error {
	var buf []byte
	if ctx.Direction() == persistence.Store {
		buf = append([]byte(nil), info.Buffer...)
		if info.Password != nil {
			buf = appendTerminated(buf, *info.Password)
		}
	}
	if err := ctx.Bytes(&buf); err != nil {
		return err
	}

	dataLen := uint32(len(info.Buffer))
	if err := ctx.U32(&dataLen); err != nil {
		return err
	}
	var pwLen int32 = noPassword
	if info.Password != nil {
		pwLen = int32(len(*info.Password))
	}
	if err := ctx.I32(&pwLen); err != nil {
		return err
	}
	if ctx.Direction() == persistence.Store {
		return nil
	}

	if int64(dataLen) > int64(len(buf)) {
		return errors.Wrapf(ErrInvalidPersistedData, "数据长度%d超过缓冲区长度%d", dataLen, len(buf))
	}
	info.Buffer = buf[:dataLen:dataLen]
	pw, err := restorePassword(buf[dataLen:], pwLen)
	if err != nil {
		return err
	}
	info.Password = pw
	return nil
}

func appendTerminated(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}

// splitTerminated 取出buf开头长度为n且以\0结尾的字符串，返回剩余部分
func splitTerminated(buf []byte, n int64) ([]byte, string, error) {
	if n < 0 || n >= int64(len(buf)) || buf[n] != 0 {
		return nil, "", errors.Wrapf(ErrInvalidPersistedData, "字符串长度%d与缓冲区不符", n)
	}
	if bytes.IndexByte(buf[:n], 0) >= 0 {
		return nil, "", errors.Wrap(ErrInvalidPersistedData, "字符串中含有\\0")
	}
	return buf[n+1:], string(buf[:n]), nil
}

func restorePassword(rest []byte, n int32) (*string, error) {
	if n == noPassword {
		if len(rest) != 0 {
			return nil, errors.Wrap(ErrInvalidPersistedData, "缓冲区存在多余数据")
		}
		return nil, nil
	}
	remaining, pw, err := splitTerminated(rest, int64(n))
	if err != nil {
		return nil, err
	}
	if len(remaining) != 0 {
		return nil, errors.Wrap(ErrInvalidPersistedData, "缓冲区存在多余数据")
	}
	return &pw, nil
}
