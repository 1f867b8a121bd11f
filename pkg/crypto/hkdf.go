package crypto

import (
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

// MaxHKDFSHA256Length HKDF-SHA256单次可派生的最大字节数（255个摘要块）
const MaxHKDFSHA256Length = 255 * sha256.Size

// HKDFSHA256 按RFC 5869派生length字节密钥材料；salt和info可以为空，ikm不能为空
func HKDFSHA256(salt, ikm, info []byte, length int) ([]byte, error) {
	if len(ikm) == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "IKM不能为空")
	}
	if length <= 0 || length > MaxHKDFSHA256Length {
		return nil, errors.Wrapf(ErrInvalidArgument, "输出长度%d超出范围(1-%d)", length, MaxHKDFSHA256Length)
	}

	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, info), out); err != nil {
		return nil, errors.Wrap(err, "HKDF派生失败")
	}
	return out, nil
}
