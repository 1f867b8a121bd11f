package crypto

import "github.com/junbin-yang/coapkit-go/pkg/utils/logger"

// AEADParametersValid 检查AES-CCM参数：密钥16/24/32字节，IV 7-13字节，标签4-16字节且为偶数
func AEADParametersValid(keyLen, ivLen, tagLen int) bool {
	if keyLen != 16 && keyLen != 24 && keyLen != 32 {
		logger.Error("AEAD密钥长度无效", logger.Int("key_len", keyLen))
		return false
	}
	if ivLen < 7 || ivLen > 13 {
		logger.Error("AEAD IV长度无效", logger.Int("iv_len", ivLen))
		return false
	}
	if tagLen < 4 || tagLen > 16 || tagLen%2 != 0 {
		logger.Error("AEAD标签长度无效", logger.Int("tag_len", tagLen))
		return false
	}
	return true
}
