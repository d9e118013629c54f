package address

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"wallet-signer/pkg/errno"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// AlgoGenerator 地址生成与校验
// 地址格式: base32(pubkey || sha512_256(pubkey)[28:32])，无 padding，共 58 个字符
type AlgoGenerator struct{}

func NewAlgoGenerator() *AlgoGenerator {
	return &AlgoGenerator{}
}

// PubKeyToAddress 将 32 字节 ed25519 公钥转换为地址字符串
func (g *AlgoGenerator) PubKeyToAddress(pubKey []byte) (string, error) {
	if len(pubKey) != ed25519.PublicKeySize {
		return "", fmt.Errorf("公钥长度错误: %d", len(pubKey))
	}
	var addr types.Address
	copy(addr[:], pubKey)
	return addr.String(), nil
}

// Decode 解析地址，失败统一返回 MalformedAddress
func Decode(addr string) (types.Address, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return types.Address{}, errno.ErrMalformedAddress.WithMessage("Malformed address: empty")
	}
	decoded, err := types.DecodeAddress(trimmed)
	if err != nil {
		return types.Address{}, errno.ErrMalformedAddress.Wrap(fmt.Errorf("%q: %w", addr, err))
	}
	return decoded, nil
}

// DecodeOptional 允许空字符串 (返回零地址)
func DecodeOptional(addr string) (types.Address, error) {
	if strings.TrimSpace(addr) == "" {
		return types.Address{}, nil
	}
	return Decode(addr)
}

// Validate 仅校验地址编码与校验和
func Validate(addr string) error {
	_, err := Decode(addr)
	return err
}

// String 零地址返回空字符串，便于镜像展示
func String(addr types.Address) string {
	if addr.IsZero() {
		return ""
	}
	return addr.String()
}
