package hdwallet

import (
	"crypto/ed25519"
	"errors"
)

// ExtendedKey 包装了 SLIP-10 ed25519 扩展私钥 (32 字节私钥种子 + 32 字节链码)
type ExtendedKey interface {
	// Derive 根据索引派生子密钥 (ed25519 只支持 hardened 派生)
	Derive(index uint32) (ExtendedKey, error)
	// PrivateKey 返回可直接用于签名的 ed25519 私钥，调用方负责用完后清零
	PrivateKey() ed25519.PrivateKey
	// PublicKey 返回对应的 ed25519 公钥
	PublicKey() ed25519.PublicKey
	// Zero 清零内部私钥与链码
	Zero()
}

// HDWallet 定义了分层确定性钱包的基本行为
type HDWallet interface {
	// MasterKey 返回主扩展密钥
	MasterKey() ExtendedKey
	// DerivePath 根据路径 (如 "m/44'/283'/0'/0'/0'") 派生密钥
	DerivePath(path string) (ExtendedKey, error)
	// Zero 清零主密钥
	Zero()
}

var (
	ErrInvalidSeed     = errors.New("无效的种子")
	ErrInvalidPath     = errors.New("无效的派生路径")
	ErrNonHardened     = errors.New("ed25519 只支持 hardened 派生")
	ErrInvalidMnemonic = errors.New("无效的助记词")
)
