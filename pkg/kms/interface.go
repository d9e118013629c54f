package kms

import (
	"crypto/ed25519"
	"errors"
)

// KeyMetadata 包含密钥的元数据，不包含敏感的私钥信息
type KeyMetadata struct {
	KeyID     string            `json:"key_id"` // 密钥唯一标识符 (即账户地址)
	PublicKey ed25519.PublicKey `json:"public_key"`
	CreatedAt int64             `json:"created_at"` // 创建时间戳
	Enabled   bool              `json:"enabled"`    // 是否启用
}

// KeyManager 定义了签名密钥保管服务的核心行为。
// 抽象接口，后续可替换为 HSM 或系统级安全存储 (Keychain / Keystore)。
type KeyManager interface {
	// CreateKey 生成一个新的 ed25519 密钥，返回其 ID。
	CreateKey() (string, error)

	// ImportKey 导入一个已有私钥，调用方在返回后应清零 priv。
	ImportKey(priv ed25519.PrivateKey) (string, error)

	// GetPublicKey 获取指定密钥 ID 的公钥。
	GetPublicKey(keyID string) (ed25519.PublicKey, error)

	// Sign 使用指定的密钥对数据进行签名。
	Sign(keyID string, data []byte) ([]byte, error)

	// WithPrivateKey 在回调期间临时解封私钥，回调返回后私钥被清零。
	// 仅供需要完整私钥的 SDK 签名函数使用，回调不得保留 priv。
	WithPrivateKey(keyID string, fn func(priv ed25519.PrivateKey) error) error

	// Verify 验证签名是否有效。
	Verify(keyID string, data []byte, signature []byte) error

	// Disable 禁用密钥，之后所有操作返回 ErrKeyDisabled。
	Disable(keyID string) error
}

var (
	ErrKeyNotFound      = errors.New("密钥未找到")
	ErrKeyDisabled      = errors.New("密钥已禁用")
	ErrInvalidKey       = errors.New("私钥格式错误")
	ErrInvalidSignature = errors.New("签名无效")
)
