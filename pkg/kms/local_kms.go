package kms

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"wallet-signer/pkg/address"
	"wallet-signer/pkg/crypto_util"
)

// keyEntry 是内部存储结构，私钥种子以 AES-GCM 封存，KeyID 作为附加数据
type keyEntry struct {
	Metadata   KeyMetadata
	SealedSeed []byte
}

// LocalKMS 是 KeyManager 接口的本地内存实现。
// 私钥种子只以密文形式驻留，签名时临时解封并在使用后清零。
type LocalKMS struct {
	mu        sync.RWMutex
	masterKey []byte
	keys      map[string]*keyEntry
	addresses *address.AlgoGenerator
}

// NewLocalKMS 创建一个新的 LocalKMS 实例，封存密钥随进程随机生成。
func NewLocalKMS() (*LocalKMS, error) {
	master := make([]byte, 32)
	if _, err := rand.Read(master); err != nil {
		return nil, fmt.Errorf("生成封存密钥失败: %w", err)
	}
	return &LocalKMS{
		masterKey: master,
		keys:      make(map[string]*keyEntry),
		addresses: address.NewAlgoGenerator(),
	}, nil
}

// CreateKey 生成一个新的密钥，并返回其 ID。
func (kms *LocalKMS) CreateKey() (string, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", err
	}
	defer crypto_util.ZeroBytes(priv)
	return kms.ImportKey(priv)
}

// ImportKey 封存私钥，KeyID 为对应的地址。重复导入返回同一 ID。
func (kms *LocalKMS) ImportKey(priv ed25519.PrivateKey) (string, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return "", ErrInvalidKey
	}
	pub := append(ed25519.PublicKey(nil), priv.Public().(ed25519.PublicKey)...)

	keyID, err := kms.addresses.PubKeyToAddress(pub)
	if err != nil {
		return "", err
	}

	kms.mu.Lock()
	defer kms.mu.Unlock()

	if _, exists := kms.keys[keyID]; exists {
		return keyID, nil
	}

	sealed, err := crypto_util.EncryptAESGCM(kms.masterKey, priv.Seed(), []byte(keyID))
	if err != nil {
		return "", fmt.Errorf("封存私钥失败: %w", err)
	}

	kms.keys[keyID] = &keyEntry{
		Metadata: KeyMetadata{
			KeyID:     keyID,
			PublicKey: pub,
			CreatedAt: time.Now().Unix(),
			Enabled:   true,
		},
		SealedSeed: sealed,
	}
	return keyID, nil
}

// GetPublicKey 获取指定密钥 ID 的公钥。
func (kms *LocalKMS) GetPublicKey(keyID string) (ed25519.PublicKey, error) {
	kms.mu.RLock()
	defer kms.mu.RUnlock()

	entry, err := kms.lookup(keyID)
	if err != nil {
		return nil, err
	}
	return entry.Metadata.PublicKey, nil
}

// Sign 使用指定的密钥对数据进行签名。
func (kms *LocalKMS) Sign(keyID string, data []byte) ([]byte, error) {
	var sig []byte
	err := kms.WithPrivateKey(keyID, func(priv ed25519.PrivateKey) error {
		sig = ed25519.Sign(priv, data)
		return nil
	})
	return sig, err
}

// WithPrivateKey 解封私钥并执行回调
func (kms *LocalKMS) WithPrivateKey(keyID string, fn func(priv ed25519.PrivateKey) error) error {
	kms.mu.RLock()
	entry, err := kms.lookup(keyID)
	if err != nil {
		kms.mu.RUnlock()
		return err
	}
	seed, err := crypto_util.DecryptAESGCM(kms.masterKey, entry.SealedSeed, []byte(keyID))
	kms.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("解封私钥失败: %w", err)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	defer crypto_util.ZeroAll(seed, priv)

	return fn(priv)
}

// Verify 验证签名是否有效。
func (kms *LocalKMS) Verify(keyID string, data []byte, signature []byte) error {
	pub, err := kms.GetPublicKey(keyID)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, data, signature) {
		return ErrInvalidSignature
	}
	return nil
}

// Disable 禁用密钥
func (kms *LocalKMS) Disable(keyID string) error {
	kms.mu.Lock()
	defer kms.mu.Unlock()

	entry, exists := kms.keys[keyID]
	if !exists {
		return ErrKeyNotFound
	}
	entry.Metadata.Enabled = false
	return nil
}

// lookup 调用方需持有读锁
func (kms *LocalKMS) lookup(keyID string) (*keyEntry, error) {
	entry, exists := kms.keys[keyID]
	if !exists {
		return nil, ErrKeyNotFound
	}
	if !entry.Metadata.Enabled {
		return nil, ErrKeyDisabled
	}
	return entry, nil
}
