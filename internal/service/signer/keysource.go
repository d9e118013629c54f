package signer

import (
	"context"
	"crypto/ed25519"
	"errors"

	"wallet-signer/pkg/crypto_util"
	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/keystore"
	"wallet-signer/pkg/kms"
)

// PasswordFunc 向用户索取解锁密码；用户放弃时返回 errno.ErrUserCancelled
type PasswordFunc func(ctx context.Context, prompt string) (string, error)

// KeySource 按地址提供单账户私钥
type KeySource interface {
	WithKey(ctx context.Context, address string, fn func(priv ed25519.PrivateKey) error) error
}

// KMSKeySource 进程内密封保管库
type KMSKeySource struct {
	kms kms.KeyManager
}

func NewKMSKeySource(m kms.KeyManager) *KMSKeySource {
	return &KMSKeySource{kms: m}
}

func (s *KMSKeySource) WithKey(ctx context.Context, address string, fn func(priv ed25519.PrivateKey) error) error {
	err := s.kms.WithPrivateKey(address, fn)
	switch {
	case errors.Is(err, kms.ErrKeyNotFound), errors.Is(err, kms.ErrKeyDisabled):
		return errno.ErrKeyNotFound.Wrap(err)
	}
	return err
}

// KeystoreKeySource 加密 keystore 目录，每次签名解密一次
type KeystoreKeySource struct {
	dir      *keystore.Dir
	password PasswordFunc
}

func NewKeystoreKeySource(dir *keystore.Dir, password PasswordFunc) *KeystoreKeySource {
	return &KeystoreKeySource{dir: dir, password: password}
}

func (s *KeystoreKeySource) WithKey(ctx context.Context, address string, fn func(priv ed25519.PrivateKey) error) error {
	entry, err := s.dir.FindByAddress(address)
	if err != nil {
		if errors.Is(err, keystore.ErrNotFound) {
			return errno.ErrKeyNotFound.WithMessage("no keystore entry for " + address)
		}
		return err
	}
	if entry.Kind != keystore.KindAccount {
		return errno.ErrKeyNotFound.WithMessage("keystore entry is not an account key")
	}

	seed, err := unlock(ctx, s.password, entry, "Password for "+address)
	if err != nil {
		return err
	}
	defer crypto_util.ZeroBytes(seed)
	if len(seed) != ed25519.SeedSize {
		return errno.ErrKeyNotFound.WithMessage("corrupted account key")
	}

	priv := ed25519.NewKeyFromSeed(seed)
	defer crypto_util.ZeroBytes(priv)
	return fn(priv)
}

// unlock 索取密码并解密；密码错误按 KeyNotFound 处理
func unlock(ctx context.Context, password PasswordFunc, entry *keystore.EncryptedKeyJSON, prompt string) ([]byte, error) {
	if password == nil {
		return nil, errno.ErrKeyNotFound.WithMessage("no password provider")
	}
	pw, err := password(ctx, prompt)
	if err != nil {
		return nil, err
	}
	secret, err := keystore.DecryptSecret(entry, pw)
	if err != nil {
		return nil, errno.ErrKeyNotFound.Wrap(err)
	}
	return secret, nil
}
