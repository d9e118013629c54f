package signer

import (
	"context"
	"crypto/ed25519"
	"errors"

	"wallet-signer/internal/model"
	"wallet-signer/pkg/crypto_util"
	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/hdwallet"
	"wallet-signer/pkg/keystore"
)

// HDDerivedSigner 每次签名: 解密助记词 -> BIP-39 种子 -> SLIP-10 派生 -> 签名 -> 清零
type HDDerivedSigner struct {
	dir       *keystore.Dir
	password  PasswordFunc
	mnemonics *hdwallet.MnemonicService
}

func NewHDDerivedSigner(dir *keystore.Dir, password PasswordFunc) *HDDerivedSigner {
	return &HDDerivedSigner{dir: dir, password: password, mnemonics: hdwallet.NewMnemonicService()}
}

func (s *HDDerivedSigner) Sign(ctx context.Context, tx model.SignableTransaction, h model.HDPath) (model.SignedBytes, error) {
	var out model.SignedBytes
	err := s.derive(ctx, h, func(priv ed25519.PrivateKey) error {
		signed, err := signWithKey(priv, tx)
		out = signed
		return err
	})
	return out, err
}

// PublicKey 派生地址对应的公钥 (用于展示收款地址)
func (s *HDDerivedSigner) PublicKey(ctx context.Context, h model.HDPath) (ed25519.PublicKey, error) {
	var pub ed25519.PublicKey
	err := s.derive(ctx, h, func(priv ed25519.PrivateKey) error {
		pub = append(ed25519.PublicKey(nil), priv.Public().(ed25519.PublicKey)...)
		return nil
	})
	return pub, err
}

func (s *HDDerivedSigner) withKey(ctx context.Context, handle model.SigningKeyHandle, fn func(priv ed25519.PrivateKey) error) error {
	h, ok := handle.(model.HDPath)
	if !ok {
		return errno.ErrKeyNotFound
	}
	return s.derive(ctx, h, fn)
}

func (s *HDDerivedSigner) derive(ctx context.Context, h model.HDPath, fn func(priv ed25519.PrivateKey) error) error {
	// 1. 载入加密助记词
	entry, err := s.dir.Load(keystore.KindMnemonic, h.WalletID)
	if err != nil {
		if errors.Is(err, keystore.ErrNotFound) {
			return errno.ErrKeyNotFound.WithMessage("hd wallet not found: " + h.WalletID)
		}
		return err
	}

	// 2. 解密并转换为种子
	secret, err := unlock(ctx, s.password, entry, "Password for wallet "+h.WalletID)
	if err != nil {
		return err
	}
	seed, err := s.mnemonics.MnemonicToSeed(string(secret), "")
	crypto_util.ZeroBytes(secret)
	if err != nil {
		return errno.ErrKeyNotFound.Wrap(err)
	}
	defer crypto_util.ZeroBytes(seed)

	// 3. 派生 m/44'/283'/account'/change'/index'
	wallet, err := hdwallet.NewMasterKeyFromSeed(seed)
	if err != nil {
		return errno.ErrKeyNotFound.Wrap(err)
	}
	defer wallet.Zero()

	key, err := wallet.DerivePath(hdwallet.AccountPath(h.Account, h.Change, h.Index))
	if err != nil {
		return errno.ErrKeyNotFound.Wrap(err)
	}
	defer key.Zero()

	priv := key.PrivateKey()
	defer crypto_util.ZeroBytes(priv)
	return fn(priv)
}
