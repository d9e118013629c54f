package signer

import (
	"context"
	"crypto/ed25519"

	"wallet-signer/internal/model"
	"wallet-signer/pkg/errno"
)

// LocalKeySigner 本地单地址密钥
type LocalKeySigner struct {
	source KeySource
}

func NewLocalKeySigner(source KeySource) *LocalKeySigner {
	return &LocalKeySigner{source: source}
}

func (s *LocalKeySigner) Sign(ctx context.Context, tx model.SignableTransaction, h model.LocalKey) (model.SignedBytes, error) {
	var out model.SignedBytes
	err := s.source.WithKey(ctx, h.Address, func(priv ed25519.PrivateKey) error {
		signed, err := signWithKey(priv, tx)
		out = signed
		return err
	})
	return out, err
}

func (s *LocalKeySigner) withKey(ctx context.Context, handle model.SigningKeyHandle, fn func(priv ed25519.PrivateKey) error) error {
	h, ok := handle.(model.LocalKey)
	if !ok {
		return errno.ErrKeyNotFound
	}
	return s.source.WithKey(ctx, h.Address, fn)
}
