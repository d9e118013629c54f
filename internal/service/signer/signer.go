// Package signer 把签名句柄分派到具体的签名后端。
package signer

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"

	"wallet-signer/internal/model"
	"wallet-signer/internal/service/encoder"
	"wallet-signer/pkg/address"
	"wallet-signer/pkg/errno"
	"wallet-signer/pkg/monitor"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// Signer 对一笔待签名交易产生签名结果
type Signer interface {
	Sign(ctx context.Context, tx model.SignableTransaction, handle model.SigningKeyHandle) (model.SignedBytes, error)
}

// keyOpener 在回调期间提供私钥，回调返回后私钥被清零
type keyOpener interface {
	withKey(ctx context.Context, handle model.SigningKeyHandle, fn func(priv ed25519.PrivateKey) error) error
}

// Router 按句柄类型选择后端；未配置的后端返回 KeyNotFound
type Router struct {
	Local    *LocalKeySigner
	HD       *HDDerivedSigner
	Hardware *HardwareDeviceSigner
	Joint    *JointAccountThresholdSigner
}

// Sign 分派签名
func (r *Router) Sign(ctx context.Context, tx model.SignableTransaction, handle model.SigningKeyHandle) (model.SignedBytes, error) {
	var (
		out    model.SignedBytes
		err    error
		source string
	)

	switch h := handle.(type) {
	case model.LocalKey:
		source = "local"
		if r.Local == nil {
			return out, errno.ErrKeyNotFound.WithMessage("local key source not configured")
		}
		out, err = r.Local.Sign(ctx, tx, h)
	case model.HDPath:
		source = "hd"
		if r.HD == nil {
			return out, errno.ErrKeyNotFound.WithMessage("hd wallet not configured")
		}
		out, err = r.HD.Sign(ctx, tx, h)
	case model.HardwareKey:
		source = "hardware"
		if r.Hardware == nil {
			return out, errno.ErrKeyNotFound.WithMessage("hardware signer not configured")
		}
		out, err = r.Hardware.Sign(ctx, tx, h)
	case model.JointParticipant:
		source = "joint"
		if r.Joint == nil {
			return out, errno.ErrKeyNotFound.WithMessage("joint signer not configured")
		}
		out, err = r.Joint.Sign(ctx, tx, h, r.opener(h.Key))
	default:
		return out, errno.ErrKeyNotFound.WithMessage(fmt.Sprintf("unsupported key handle %T", handle))
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	monitor.ObserveSignature(source, result)
	return out, err
}

// opener 联合账户参与者自身密钥的来源
func (r *Router) opener(h model.SigningKeyHandle) keyOpener {
	switch h.(type) {
	case model.LocalKey:
		if r.Local != nil {
			return r.Local
		}
	case model.HDPath:
		if r.HD != nil {
			return r.HD
		}
	}
	return nil
}

// signWithKey 单签: 校验密钥控制发送方后调用 SDK 签名
func signWithKey(priv ed25519.PrivateKey, tx model.SignableTransaction) (model.SignedBytes, error) {
	txn, err := encoder.DecodeTransaction(tx.Bytes)
	if err != nil {
		return model.SignedBytes{}, err
	}
	if err := checkSender(priv.Public().(ed25519.PublicKey), txn.Sender); err != nil {
		return model.SignedBytes{}, err
	}
	txID, stx, err := crypto.SignTransaction(priv, txn)
	if err != nil {
		return model.SignedBytes{}, errno.ErrEncoding.Wrap(err)
	}
	return model.SignedBytes{Bytes: stx, TxID: txID}, nil
}

func checkSender(pub ed25519.PublicKey, sender types.Address) error {
	if bytes.Equal(pub, sender[:]) {
		return nil
	}
	var have types.Address
	copy(have[:], pub)
	return errno.ErrKeyMismatch.WithMessage(
		fmt.Sprintf("key %s does not control sender %s", have.String(), address.String(sender)))
}

func addressOf(pub ed25519.PublicKey) (string, error) {
	return address.NewAlgoGenerator().PubKeyToAddress(pub)
}
